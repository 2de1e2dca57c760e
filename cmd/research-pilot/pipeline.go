// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/coordinator"
	"github.com/pdiddy/research-pilot/internal/dispatch"
	"github.com/pdiddy/research-pilot/internal/gateway"
	"github.com/pdiddy/research-pilot/internal/publisher"
	"github.com/pdiddy/research-pilot/internal/registry"
	"github.com/pdiddy/research-pilot/internal/selector"
	"github.com/pdiddy/research-pilot/internal/store"
	"github.com/pdiddy/research-pilot/internal/synthesis"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// pipeline bundles the wired components behind every command.
type pipeline struct {
	cfg         types.Config
	logger      *zap.Logger
	store       *store.Store
	registry    *registry.Registry
	dispatcher  *dispatch.Dispatcher
	synthesizer *synthesis.Client
	selector    *selector.Selector
	coordinator *coordinator.Coordinator
	queue       *coordinator.Queue
	publisher   *publisher.Publisher
}

// buildPipeline constructs every component from the effective configuration.
func buildPipeline(cmd *cobra.Command) (*pipeline, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	reg := registry.New(cfg.Registry)
	gw := gateway.New(cfg.Gateway, logger)
	disp := dispatch.New(reg, gw, nil, cfg.Dispatch, logger)
	synth := synthesis.NewClient(cfg.Synthesis, nil, logger)
	sel := selector.New(reg, synth, cfg.Selector, logger)
	coord := coordinator.New(st, sel, disp, synth, logger)

	return &pipeline{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		registry:    reg,
		dispatcher:  disp,
		synthesizer: synth,
		selector:    sel,
		coordinator: coord,
		queue:       coordinator.NewQueue(coord, logger),
		publisher:   publisher.New(st, cfg.Stream, logger),
	}, nil
}

// Close releases the pipeline's resources.
func (p *pipeline) Close() {
	p.store.Close()
	p.logger.Sync()
}
