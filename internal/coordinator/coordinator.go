// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator drives a research record through its lifecycle:
// source selection, fan-out, synthesis, scoring, terminal state. Each step's
// effect is persisted before the next begins, so an observer polling the
// store sees the record fill in as the run progresses.
package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/store"
	"github.com/pdiddy/research-pilot/internal/synthesis"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// defaultCredibility is the fixed score assigned when the caller asks for
// credibility. A pluggable scorer can replace it later.
const defaultCredibility = 0.75

// Selector resolves the source set for a run.
type Selector interface {
	Select(ctx context.Context, query string, explicit []string, parent *types.ParentContext) []string
}

// Dispatcher fans the query out and returns one result per source.
type Dispatcher interface {
	QueryAll(ctx context.Context, query string, sources []string) []types.SourceResult
}

// Synthesizer produces the final answer from fan-out results.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, results []types.SourceResult, parent *types.ParentContext, opts synthesis.Options) (string, error)
}

// Coordinator is the top-level state machine for one research run.
type Coordinator struct {
	store       *store.Store
	selector    Selector
	dispatcher  Dispatcher
	synthesizer Synthesizer
	logger      *zap.Logger
}

// New builds a coordinator over its collaborators.
func New(st *store.Store, sel Selector, disp Dispatcher, synth Synthesizer, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:       st,
		selector:    sel,
		dispatcher:  disp,
		synthesizer: synth,
		logger:      logger,
	}
}

// RunOptions carry per-run flags that are not part of the persisted record.
type RunOptions struct {
	// IncludeCredibility asks for a credibility score on the final record.
	IncludeCredibility bool
}

// Run drives the record with the given id to a terminal state. Any step
// failure is caught once here: the error is recorded on the record and the
// status becomes failed. Run itself only returns an error when even that
// terminal write is impossible.
func (c *Coordinator) Run(ctx context.Context, id string, opts RunOptions) error {
	logger := c.logger.With(zap.String("research_id", id))
	logger.Info("processing research")

	if err := c.run(ctx, id, opts, logger); err != nil {
		logger.Error("research failed", zap.Error(err))
		if ferr := c.store.UpdateStatus(ctx, id, types.StatusFailed, err.Error()); ferr != nil {
			// The failure itself is already logged; a failed terminal write
			// leaves the record stuck in processing for the publisher to
			// time out on.
			logger.Error("recording failure state failed", zap.Error(ferr))
			return fmt.Errorf("recording failure for %s: %w", id, ferr)
		}
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, id string, opts RunOptions, logger *zap.Logger) error {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading record: %w", err)
	}

	if err := c.store.UpdateStatus(ctx, id, types.StatusProcessing, ""); err != nil {
		return fmt.Errorf("marking processing: %w", err)
	}

	parent := c.parentContext(ctx, rec, logger)

	sources := c.selector.Select(ctx, rec.Query, rec.RequestedSources, parent)
	logger.Info("sources resolved", zap.Strings("sources", sources))

	results := c.dispatcher.QueryAll(ctx, rec.Query, sources)
	if err := c.store.SaveResults(ctx, id, results); err != nil {
		return fmt.Errorf("saving source results: %w", err)
	}

	text, err := c.synthesizer.Synthesize(ctx, rec.Query, results, parent, synthesis.Options{})
	if err != nil {
		return fmt.Errorf("synthesizing: %w", err)
	}
	if err := c.store.SaveSynthesis(ctx, id, text); err != nil {
		return fmt.Errorf("saving synthesis: %w", err)
	}

	if opts.IncludeCredibility {
		if err := c.store.SaveCredibility(ctx, id, defaultCredibility); err != nil {
			return fmt.Errorf("saving credibility: %w", err)
		}
	}

	if err := c.store.UpdateStatus(ctx, id, types.StatusCompleted, ""); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}

	logger.Info("research completed")
	return nil
}

// parentContext loads the follow-up context. A missing or unreadable parent
// is logged and treated as absent; it never fails the run.
func (c *Coordinator) parentContext(ctx context.Context, rec *types.ResearchRecord, logger *zap.Logger) *types.ParentContext {
	if rec.ParentID == "" {
		return nil
	}

	parent, err := c.store.Get(ctx, rec.ParentID)
	if err != nil {
		logger.Warn("parent research not found, proceeding without context",
			zap.String("parent_id", rec.ParentID),
			zap.Error(err))
		return nil
	}

	logger.Info("loaded parent context", zap.String("parent_id", rec.ParentID))
	return parent.ParentContext()
}
