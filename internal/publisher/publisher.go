// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publisher turns a research record into a live feed of snapshots.
// It re-reads the record from the store at a fixed cadence; there is no push
// channel between the coordinator and its observers.
package publisher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/store"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// Sentinel messages emitted as the feed's distinguished error shape.
const (
	timeoutMessage  = "Research processing timeout"
	notFoundMessage = "Research not found"
)

// Publisher streams record snapshots to subscribers.
type Publisher struct {
	store  *store.Store
	cfg    types.StreamConfig
	logger *zap.Logger
}

// New builds a publisher over the record store.
func New(st *store.Store, cfg types.StreamConfig, logger *zap.Logger) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 120
	}
	return &Publisher{store: st, cfg: cfg, logger: logger}
}

// Observe emits snapshots of the record until a terminal snapshot is sent,
// the poll budget runs out, or ctx is cancelled. The first snapshot is
// emitted immediately; each subsequent one is a fresh read after the poll
// interval. The channel is closed after the last emission, and the last
// emission is always terminal: a terminal-status record, the timeout
// sentinel, or the not-found sentinel.
func (p *Publisher) Observe(ctx context.Context, id string) <-chan types.Snapshot {
	out := make(chan types.Snapshot)

	go func() {
		defer close(out)

		for poll := 0; poll <= p.cfg.MaxPolls; poll++ {
			if poll > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.cfg.PollInterval):
				}
			}

			snap := p.snapshot(ctx, id)
			select {
			case <-ctx.Done():
				return
			case out <- snap:
			}
			if snap.Terminal() {
				return
			}
		}

		p.logger.Warn("stream exceeded poll budget",
			zap.String("research_id", id),
			zap.Int("max_polls", p.cfg.MaxPolls))
		select {
		case <-ctx.Done():
		case out <- types.Snapshot{Err: timeoutMessage}:
		}
	}()

	return out
}

// snapshot performs one fresh read. A record that cannot be found (deleted
// mid-stream or never created) becomes the not-found sentinel.
func (p *Publisher) snapshot(ctx context.Context, id string) types.Snapshot {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("stream read failed",
				zap.String("research_id", id),
				zap.Error(err))
		}
		return types.Snapshot{Err: notFoundMessage}
	}
	return types.Snapshot{Record: rec}
}
