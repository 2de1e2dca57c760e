// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned when a run is scheduled for a record that
// already has one in flight.
var ErrAlreadyRunning = errors.New("research already running")

// Queue schedules coordinator runs as background work decoupled from the
// submitting request. A per-record lease guarantees at most one active run
// per record id within the process.
type Queue struct {
	coord  *Coordinator
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]struct{}
	wg     sync.WaitGroup
}

// NewQueue builds a work queue over the coordinator.
func NewQueue(coord *Coordinator, logger *zap.Logger) *Queue {
	return &Queue{
		coord:  coord,
		logger: logger,
		leases: make(map[string]struct{}),
	}
}

// Schedule starts a run for the record in the background. The run uses its
// own root context so it outlives the submitting request. Returns
// ErrAlreadyRunning when the record already holds a lease.
func (q *Queue) Schedule(id string, opts RunOptions) error {
	q.mu.Lock()
	if _, held := q.leases[id]; held {
		q.mu.Unlock()
		return ErrAlreadyRunning
	}
	q.leases[id] = struct{}{}
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer q.release(id)

		if err := q.coord.Run(context.Background(), id, opts); err != nil {
			q.logger.Error("background run could not record its outcome",
				zap.String("research_id", id),
				zap.Error(err))
		}
	}()
	return nil
}

// Running reports whether the record currently holds a lease.
func (q *Queue) Running(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, held := q.leases[id]
	return held
}

// Wait blocks until all scheduled runs have finished. Used on shutdown so
// in-flight records reach a terminal state.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.leases, id)
}
