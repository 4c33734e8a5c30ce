// Package pool runs the fixed set of refresh workers.
package pool

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultSize is the number of workers and the concurrency ceiling
const DefaultSize = 10

// Source hands out file ids to workers
type Source interface {
	Dequeue(ctx context.Context) (string, bool)
}

// Refresher processes one file id
type Refresher interface {
	Refresh(ctx context.Context, fileID string)
}

// Pool drains a Source with a fixed number of workers, each calling the
// Refresher synchronously, so at most size refreshes run at once.
type Pool struct {
	size      int
	source    Source
	refresher Refresher
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// New creates a pool; size is clamped to [1, DefaultSize]
func New(size int, source Source, refresher Refresher, log zerolog.Logger) *Pool {
	if size <= 0 || size > DefaultSize {
		size = DefaultSize
	}
	return &Pool{
		size:      size,
		source:    source,
		refresher: refresher,
		log:       log,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. They run until ctx is cancelled or the
// source is exhausted.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	p.log.Info().Int("workers", p.size).Msg("Refresh workers started")
}

// Wait blocks until every worker has exited
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context, worker int) {
	defer p.wg.Done()

	for {
		id, ok := p.source.Dequeue(ctx)
		if !ok {
			p.log.Debug().Int("worker", worker).Msg("Refresh worker stopped")
			return
		}
		p.process(ctx, worker, id)
	}
}

func (p *Pool) process(ctx context.Context, worker int, id string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Int("worker", worker).
				Str("file_id", id).
				Interface("panic", r).
				Msg("Refresh panicked")
		}
	}()

	p.refresher.Refresh(ctx, id)
}
