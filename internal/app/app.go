package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/marianozunino/keeper/internal/client"
	"github.com/marianozunino/keeper/internal/config"
	"github.com/marianozunino/keeper/internal/discovery"
	"github.com/marianozunino/keeper/internal/logging"
	"github.com/marianozunino/keeper/internal/pool"
	"github.com/marianozunino/keeper/internal/queue"
	"github.com/marianozunino/keeper/internal/refresher"
	"github.com/marianozunino/keeper/internal/scheduler"
	"github.com/marianozunino/keeper/internal/staleness"
)

// App represents the daemon
type App struct {
	config     *config.Config
	log        zerolog.Logger
	queue      *queue.Queue
	pool       *pool.Pool
	discoverer *discovery.Discoverer
	scheduler  *scheduler.Scheduler

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New wires every component from the configuration; logs go to out
func New(cfg *config.Config, out io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	root, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: out})
	if err != nil {
		return nil, err
	}
	root.Info().Object("config", cfg).Msg("Configuration loaded")

	finding := logging.Channel(root, logging.Finding)
	refreshing := logging.Channel(root, logging.Refreshing)

	sched, err := scheduler.New(cfg.Schedule, finding)
	if err != nil {
		return nil, err
	}

	api := client.NewClient(cfg.BaseURL, cfg.APIKey, cfg.HTTPTimeout)
	q := queue.New()

	discoverer := discovery.New(
		api,
		q,
		staleness.Classifier{Threshold: cfg.StaleAfter()},
		finding,
		sched.Next,
	)

	if err := sched.Schedule(discoverer.RunCycle); err != nil {
		q.Close()
		return nil, fmt.Errorf("schedule discovery: %w", err)
	}

	return &App{
		config:     cfg,
		log:        root,
		queue:      q,
		pool:       pool.New(cfg.Workers, q, refresher.New(api, refreshing, cfg.MaxDelay), refreshing),
		discoverer: discoverer,
		scheduler:  sched,
	}, nil
}

// Start launches the workers and the scheduler, which runs a first cycle
// right away
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.pool.Start(ctx)
	a.scheduler.Start(ctx)

	a.log.Info().Msg("Daemon started")
}

// Stop halts the scheduler and the workers; in-flight refreshes are
// abandoned
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.scheduler.Stop()
		if a.cancel != nil {
			a.cancel()
		}
		a.queue.Close()
	})
}

// Shutdown stops the daemon and waits for workers and running cycles until
// ctx is done
func (a *App) Shutdown(ctx context.Context) error {
	a.Stop()

	done := make(chan struct{})
	go func() {
		<-a.scheduler.Stop().Done()
		a.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.log.Info().Msg("Daemon stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
