// Package discovery finds files due for a refresh and queues them.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/marianozunino/keeper/internal/client"
	"github.com/marianozunino/keeper/internal/model"
	"github.com/marianozunino/keeper/internal/staleness"
)

// Lister fetches the account file listing
type Lister interface {
	ListFiles(ctx context.Context) ([]model.FileRecord, error)
}

// Enqueuer accepts file ids without blocking on capacity
type Enqueuer interface {
	Enqueue(id string) bool
}

// Discoverer runs refresh cycles
type Discoverer struct {
	lister     Lister
	queue      Enqueuer
	classifier staleness.Classifier
	log        zerolog.Logger
	now        func() time.Time
	next       func() time.Time
}

// New creates a discoverer. next reports the next scheduled cycle and may
// be nil.
func New(lister Lister, queue Enqueuer, classifier staleness.Classifier, log zerolog.Logger, next func() time.Time) *Discoverer {
	return &Discoverer{
		lister:     lister,
		queue:      queue,
		classifier: classifier,
		log:        log,
		now:        time.Now,
		next:       next,
	}
}

// RunCycle lists the account files and enqueues the stale ones in listing
// order. Every failure is logged and ends the cycle with the queue untouched.
func (d *Discoverer) RunCycle(ctx context.Context) {
	defer d.logNextRun()

	files, err := d.lister.ListFiles(ctx)
	if err != nil {
		d.logListError(err)
		return
	}
	d.log.Info().Int("files", len(files)).Msg("Fetched file list")

	now := d.now().UTC()
	var stale []string
	for _, rec := range files {
		ok, err := d.classifier.Classify(rec, now)
		if err != nil {
			d.log.Warn().
				Err(err).
				Str("file_id", rec.ID).
				Str("date_last_view", rec.DateLastView).
				Msg("Skipping file with unreadable last view date")
			continue
		}
		if ok {
			stale = append(stale, rec.ID)
		}
	}

	if len(stale) == 0 {
		d.log.Info().Int("candidates", 0).Int("enqueued", 0).Msg("No files need to refresh")
		return
	}

	enqueued := 0
	for _, id := range stale {
		if d.queue.Enqueue(id) {
			enqueued++
		}
	}

	d.log.Info().
		Int("candidates", len(stale)).
		Int("enqueued", enqueued).
		Msg("Files need to refresh, added to refreshing queue")
}

func (d *Discoverer) logListError(err error) {
	var hostErr *client.HostUnavailableError
	var parseErr *client.ParseError

	switch {
	case errors.Is(err, client.ErrUnauthorized):
		d.log.Warn().Msg("Fetching file list failed, invalid API key")
	case errors.As(err, &hostErr) && hostErr.NetworkFailure():
		d.log.Error().Err(err).Msg("Host is unavailable")
	case errors.As(err, &hostErr):
		d.log.Warn().Int("status", hostErr.StatusCode).Msg("Unknown error, host may be unavailable")
	case errors.As(err, &parseErr):
		d.log.Error().Err(err).Msg("File list parsing failed, host may be misbehaving")
	default:
		d.log.Error().Err(err).Msg("Fetching file list failed")
	}
}

func (d *Discoverer) logNextRun() {
	if d.next == nil {
		return
	}
	if next := d.next(); !next.IsZero() {
		d.log.Info().Time("next_run", next).Msg("Next finding scheduled")
	}
}
