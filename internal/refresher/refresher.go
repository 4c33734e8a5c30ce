// Package refresher replays a view against a single file.
package refresher

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxDelay bounds the pause after each attempt
const DefaultMaxDelay = 5 * time.Second

var tokenPattern = regexp.MustCompile(`"view_token":"([^"]*)",`)

// ErrTokenNotFound is returned when the viewer page carries no usable token
var ErrTokenNotFound = errors.New("view token not found")

// ViewClient is the part of the API client the refresher needs
type ViewClient interface {
	ViewerPage(ctx context.Context, fileID string) (string, error)
	SubmitView(ctx context.Context, fileID, token string) error
}

// Refresher performs the two-step view protocol. Outcomes are only logged.
type Refresher struct {
	client   ViewClient
	log      zerolog.Logger
	maxDelay time.Duration

	// overridden in tests
	jitter func(max time.Duration) time.Duration
	sleep  func(ctx context.Context, d time.Duration)
}

// New creates a refresher pausing up to maxDelay after every attempt
func New(client ViewClient, log zerolog.Logger, maxDelay time.Duration) *Refresher {
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &Refresher{
		client:   client,
		log:      log,
		maxDelay: maxDelay,
		jitter:   uniform,
		sleep:    sleep,
	}
}

// Refresh fetches a view token for fileID and submits it. It always
// returns normally and pauses for a random duration before doing so.
func (r *Refresher) Refresh(ctx context.Context, fileID string) {
	defer r.pace(ctx)

	log := r.log.With().Str("file_id", fileID).Logger()
	log.Debug().Msg("Refreshing file")

	page, err := r.client.ViewerPage(ctx, fileID)
	if err != nil {
		log.Error().Err(err).Msg("Host is unavailable or blocking us")
		return
	}

	token, err := ExtractToken(page)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot find view token")
		return
	}
	log.Debug().Str("view_token", token).Msg("Found view token")

	if err := r.client.SubmitView(ctx, fileID, token); err != nil {
		log.Warn().Err(err).Msg("View failed")
		return
	}

	log.Info().Msg("View succeeded")
}

func (r *Refresher) pace(ctx context.Context) {
	r.sleep(ctx, r.jitter(r.maxDelay))
}

// ExtractToken returns the view token embedded in a viewer page
func ExtractToken(page string) (string, error) {
	m := tokenPattern.FindStringSubmatch(page)
	if m == nil || m[1] == "" {
		return "", ErrTokenNotFound
	}
	return m[1], nil
}

// uniform returns a duration in [0, max)
func uniform(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
