// Package staleness decides which files are due for a refresh.
package staleness

import (
	"errors"
	"fmt"
	"time"

	"github.com/marianozunino/keeper/internal/model"
)

// DefaultThreshold is the host's retention window
const DefaultThreshold = 30 * 24 * time.Hour

// Timestamp layouts observed in the file listing
var layouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05Z",
}

// ErrUnrecognizedTimestamp is wrapped by every ParseError
var ErrUnrecognizedTimestamp = errors.New("unrecognized timestamp format")

// ParseError reports a last-view timestamp in none of the known layouts
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnrecognizedTimestamp, e.Value)
}

func (e *ParseError) Unwrap() error {
	return ErrUnrecognizedTimestamp
}

// ParseTimestamp parses a listing timestamp into UTC
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ParseError{Value: value}
}

// IsStale reports whether more than DefaultThreshold has passed since lastView
func IsStale(lastView, now time.Time) bool {
	return Classifier{}.IsStale(lastView, now)
}

// Classifier applies a staleness threshold to file records
type Classifier struct {
	Threshold time.Duration // DefaultThreshold when zero
}

// IsStale reports whether more than the threshold has passed since lastView
func (c Classifier) IsStale(lastView, now time.Time) bool {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return now.UTC().Sub(lastView.UTC()) > threshold
}

// Classify parses the record's last view and classifies it
func (c Classifier) Classify(rec model.FileRecord, now time.Time) (bool, error) {
	lastView, err := ParseTimestamp(rec.DateLastView)
	if err != nil {
		return false, err
	}
	return c.IsStale(lastView, now), nil
}
