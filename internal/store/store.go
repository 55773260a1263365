// Package store defines the capability set every tweet backend provides.
package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/DeafMist/tweet-radar/internal/models"
)

var (
	// ErrDuplicate is returned by Insert when a record with the same id exists.
	ErrDuplicate = errors.New("duplicate tweet id")
	// ErrUnavailable marks connection failures to the backing store.
	ErrUnavailable = errors.New("store unavailable")
)

// Store persists tweets and scans them by text pattern.
type Store interface {
	// EnsureUniqueID creates the uniqueness constraint on id if it is missing.
	EnsureUniqueID(ctx context.Context) error
	// Insert writes one tweet. A repeated id yields ErrDuplicate and leaves
	// the stored record untouched.
	Insert(ctx context.Context, tweet models.Tweet) error
	// Match returns every tweet whose text matches pattern.
	Match(ctx context.Context, pattern *regexp.Regexp) ([]models.Tweet, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Filter keeps the tweets whose text matches pattern. Backends that narrow the
// scan on the server use it to apply Go regexp semantics to the candidates.
func Filter(tweets []models.Tweet, pattern *regexp.Regexp) []models.Tweet {
	out := make([]models.Tweet, 0, len(tweets))
	for _, t := range tweets {
		if pattern.MatchString(t.Text) {
			out = append(out, t)
		}
	}
	return out
}
