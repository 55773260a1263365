package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/DeafMist/tweet-radar/internal/dedupe"
	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/store"
)

// Inserter is the part of store.Store the loader needs.
type Inserter interface {
	EnsureUniqueID(ctx context.Context) error
	Insert(ctx context.Context, tweet models.Tweet) error
}

// Options tune a Loader.
type Options struct {
	// ProgressEvery logs progress after this many rows.
	ProgressEvery int
	// RateLimit caps inserts per second; zero means unlimited.
	RateLimit float64
	// DedupeCapacity bounds how many ids are remembered within one load.
	DedupeCapacity int
}

// Loader inserts tweets one at a time. A duplicate id rejects only that
// row; any other store error aborts the load.
type Loader struct {
	store         Inserter
	log           *slog.Logger
	limiter       *rate.Limiter
	seen          *dedupe.Set
	progressEvery int
}

// NewLoader builds a loader writing to s.
func NewLoader(s Inserter, log *slog.Logger, opts Options) *Loader {
	limit := rate.Inf
	burst := 1
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		if b := int(opts.RateLimit); b > burst {
			burst = b
		}
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 1000
	}
	if opts.DedupeCapacity <= 0 {
		opts.DedupeCapacity = 100000
	}

	return &Loader{
		store:         s,
		log:           logger.OrDiscard(log),
		limiter:       rate.NewLimiter(limit, burst),
		seen:          dedupe.NewSet(opts.DedupeCapacity),
		progressEvery: opts.ProgressEvery,
	}
}

// LoadFile opens path and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (models.InsertSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.InsertSummary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.Load(ctx, f)
}

// Load reads a TSV stream and inserts every valid row. The header is
// validated before anything is written.
func (l *Loader) Load(ctx context.Context, r io.Reader) (models.InsertSummary, error) {
	var sum models.InsertSummary

	dec, err := NewDecoder(r)
	if err != nil {
		return sum, err
	}

	if err := l.store.EnsureUniqueID(ctx); err != nil {
		return sum, fmt.Errorf("ensure unique id: %w", err)
	}

	for {
		tweet, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var rowErr *RowError
		switch {
		case errors.As(err, &rowErr):
			sum.Rows++
			sum.Rejected++
			l.log.Warn("row rejected", slog.Int("line", rowErr.Line), slog.Any("err", rowErr.Err))
			l.progress(sum)
			continue
		case err != nil:
			return sum, fmt.Errorf("read row: %w", err)
		}

		sum.Rows++
		if err := l.insert(ctx, tweet, &sum); err != nil {
			return sum, err
		}
		l.progress(sum)
	}

	l.log.Info("load finished",
		slog.Int("rows", sum.Rows),
		slog.Int("inserted", sum.Inserted),
		slog.Int("duplicates", sum.Duplicates),
		slog.Int("rejected", sum.Rejected),
	)
	return sum, nil
}

func (l *Loader) insert(ctx context.Context, tweet models.Tweet, sum *models.InsertSummary) error {
	if !l.seen.Add(tweet.ID) {
		sum.Duplicates++
		l.log.Warn("duplicate id in input", slog.String("id", tweet.ID))
		return nil
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for insert slot: %w", err)
	}

	if err := l.store.Insert(ctx, tweet); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			sum.Duplicates++
			l.log.Warn("duplicate id rejected by store", slog.String("id", tweet.ID))
			return nil
		}
		return fmt.Errorf("insert tweet %s: %w", tweet.ID, err)
	}

	sum.Inserted++
	return nil
}

func (l *Loader) progress(sum models.InsertSummary) {
	if sum.Rows%l.progressEvery != 0 {
		return
	}
	l.log.Info("insert progress",
		slog.Int("rows", sum.Rows),
		slog.Int("inserted", sum.Inserted),
		slog.Int("duplicates", sum.Duplicates),
	)
}
