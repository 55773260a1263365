package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/report"
)

var (
	// ErrInvalidTerm is returned when the search term is blank or not a valid
	// regexp.
	ErrInvalidTerm = errors.New("invalid search term")
	// ErrPublish means the report was built but at least one sink rejected it.
	// Run still returns the report alongside this error.
	ErrPublish = errors.New("publish report")
)

// Matcher finds the tweets whose text matches a pattern.
type Matcher interface {
	Match(ctx context.Context, pattern *regexp.Regexp) ([]models.Tweet, error)
}

// Analyzer answers report queries against a tweet store.
type Analyzer struct {
	store Matcher
	sinks []report.Sink
	log   *slog.Logger
	now   func() time.Time
}

// New creates an analyzer that publishes every report to sinks.
func New(store Matcher, log *slog.Logger, sinks ...report.Sink) *Analyzer {
	return &Analyzer{
		store: store,
		sinks: sinks,
		log:   logger.OrDiscard(log),
		now:   time.Now,
	}
}

// CompileTerm turns a search term into a case-sensitive, unanchored pattern.
// A blank term would match every tweet and is rejected.
func CompileTerm(term string) (*regexp.Regexp, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: term is empty", ErrInvalidTerm)
	}
	pattern, err := regexp.Compile(term)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTerm, err)
	}
	return pattern, nil
}

// Run builds the report for term and hands it to every sink. When a sink
// fails the report is still returned, together with an error wrapping
// ErrPublish.
func (a *Analyzer) Run(ctx context.Context, term string) (models.Report, error) {
	pattern, err := CompileTerm(term)
	if err != nil {
		return models.Report{}, err
	}

	runID := uuid.NewString()
	log := a.log.With(slog.String("run_id", runID), slog.String("term", term))

	start := a.now()
	tweets, err := a.store.Match(ctx, pattern)
	if err != nil {
		return models.Report{}, fmt.Errorf("match tweets: %w", err)
	}

	rep := Build(tweets)
	log.Info("report built",
		slog.Int("matched", len(tweets)),
		slog.Int("unique_authors", rep.UniqueAuthors),
		slog.Duration("took", a.now().Sub(start)),
	)

	env := report.Envelope{
		RunID:       runID,
		Term:        term,
		GeneratedAt: a.now().UTC(),
		Report:      rep,
	}

	var errs []error
	for _, sink := range a.sinks {
		if err := sink.Publish(ctx, env); err != nil {
			log.Warn("publish report", slog.Any("err", err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return rep, fmt.Errorf("%w: %w", ErrPublish, errors.Join(errs...))
	}

	return rep, nil
}
