package analysis_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/tweet-radar/internal/analysis"
	"github.com/DeafMist/tweet-radar/internal/memstore"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/report"
)

type stubSink struct {
	envs []report.Envelope
	err  error
}

func (s *stubSink) Publish(_ context.Context, env report.Envelope) error {
	s.envs = append(s.envs, env)
	return s.err
}

type failingMatcher struct{}

func (failingMatcher) Match(context.Context, *regexp.Regexp) ([]models.Tweet, error) {
	return nil, errors.New("connection refused")
}

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	s, err := memstore.New("")
	require.NoError(t, err)

	ctx := context.Background()
	for _, tw := range []models.Tweet{
		{ID: "1", Text: "Toxic is a classic", Timestamp: "2021-01-01 10:00:00", LikeCount: 2, AuthorHandle: "fan1", PlaceID: ptr("p1")},
		{ID: "2", Text: "toxic vibes", Timestamp: "2021-01-02 11:30:00", LikeCount: 3, AuthorHandle: "fan2"},
		{ID: "3", Text: "Toxic forever", Timestamp: "2021-01-02 10:00:00", LikeCount: 4, AuthorHandle: "fan1", PlaceID: ptr("p2")},
		{ID: "4", Text: "Circus tour", Timestamp: "2021-02-01 09:00:00", LikeCount: 100, AuthorHandle: "fan3"},
	} {
		require.NoError(t, s.Insert(ctx, tw))
	}
	return s
}

func TestRunBuildsAndPublishesReport(t *testing.T) {
	sink := &stubSink{}
	a := analysis.New(seededStore(t), nil, sink)

	rep, err := a.Run(context.Background(), "Toxic")
	require.NoError(t, err)

	require.Equal(t, []int{1, 2}, rep.DailyCount)
	require.Equal(t, 1, rep.UniqueAuthors)
	require.Equal(t, 3.0, *rep.AverageLikes)
	require.Equal(t, []string{"p1", "p2"}, rep.UniquePlaceIDs)
	require.Equal(t, map[string]int{"10:00:00": 2}, rep.HourlyCount)
	require.Equal(t, "fan1", *rep.MostTweeted)

	require.Len(t, sink.envs, 1)
	require.Equal(t, "Toxic", sink.envs[0].Term)
	require.NotEmpty(t, sink.envs[0].RunID)
	require.Equal(t, rep, sink.envs[0].Report)
}

func TestRunRegexTerm(t *testing.T) {
	a := analysis.New(seededStore(t), nil)

	rep, err := a.Run(context.Background(), "(?i)toxic")
	require.NoError(t, err)
	require.Equal(t, 2, rep.UniqueAuthors)
	require.Equal(t, 3.0, *rep.AverageLikes)
	require.Equal(t, map[string]int{"10:00:00": 2, "11:30:00": 1}, rep.HourlyCount)
}

func TestRunNoMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	a := analysis.New(seededStore(t), nil, report.NewFileSink(path))

	rep, err := a.Run(context.Background(), "nothing matches this")
	require.NoError(t, err)
	require.Empty(t, rep.DailyCount)
	require.Zero(t, rep.UniqueAuthors)
	require.Nil(t, rep.AverageLikes)
	require.Empty(t, rep.UniquePlaceIDs)
	require.Empty(t, rep.HourlyCount)
	require.Nil(t, rep.MostTweeted)

	written, err := report.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, rep, written)
}

func TestRunWritesReportMatchingReturnValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	a := analysis.New(seededStore(t), nil, report.NewFileSink(path))

	rep, err := a.Run(context.Background(), "o")
	require.NoError(t, err)

	written, err := report.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, rep, written)
}

func TestRunInvalidTerm(t *testing.T) {
	sink := &stubSink{}
	a := analysis.New(seededStore(t), nil, sink)

	_, err := a.Run(context.Background(), "(unclosed")
	require.ErrorIs(t, err, analysis.ErrInvalidTerm)
	require.Empty(t, sink.envs)
}

func TestRunStoreFailure(t *testing.T) {
	a := analysis.New(failingMatcher{}, nil)

	_, err := a.Run(context.Background(), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "match tweets")
}

func TestRunSinkFailureStillReturnsReport(t *testing.T) {
	broken := &stubSink{err: errors.New("disk full")}
	ok := &stubSink{}
	a := analysis.New(seededStore(t), nil, broken, ok)

	rep, err := a.Run(context.Background(), "Circus")
	require.ErrorIs(t, err, analysis.ErrPublish)
	require.Contains(t, err.Error(), "disk full")
	require.Equal(t, "fan3", *rep.MostTweeted)
	require.Len(t, ok.envs, 1)
}

func TestRunRejectsBlankTerm(t *testing.T) {
	sink := &stubSink{}
	a := analysis.New(seededStore(t), nil, sink)

	for _, term := range []string{"", " ", "\t"} {
		_, err := a.Run(context.Background(), term)
		require.ErrorIs(t, err, analysis.ErrInvalidTerm, "term %q", term)
	}
	require.Empty(t, sink.envs)
}
