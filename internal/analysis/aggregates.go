// Package analysis turns the tweets matching a search term into a Report.
//
// Each aggregate is an independent reducer over the match set, so they can
// be tested and reused in isolation. Every reducer has a defined result for
// an empty match set.
package analysis

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/DeafMist/tweet-radar/internal/models"
)

const (
	dateLayout    = "2006-01-02"
	timeOfDaySize = len("15:04:05")
)

// DayOfYear extracts the calendar day (1-366) from the date portion of a
// ts1 value such as "2021-07-14 09:30:00". ok is false when the date
// cannot be parsed.
func DayOfYear(ts string) (day int, ok bool) {
	date := strings.TrimSpace(ts)
	if i := strings.IndexAny(date, " T"); i >= 0 {
		date = date[:i]
	}
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, false
	}
	return parsed.YearDay(), true
}

// TimeOfDay returns the second space-separated token of ts, truncated to
// eight characters. A value without a time token yields "".
func TimeOfDay(ts string) string {
	parts := strings.Split(ts, " ")
	if len(parts) < 2 {
		return ""
	}
	tod := parts[1]
	if len(tod) > timeOfDaySize {
		tod = tod[:timeOfDaySize]
	}
	return tod
}

// DailyCounts counts matches per day of year. Days from different years
// share a bucket. Unparseable timestamps are skipped.
func DailyCounts(tweets []models.Tweet) map[int]int {
	counts := make(map[int]int)
	for _, t := range tweets {
		if day, ok := DayOfYear(t.Timestamp); ok {
			counts[day]++
		}
	}
	return counts
}

// DailyCount lists the distinct days of year in ascending order. The
// per-day counts are not part of the result.
func DailyCount(tweets []models.Tweet) []int {
	counts := DailyCounts(tweets)
	days := make([]int, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// UniqueAuthors counts distinct author handles.
func UniqueAuthors(tweets []models.Tweet) int {
	seen := make(map[string]struct{}, len(tweets))
	for _, t := range tweets {
		seen[t.AuthorHandle] = struct{}{}
	}
	return len(seen)
}

// AverageLikes returns the mean like count rounded to two decimals, or nil
// when there is nothing to average.
func AverageLikes(tweets []models.Tweet) *float64 {
	if len(tweets) == 0 {
		return nil
	}
	var sum float64
	for _, t := range tweets {
		sum += float64(t.LikeCount)
	}
	avg := math.Round(sum/float64(len(tweets))*100) / 100
	return &avg
}

// UniquePlaceIDs returns the distinct non-empty place ids, sorted.
func UniquePlaceIDs(tweets []models.Tweet) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, t := range tweets {
		if t.PlaceID == nil || *t.PlaceID == "" {
			continue
		}
		if _, ok := seen[*t.PlaceID]; ok {
			continue
		}
		seen[*t.PlaceID] = struct{}{}
		ids = append(ids, *t.PlaceID)
	}
	sort.Strings(ids)
	return ids
}

// HourlyCount counts matches per exact HH:MM:SS string.
func HourlyCount(tweets []models.Tweet) map[string]int {
	counts := make(map[string]int)
	for _, t := range tweets {
		counts[TimeOfDay(t.Timestamp)]++
	}
	return counts
}

// MostTweeted returns the handle with the most matches. Ties go to the
// lexicographically smallest handle. It returns nil for an empty input.
func MostTweeted(tweets []models.Tweet) *string {
	if len(tweets) == 0 {
		return nil
	}

	freq := make(map[string]int)
	for _, t := range tweets {
		freq[t.AuthorHandle]++
	}

	type kv struct {
		handle string
		count  int
	}

	pairs := make([]kv, 0, len(freq))
	for handle, count := range freq {
		pairs = append(pairs, kv{handle: handle, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].handle < pairs[j].handle
		}
		return pairs[i].count > pairs[j].count
	})

	top := pairs[0].handle
	return &top
}

// Build computes every aggregate for the match set.
func Build(tweets []models.Tweet) models.Report {
	return models.Report{
		DailyCount:     DailyCount(tweets),
		UniqueAuthors:  UniqueAuthors(tweets),
		AverageLikes:   AverageLikes(tweets),
		UniquePlaceIDs: UniquePlaceIDs(tweets),
		HourlyCount:    HourlyCount(tweets),
		MostTweeted:    MostTweeted(tweets),
	}
}
