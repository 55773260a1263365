// Package ingest bulk-loads tab-separated tweet exports into a store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/DeafMist/tweet-radar/internal/analysis"
	"github.com/DeafMist/tweet-radar/internal/models"
)

// Columns lists the fields kept from each row. Any other column is ignored.
var Columns = []string{"text", "id", "ts1", "place_id", "like_count", "author_handle"}

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// missingPlace holds the lowercased tokens that spreadsheet and dataframe
// exports write for an absent place.
var missingPlace = map[string]struct{}{
	"": {}, "nan": {}, "-nan": {}, "null": {}, "none": {},
	"na": {}, "n/a": {}, "<na>": {}, "#na": {}, "#n/a": {}, "#n/a n/a": {},
	"1.#ind": {}, "-1.#ind": {}, "1.#qnan": {}, "-1.#qnan": {},
}

// RowError describes a row that could not be turned into a tweet.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Decoder reads tweets from a TSV stream with a header row.
type Decoder struct {
	r    *csv.Reader
	cols map[string]int
}

// NewDecoder reads the header and checks that every required column is
// present.
func NewDecoder(r io.Reader) (*Decoder, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var missing []string
	for _, name := range Columns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return &Decoder{r: cr, cols: cols}, nil
}

// Next returns the next tweet. It returns io.EOF at the end of input and a
// *RowError for a row that is malformed; the caller may keep reading after
// a RowError.
func (d *Decoder) Next() (models.Tweet, error) {
	record, err := d.r.Read()
	if err != nil {
		return models.Tweet{}, err
	}
	line, _ := d.r.FieldPos(0)

	field := func(name string) (string, bool) {
		i := d.cols[name]
		if i >= len(record) {
			return "", false
		}
		return record[i], true
	}

	for _, name := range Columns {
		if _, ok := field(name); !ok {
			return models.Tweet{}, &RowError{Line: line, Err: fmt.Errorf("row has %d fields, %q missing", len(record), name)}
		}
	}

	text, _ := field("text")
	id, _ := field("id")
	ts, _ := field("ts1")
	place, _ := field("place_id")
	likes, _ := field("like_count")
	author, _ := field("author_handle")

	id = strings.TrimSpace(id)
	if id == "" {
		return models.Tweet{}, &RowError{Line: line, Err: errors.New("empty id")}
	}

	ts = strings.TrimSpace(ts)
	if _, ok := analysis.DayOfYear(ts); !ok {
		return models.Tweet{}, &RowError{Line: line, Err: fmt.Errorf("unparseable ts1 %q", ts)}
	}

	likeCount, err := parseLikeCount(likes)
	if err != nil {
		return models.Tweet{}, &RowError{Line: line, Err: err}
	}

	return models.Tweet{
		Text:         text,
		ID:           id,
		Timestamp:    ts,
		PlaceID:      parsePlaceID(place),
		LikeCount:    likeCount,
		AuthorHandle: strings.TrimSpace(author),
	}, nil
}

// parseLikeCount accepts integers and integral floats such as "12.0".
// A blank value counts as zero likes.
func parseLikeCount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative like_count %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("invalid like_count %q", raw)
	}
	return int64(f), nil
}

func parsePlaceID(raw string) *string {
	raw = strings.TrimSpace(raw)
	if _, ok := missingPlace[strings.ToLower(raw)]; ok {
		return nil
	}
	return &raw
}
