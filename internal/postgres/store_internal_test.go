package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/store"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	require.True(t, isUniqueViolation(dup))
	require.True(t, isUniqueViolation(fmt.Errorf("exec: %w", dup)))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23502"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}

func TestOpenRejectsUnsafeTableName(t *testing.T) {
	_, err := Open(context.Background(), "postgres://localhost/db", "tweets; DROP TABLE x", 0, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid table name")
}

func TestMatchQueryNeverSendsRegexToServer(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		wantArgs []any
	}{
		{name: "plain literal", term: "Toxic", wantArgs: []any{"Toxic"}},
		{name: "literal then class", term: `Toxic\d+`, wantArgs: []any{"Toxic"}},
		{name: "word boundary", term: `\bToxic\b`},
		{name: "case insensitive", term: `(?i)toxic`},
		{name: "inline flag mid pattern", term: `a(?i)b`, wantArgs: []any{"a"}},
		{name: "unicode class", term: `\pL`},
		{name: "end of text", term: `Toxic\z`, wantArgs: []any{"Toxic"}},
		{name: "empty", term: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := matchQuery("tweets", regexp.MustCompile(tt.term))
			require.NotContains(t, q, "~")
			require.Contains(t, q, "FROM tweets")
			require.True(t, strings.HasSuffix(q, "ORDER BY seq"))
			require.Equal(t, tt.wantArgs, args)
			if len(args) == 0 {
				require.NotContains(t, q, "WHERE")
			} else {
				require.Contains(t, q, "strpos(text, $1) > 0")
			}
		})
	}
}

func TestMatchQueryKeepsEveryRegexMatch(t *testing.T) {
	texts := []string{
		"Toxic is my favourite",
		"listening to toxic again",
		"TOXIC",
		"aB and ab",
		"Toxic",
		"ends with Toxic",
		"Toxic123",
		"123 456",
		"",
	}
	terms := []string{`\bToxic\b`, `a(?i)b`, `\pL`, `Toxic\z`, `Toxic`, `(?i)toxic`, `Toxic\d+`, `^ends`}

	for _, term := range terms {
		t.Run(term, func(t *testing.T) {
			pattern := regexp.MustCompile(term)
			_, args := matchQuery("tweets", pattern)

			var candidates []models.Tweet
			var want []models.Tweet
			for i, text := range texts {
				tweet := models.Tweet{ID: fmt.Sprint(i), Text: text}
				// strpos(text, $1) > 0 behaves like strings.Contains.
				if len(args) == 0 || strings.Contains(text, args[0].(string)) {
					candidates = append(candidates, tweet)
				}
				if pattern.MatchString(text) {
					want = append(want, tweet)
				}
			}

			got := store.Filter(candidates, pattern)
			require.ElementsMatch(t, want, got)
		})
	}
}
