// Package postgres stores tweets in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/store"
)

const uniqueViolation = "23505"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a tweet table backed by a pgx pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
	log   *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open builds the pool. connectTimeout bounds each connection attempt.
func Open(ctx context.Context, dsn, table string, connectTimeout time.Duration, log *slog.Logger) (*Store, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if connectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = connectTimeout
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{pool: pool, table: table, log: logger.OrDiscard(log)}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// EnsureUniqueID creates the table with id as its primary key.
func (s *Store) EnsureUniqueID(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		ts1 TEXT NOT NULL,
		place_id TEXT,
		like_count BIGINT NOT NULL DEFAULT 0,
		author_handle TEXT NOT NULL
	)`, s.table)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	s.log.Debug("schema ready", slog.String("table", s.table))
	return nil
}

func (s *Store) Insert(ctx context.Context, tweet models.Tweet) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, text, ts1, place_id, like_count, author_handle)
		VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	_, err := s.pool.Exec(ctx, q,
		tweet.ID, tweet.Text, tweet.Timestamp, tweet.PlaceID, tweet.LikeCount, tweet.AuthorHandle)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tweet %s: %w", tweet.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert tweet: %w", err)
	}
	return nil
}

// Match narrows the scan to rows containing the pattern's literal prefix, if
// it has one, and applies the Go regexp to what comes back. Postgres regex
// syntax differs from RE2 (\b, inline flags, \z), so the pattern itself never
// reaches the server.
func (s *Store) Match(ctx context.Context, pattern *regexp.Regexp) ([]models.Tweet, error) {
	q, args := matchQuery(s.table, pattern)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tweets: %w", err)
	}
	defer rows.Close()

	var tweets []models.Tweet
	for rows.Next() {
		var t models.Tweet
		if err := rows.Scan(&t.ID, &t.Text, &t.Timestamp, &t.PlaceID, &t.LikeCount, &t.AuthorHandle); err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tweets: %w", err)
	}

	matched := store.Filter(tweets, pattern)
	s.log.Debug("scan finished",
		slog.String("pattern", pattern.String()),
		slog.Int("scanned", len(tweets)),
		slog.Int("matched", len(matched)),
	)
	return matched, nil
}

// matchQuery builds the candidate scan for pattern. Every match starts with
// the literal prefix, so rows without it can be skipped safely.
func matchQuery(table string, pattern *regexp.Regexp) (string, []any) {
	cols := fmt.Sprintf(`SELECT id, text, ts1, place_id, like_count, author_handle FROM %s`, table)

	prefix, _ := pattern.LiteralPrefix()
	// text columns cannot hold NUL, and pgx rejects it in parameters.
	if prefix == "" || strings.ContainsRune(prefix, 0) {
		return cols + ` ORDER BY seq`, nil
	}
	return cols + ` WHERE strpos(text, $1) > 0 ORDER BY seq`, []any{prefix}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
