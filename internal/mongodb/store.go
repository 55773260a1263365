// Package mongodb stores tweets in a MongoDB collection.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/store"
)

// Store is a tweet collection backed by MongoDB.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to uri. connectTimeout bounds server selection so that an
// unreachable deployment fails instead of hanging.
func Open(ctx context.Context, uri, database, collection string, connectTimeout time.Duration, log *slog.Logger) (*Store, error) {
	opts := options.Client().ApplyURI(uri)
	if connectTimeout > 0 {
		opts.SetServerSelectionTimeout(connectTimeout).SetConnectTimeout(connectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collection),
		log:    logger.OrDiscard(log),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureUniqueID creates a unique index on id. Creating an identical index
// twice is accepted by the server.
func (s *Store) EnsureUniqueID(ctx context.Context) error {
	name, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create unique index: %w", err)
	}
	s.log.Debug("unique index ready", slog.String("index", name))
	return nil
}

func (s *Store) Insert(ctx context.Context, tweet models.Tweet) error {
	if _, err := s.coll.InsertOne(ctx, tweet); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("tweet %s: %w", tweet.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert tweet: %w", err)
	}
	return nil
}

// Match narrows the find to documents containing the pattern's literal
// prefix and applies the Go regexp to the candidates. PCRE and RE2 disagree on
// enough syntax that the pattern itself is never sent to the server.
func (s *Store) Match(ctx context.Context, pattern *regexp.Regexp) ([]models.Tweet, error) {
	cur, err := s.coll.Find(ctx, matchFilter(pattern), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find tweets: %w", err)
	}
	defer cur.Close(ctx)

	var tweets []models.Tweet
	if err := cur.All(ctx, &tweets); err != nil {
		return nil, fmt.Errorf("decode tweets: %w", err)
	}

	matched := store.Filter(tweets, pattern)
	s.log.Debug("scan finished",
		slog.String("pattern", pattern.String()),
		slog.Int("scanned", len(tweets)),
		slog.Int("matched", len(matched)),
	)
	return matched, nil
}

// matchFilter selects the candidates for pattern: every document when it has
// no literal prefix, otherwise those whose text contains the quoted prefix.
func matchFilter(pattern *regexp.Regexp) bson.M {
	prefix, _ := pattern.LiteralPrefix()
	// BSON regex patterns are C strings.
	if prefix == "" || strings.ContainsRune(prefix, 0) {
		return bson.M{}
	}
	return bson.M{"text": bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(prefix)}}}
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
