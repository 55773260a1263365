// Package memstore keeps tweets in process memory, optionally backed by a
// JSON file for small datasets.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/store"
)

// Store holds tweets in insertion order.
type Store struct {
	path string

	mu     sync.RWMutex
	tweets []models.Tweet
	ids    map[string]struct{}
	dirty  bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store. When path is not empty, existing tweets are
// loaded from it and Close writes the collection back.
func New(path string) (*Store, error) {
	s := &Store{
		path: path,
		ids:  make(map[string]struct{}),
	}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var tweets []models.Tweet
	if err := json.Unmarshal(data, &tweets); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	for _, t := range tweets {
		if _, ok := s.ids[t.ID]; ok {
			continue
		}
		s.ids[t.ID] = struct{}{}
		s.tweets = append(s.tweets, t)
	}
	return nil
}

// EnsureUniqueID is a no-op: ids are always unique in memory.
func (s *Store) EnsureUniqueID(context.Context) error {
	return nil
}

func (s *Store) Insert(_ context.Context, tweet models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[tweet.ID]; ok {
		return fmt.Errorf("tweet %s: %w", tweet.ID, store.ErrDuplicate)
	}
	s.ids[tweet.ID] = struct{}{}
	s.tweets = append(s.tweets, tweet)
	s.dirty = true
	return nil
}

func (s *Store) Match(_ context.Context, pattern *regexp.Regexp) ([]models.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Filter(s.tweets, pattern), nil
}

// Len reports how many tweets are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tweets)
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Close flushes the collection to disk when the store is file-backed.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" || !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.tweets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tweets: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}
