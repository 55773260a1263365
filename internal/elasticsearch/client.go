package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/tweet-radar/internal/logger"
	"github.com/DeafMist/tweet-radar/internal/models"
	"github.com/DeafMist/tweet-radar/internal/store"
)

const (
	scrollKeepAlive = time.Minute
	scrollPageSize  = 500
)

// Client wraps go-elasticsearch with helpers tailored to the tweet index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

var _ store.Store = (*Client)(nil)

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"text":          map[string]any{"type": "text"},
			"id":            map[string]any{"type": "keyword"},
			"ts1":           map[string]any{"type": "keyword"},
			"place_id":      map[string]any{"type": "keyword"},
			"like_count":    map[string]any{"type": "long"},
			"author_handle": map[string]any{"type": "keyword"},
		},
	},
}

// New instantiates the Elasticsearch client. connectTimeout bounds dialing
// each node so an unreachable cluster fails fast.
func New(addr, index string, connectTimeout time.Duration, log *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses:    []string{addr},
		DisableRetry: true,
	}
	if connectTimeout > 0 {
		cfg.Transport = &http.Transport{
			DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
			ResponseHeaderTimeout: 2 * connectTimeout,
		}
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{es: es, index: index, log: logger.OrDiscard(log)}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Close is a no-op; the HTTP transport holds no session state.
func (c *Client) Close(context.Context) error {
	return nil
}

// EnsureUniqueID creates the index with its mapping when it does not exist.
// Tweet ids double as document ids, so the index itself enforces uniqueness.
func (c *Client) EnsureUniqueID(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index failed: %s", res.Status())
	}

	payload, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// Another loader may have created it between the two calls.
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("created index", slog.String("index", c.index))
	return nil
}

// Insert writes a tweet with create semantics; an existing id is reported as
// store.ErrDuplicate.
func (c *Client) Insert(ctx context.Context, tweet models.Tweet) error {
	payload, err := json.Marshal(tweet)
	if err != nil {
		return fmt.Errorf("marshal tweet: %w", err)
	}

	req := esapi.CreateRequest{
		Index:      c.index,
		DocumentID: tweet.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index tweet: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return fmt.Errorf("tweet %s: %w", tweet.ID, store.ErrDuplicate)
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index tweet failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

type scrollPage struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			Source models.Tweet `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Match refreshes the index and scrolls over every document, keeping those
// whose text matches pattern. Lucene regexps are anchored and use a different
// syntax, so matching happens here rather than in a regexp query.
func (c *Client) Match(ctx context.Context, pattern *regexp.Regexp) ([]models.Tweet, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	body := map[string]any{
		"query": map[string]any{
			"match_all": map[string]any{},
		},
		"sort": []string{"_doc"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal scan body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithScroll(scrollKeepAlive),
		c.es.Search.WithSize(scrollPageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	page, err := decodePage(res, "search")
	if err != nil {
		return nil, err
	}

	matched := make([]models.Tweet, 0)
	scrollID := page.ScrollID
	defer func() { c.clearScroll(scrollID) }()

	for len(page.Hits.Hits) > 0 {
		for _, hit := range page.Hits.Hits {
			if pattern.MatchString(hit.Source.Text) {
				matched = append(matched, hit.Source)
			}
		}

		res, err := c.es.Scroll(
			c.es.Scroll.WithContext(ctx),
			c.es.Scroll.WithScrollID(scrollID),
			c.es.Scroll.WithScroll(scrollKeepAlive),
		)
		if err != nil {
			return nil, fmt.Errorf("scroll: %w", err)
		}
		page, err = decodePage(res, "scroll")
		if err != nil {
			return nil, err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}

	c.log.Debug("scan finished", slog.String("pattern", pattern.String()), slog.Int("matched", len(matched)))
	return matched, nil
}

func decodePage(res *esapi.Response, op string) (*scrollPage, error) {
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%s failed: %s", op, strings.TrimSpace(string(data)))
	}

	var page scrollPage
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	return &page, nil
}

func (c *Client) refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("refresh index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("refresh index failed: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

func (c *Client) clearScroll(scrollID string) {
	if scrollID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.es.ClearScroll(
		c.es.ClearScroll.WithContext(ctx),
		c.es.ClearScroll.WithScrollID(scrollID),
	)
	if err != nil {
		c.log.Warn("clear scroll", slog.Any("err", err))
		return
	}
	res.Body.Close()
}
