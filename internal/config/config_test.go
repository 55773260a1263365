package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/tweet-radar/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.FileEnv, "STORE_BACKEND", "STORE_CONNECT_TIMEOUT",
		"ELASTICSEARCH_ADDR", "ELASTICSEARCH_INDEX",
		"MONGO_URI", "MONGO_DATABASE", "MONGO_COLLECTION",
		"POSTGRES_DSN", "POSTGRES_TABLE", "MEMORY_STORE_PATH",
		"INSERT_PROGRESS_EVERY", "INSERT_RATE_LIMIT", "INSERT_DEDUPE_CAPACITY",
		"REPORT_PATH", "REPORT_KAFKA_TOPIC", "API_BIND_ADDR",
	} {
		t.Setenv(key, "")
	}
	// An empty broker list still counts as set, so unset it explicitly.
	t.Setenv("REPORT_KAFKA_BROKERS", "")
	require.NoError(t, os.Unsetenv("REPORT_KAFKA_BROKERS"))
}

func TestLoadInsertDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadInsert()
	require.NoError(t, err)

	require.Equal(t, config.BackendElasticsearch, cfg.StoreBackend)
	require.Equal(t, "http://localhost:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "tweets", cfg.ElasticsearchIndex)
	require.Equal(t, "tweets_by_britney", cfg.MongoCollection)
	require.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	require.Equal(t, 1000, cfg.ProgressEvery)
	require.Zero(t, cfg.RateLimit)
}

func TestLoadInsertOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DATABASE", "db")
	t.Setenv("MONGO_COLLECTION", "coll")
	t.Setenv("STORE_CONNECT_TIMEOUT", "3s")
	t.Setenv("INSERT_PROGRESS_EVERY", "50")
	t.Setenv("INSERT_RATE_LIMIT", "12.5")
	t.Setenv("INSERT_DEDUPE_CAPACITY", "7")

	cfg, err := config.LoadInsert()
	require.NoError(t, err)

	require.Equal(t, config.BackendMongo, cfg.StoreBackend)
	require.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	require.Equal(t, "db", cfg.MongoDatabase)
	require.Equal(t, "coll", cfg.MongoCollection)
	require.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	require.Equal(t, 50, cfg.ProgressEvery)
	require.Equal(t, 12.5, cfg.RateLimit)
	require.Equal(t, 7, cfg.DedupeCapacity)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "cassandra")

	_, err := config.LoadFetch()
	require.Error(t, err)
}

func TestLoadFetchKafka(t *testing.T) {
	clearEnv(t)
	t.Setenv("REPORT_PATH", "out/report.json")
	t.Setenv("REPORT_KAFKA_BROKERS", "broker-a:9092, broker-b:9093")
	t.Setenv("REPORT_KAFKA_TOPIC", "reports")

	cfg, err := config.LoadFetch()
	require.NoError(t, err)
	require.Equal(t, "out/report.json", cfg.Path)
	require.Equal(t, []string{"broker-a:9092", "broker-b:9093"}, cfg.KafkaBrokers)
	require.Equal(t, "reports", cfg.KafkaTopic)
}

func TestLoadAPIFromFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: postgres
  postgres_dsn: postgres://u:p@pg:5432/tweets
  postgres_table: posts
  connect_timeout: 4s
report:
  path: /tmp/result.json
api:
  bind_addr: ":9090"
`), 0o644))
	t.Setenv(config.FileEnv, path)
	t.Setenv("POSTGRES_TABLE", "tweets_override")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, config.BackendPostgres, cfg.StoreBackend)
	require.Equal(t, "postgres://u:p@pg:5432/tweets", cfg.PostgresDSN)
	require.Equal(t, "tweets_override", cfg.PostgresTable)
	require.Equal(t, 4*time.Second, cfg.ConnectTimeout)
	require.Equal(t, "/tmp/result.json", cfg.Path)
	require.Equal(t, ":9090", cfg.BindAddr)
}
