package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
db:
  backend: badger
  path: /tmp/wiki
  collection: articles
logic:
  max_retries: 4
  request_timeout: 12
  delay_between_requests: 0.25
  min_words: 20
  target_document_count: 300
  reindex_period_days: 3
  num_workers: 8
wikipedia:
  base_url: https://tr.wikipedia.org/w/api.php
  user_agent: test-agent/1.0
sources:
  - name: science
    type: wikipedia_category
    category: "Kategori:Bilim"
    batch_size: 250
  - name: random
    type: random
logging:
  level: debug
  console: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, BackendBadger, cfg.DB.Backend)
	require.Equal(t, "articles", cfg.DB.Collection)
	require.Equal(t, 12*time.Second, cfg.Logic.RequestTimeoutDuration())
	require.Equal(t, 250*time.Millisecond, cfg.Logic.Delay())
	require.Equal(t, time.Second, cfg.Logic.RetryWait())
	require.Equal(t, 72*time.Hour, cfg.Logic.ReindexPeriod())
	require.Equal(t, 5000, cfg.Logic.CategoryLimit)
	require.Equal(t, "https://tr.wikipedia.org/wiki/", cfg.Wikipedia.ArticleBaseURL)
	require.False(t, cfg.Logging.Console)

	specs := cfg.SourceSpecs()
	require.Len(t, specs, 2)
	require.Equal(t, crawler.SourceSpec{Name: "science", Type: crawler.SourceCategory, Category: "Kategori:Bilim", BatchSize: 250}, specs[0])
	require.Equal(t, crawler.SourceRandom, specs[1].Type)
	require.Equal(t, defaultBatchSize, specs[1].BatchSize)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.DB.Backend)
	require.Equal(t, 5, cfg.Logic.NumWorkers)
	require.EqualValues(t, 50000, cfg.Logic.TargetDocumentCount)
	require.True(t, cfg.Logic.ReindexAfterCrawl)
	require.Empty(t, cfg.Sources)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers", func(c *Config) { c.Logic.NumWorkers = 0 }},
		{"retries", func(c *Config) { c.Logic.MaxRetries = 0 }},
		{"timeout", func(c *Config) { c.Logic.RequestTimeout = 0 }},
		{"min words", func(c *Config) { c.Logic.MinWords = -1 }},
		{"target", func(c *Config) { c.Logic.TargetDocumentCount = 0 }},
		{"base url", func(c *Config) { c.Wikipedia.BaseURL = "" }},
		{"user agent", func(c *Config) { c.Wikipedia.UserAgent = "" }},
		{"backend", func(c *Config) { c.DB.Backend = "mongo" }},
		{"gcs bucket", func(c *Config) { c.Export.Backend = ExportGCS }},
		{"source type", func(c *Config) {
			c.Sources = []SourceConfig{{Name: "x", Type: "rss"}}
		}},
		{"category missing", func(c *Config) {
			c.Sources = []SourceConfig{{Name: "x", Type: "category"}}
		}},
		{"source name", func(c *Config) {
			c.Sources = []SourceConfig{{Type: "random"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Sources = nil
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), crawler.ErrInvalidConfig)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	db := DBConfig{Host: "db", Port: 5433, Database: "wiki", User: "crawler", Password: "p@ss", SSLMode: "require", MaxConns: 4}
	require.Equal(t, "postgres://crawler:p%40ss@db:5433/wiki?pool_max_conns=4&sslmode=require", db.PostgresDSN())

	db.DSN = "postgres://override"
	require.Equal(t, "postgres://override", db.PostgresDSN())
}
