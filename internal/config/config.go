// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// Supported db.backend values.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// Supported export.backend values.
const (
	ExportLocal = "local"
	ExportGCS   = "gcs"
)

const defaultBatchSize = 1000

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	Logic     LogicConfig     `mapstructure:"logic"`
	Wikipedia WikipediaConfig `mapstructure:"wikipedia"`
	Sources   []SourceConfig  `mapstructure:"sources"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Seen      SeenConfig      `mapstructure:"seen"`
	Export    ExportConfig    `mapstructure:"export"`
	Server    ServerConfig    `mapstructure:"server"`
}

// DBConfig selects and addresses the document store.
type DBConfig struct {
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	SSLMode    string `mapstructure:"sslmode"`
	DSN        string `mapstructure:"dsn"`
	Path       string `mapstructure:"path"`
	MaxConns   int    `mapstructure:"max_conns"`
}

// LogicConfig governs fetch retries, pacing, filtering and termination.
type LogicConfig struct {
	MaxRetries           int     `mapstructure:"max_retries"`
	RequestTimeout       float64 `mapstructure:"request_timeout"`
	DelayBetweenRequests float64 `mapstructure:"delay_between_requests"`
	RetryDelay           float64 `mapstructure:"retry_delay"`
	MinWords             int     `mapstructure:"min_words"`
	TargetDocumentCount  int64   `mapstructure:"target_document_count"`
	ReindexPeriodDays    int     `mapstructure:"reindex_period_days"`
	NumWorkers           int     `mapstructure:"num_workers"`
	CategoryLimit        int     `mapstructure:"category_limit"`
	RandomChunkSize      int     `mapstructure:"random_chunk_size"`
	ReportEvery          int     `mapstructure:"report_every"`
	MaxBodyBytes         int     `mapstructure:"max_body_bytes"`
	ReindexAfterCrawl    bool    `mapstructure:"reindex_after_crawl"`
}

// WikipediaConfig addresses the upstream MediaWiki API.
type WikipediaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	ArticleBaseURL string `mapstructure:"article_base_url"`
}

// SourceConfig is one entry of the sources list.
type SourceConfig struct {
	Name      string `mapstructure:"name"`
	Type      string `mapstructure:"type"`
	Category  string `mapstructure:"category"`
	BatchSize int    `mapstructure:"batch_size"`
	// Generator switches random sampling to generator=random (up to 500 titles per call).
	Generator bool `mapstructure:"generator"`
}

// LoggingConfig controls zap outputs.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	Console     bool   `mapstructure:"console"`
	Development bool   `mapstructure:"development"`
}

// PublishConfig holds Pub/Sub change feed settings; empty topic disables publishing.
type PublishConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// SeenConfig enables the Redis-backed recently-fetched filter.
type SeenConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
	TTLHours  int    `mapstructure:"ttl_hours"`
}

// ExportConfig says where export artifacts are written.
type ExportConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// ServerConfig controls the ops HTTP endpoint.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WIKICRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.backend", BackendPostgres)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.database", "wikicrawler")
	v.SetDefault("db.collection", "documents")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "data/badger")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("logic.max_retries", 3)
	v.SetDefault("logic.request_timeout", 10)
	v.SetDefault("logic.delay_between_requests", 0.5)
	v.SetDefault("logic.retry_delay", 1)
	v.SetDefault("logic.min_words", 50)
	v.SetDefault("logic.target_document_count", 50000)
	v.SetDefault("logic.reindex_period_days", 7)
	v.SetDefault("logic.num_workers", 5)
	v.SetDefault("logic.category_limit", 5000)
	v.SetDefault("logic.random_chunk_size", 100)
	v.SetDefault("logic.report_every", 10)
	v.SetDefault("logic.max_body_bytes", 0)
	v.SetDefault("logic.reindex_after_crawl", true)
	v.SetDefault("wikipedia.base_url", "https://tr.wikipedia.org/w/api.php")
	v.SetDefault("wikipedia.user_agent", "wikicrawler/0.1 (+https://github.com/JakeFAU/wikicrawler)")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.development", false)
	v.SetDefault("seen.ttl_hours", 24)
	v.SetDefault("export.backend", ExportLocal)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.prefix", "exports")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
}

// applyDerived fills values that default from other keys.
func (c *Config) applyDerived() {
	if c.Wikipedia.ArticleBaseURL == "" {
		c.Wikipedia.ArticleBaseURL = articleBaseFrom(c.Wikipedia.BaseURL)
	}
	for i := range c.Sources {
		if c.Sources[i].BatchSize <= 0 {
			c.Sources[i].BatchSize = defaultBatchSize
		}
	}
}

func articleBaseFrom(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/wiki/"
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Logic.NumWorkers <= 0 {
		return invalid("logic.num_workers must be > 0")
	}
	if c.Logic.MaxRetries <= 0 {
		return invalid("logic.max_retries must be > 0")
	}
	if c.Logic.RequestTimeout <= 0 {
		return invalid("logic.request_timeout must be > 0")
	}
	if c.Logic.DelayBetweenRequests < 0 || c.Logic.RetryDelay < 0 {
		return invalid("logic delays must be >= 0")
	}
	if c.Logic.MinWords < 0 {
		return invalid("logic.min_words must be >= 0")
	}
	if c.Logic.TargetDocumentCount <= 0 {
		return invalid("logic.target_document_count must be > 0")
	}
	if c.Logic.ReindexPeriodDays < 0 {
		return invalid("logic.reindex_period_days must be >= 0")
	}
	if c.Wikipedia.BaseURL == "" {
		return invalid("wikipedia.base_url is required")
	}
	if c.Wikipedia.UserAgent == "" {
		return invalid("wikipedia.user_agent is required")
	}
	switch c.DB.Backend {
	case BackendPostgres, BackendBadger, BackendMemory:
	default:
		return invalid(fmt.Sprintf("db.backend %q is not supported", c.DB.Backend))
	}
	switch c.Export.Backend {
	case ExportLocal:
	case ExportGCS:
		if c.Export.Bucket == "" {
			return invalid("export.bucket is required for the gcs backend")
		}
	default:
		return invalid(fmt.Sprintf("export.backend %q is not supported", c.Export.Backend))
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return invalid("server.port must be > 0 when the server is enabled")
	}
	for i, src := range c.Sources {
		typ, err := crawler.ParseSourceType(src.Type)
		if err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if src.Name == "" {
			return invalid(fmt.Sprintf("sources[%d].name is required", i))
		}
		if typ == crawler.SourceCategory && src.Category == "" {
			return invalid(fmt.Sprintf("sources[%d].category is required for category sources", i))
		}
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", crawler.ErrInvalidConfig, msg)
}

// SourceSpecs converts the configured sources into crawler specs. Call after Validate.
func (c Config) SourceSpecs() []crawler.SourceSpec {
	specs := make([]crawler.SourceSpec, 0, len(c.Sources))
	for _, src := range c.Sources {
		typ, _ := crawler.ParseSourceType(src.Type)
		specs = append(specs, crawler.SourceSpec{
			Name:      src.Name,
			Type:      typ,
			Category:  src.Category,
			BatchSize: src.BatchSize,
			Generator: src.Generator,
		})
	}
	return specs
}

// RequestTimeoutDuration returns the per-attempt HTTP timeout.
func (l LogicConfig) RequestTimeoutDuration() time.Duration {
	return seconds(l.RequestTimeout)
}

// Delay returns the politeness delay between upstream requests.
func (l LogicConfig) Delay() time.Duration {
	return seconds(l.DelayBetweenRequests)
}

// RetryWait returns the fixed pause between fetch attempts.
func (l LogicConfig) RetryWait() time.Duration {
	return seconds(l.RetryDelay)
}

// ReindexPeriod returns the staleness threshold.
func (l LogicConfig) ReindexPeriod() time.Duration {
	return time.Duration(l.ReindexPeriodDays) * 24 * time.Hour
}

// TTL returns the seen-filter expiry.
func (s SeenConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// PostgresDSN returns db.dsn when set, otherwise a DSN assembled from the discrete fields.
func (d DBConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Database,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	if d.MaxConns > 0 {
		q.Set("pool_max_conns", fmt.Sprint(d.MaxConns))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
