package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the catalog engine. Values come from
// config.yaml with environment variable overrides; secrets (passwords, API
// keys) must come from environment variables only.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // set at load time via ldflags

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Sync     SyncConfig     `yaml:"sync"`
	Search   SearchConfig   `yaml:"search"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"catalog"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"catalog_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// URL renders the pgx connection string.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds the session-cache Redis configuration. An empty host
// disables the cache (search still works; "show more" returns nothing).
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// StorageConfig locates the batch files in object storage.
type StorageConfig struct {
	Bucket         string `yaml:"bucket" env:"STORAGE_BUCKET" env-default:"supplier-catalogs-2025"`
	Region         string `yaml:"region" env:"AWS_REGION" env-default:"eu-west-1"`
	SupplierMaster string `yaml:"supplier_master_key" env:"STORAGE_SUPPLIER_MASTER_KEY" env-default:"data/proveedores.csv"`
	ProductPrefix  string `yaml:"product_prefix" env:"STORAGE_PRODUCT_PREFIX" env-default:"data/"`
	// Endpoint overrides the S3 endpoint for S3-compatible stores in tests
	// and local development.
	Endpoint string `yaml:"endpoint" env:"STORAGE_ENDPOINT" env-default:""`
}

// AIConfig holds the embedding and relevance-judge collaborator settings.
type AIConfig struct {
	OpenAIKey       string        `yaml:"-" env:"OPENAI_API_KEY"`
	EmbeddingModel  string        `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-ada-002"`
	EmbedTimeout    time.Duration `yaml:"embed_timeout" env:"EMBED_TIMEOUT" env-default:"10s"`
	AnthropicKey    string        `yaml:"-" env:"ANTHROPIC_API_KEY"`
	JudgeModel      string        `yaml:"judge_model" env:"JUDGE_MODEL" env-default:"claude-3-5-haiku-latest"`
	JudgeTimeout    time.Duration `yaml:"judge_timeout" env:"JUDGE_TIMEOUT" env-default:"15s"`
}

// SyncConfig tunes the daily catalog synchronization run.
type SyncConfig struct {
	Workers            int    `yaml:"workers" env:"SYNC_WORKERS" env-default:"4"`
	Timezone           string `yaml:"timezone" env:"SYNC_TIMEZONE" env-default:"Europe/Madrid"`
	DefaultCountryCode string `yaml:"default_country_code" env:"DEFAULT_COUNTRY_CODE" env-default:"52"`
}

// SearchConfig tunes hybrid retrieval and result caching.
type SearchConfig struct {
	LexWeight     float64       `yaml:"lex_weight" env:"SEARCH_LEX_WEIGHT" env-default:"0.6"`
	VecWeight     float64       `yaml:"vec_weight" env:"SEARCH_VEC_WEIGHT" env-default:"0.4"`
	CandidateCap  int           `yaml:"candidate_cap" env:"SEARCH_CANDIDATE_CAP" env-default:"50"`
	ShownSupplier int           `yaml:"shown_suppliers" env:"SEARCH_SHOWN_SUPPLIERS" env-default:"3"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SEARCH_SESSION_TTL" env-default:"30m"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds configuration from environment variables only, for
// binaries that run without a config file (the sync job on a scheduler).
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Search.LexWeight < 0 || c.Search.VecWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.LexWeight+c.Search.VecWeight == 0 {
		return fmt.Errorf("at least one search weight must be positive")
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1")
	}
	return nil
}
