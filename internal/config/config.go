// Package config loads layered configuration (defaults -> YAML file ->
// .env -> environment) into a typed Config struct, following the same
// viper/mapstructure/godotenv pattern the teacher codebase uses for its own
// configuration layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	MaxConnections   int    `mapstructure:"max_connections"`
	IdleConnections  int    `mapstructure:"idle_connections"`
}

// FeedsConfig configures fetch behavior shared by all ingest methods.
type FeedsConfig struct {
	IngestIntervalMinutes int           `mapstructure:"ingest_interval_minutes"`
	MaxFetchRetries       int           `mapstructure:"max_fetch_retries"`
	RequestTimeoutSeconds int           `mapstructure:"request_timeout_seconds"`
	UserAgent             string        `mapstructure:"user_agent"`
	RequestTimeout        time.Duration `mapstructure:"-"`
}

// RelevanceConfig configures the keyword/LLM relevance filter.
type RelevanceConfig struct {
	LLMRelevanceEnabled  bool     `mapstructure:"llm_relevance_enabled"`
	LLMEvaluationMode    bool     `mapstructure:"llm_evaluation_mode"`
	OllamaBaseURL        string   `mapstructure:"ollama_base_url"`
	OllamaModel          string   `mapstructure:"ollama_model"`
	OllamaTimeoutSeconds int      `mapstructure:"ollama_timeout_seconds"`
	TopicKeywords        []string `mapstructure:"topic_keywords"`
}

// ClusteringConfig configures the clusterer's thresholds and time windows.
type ClusteringConfig struct {
	TimeWindowHours         int     `mapstructure:"cluster_time_window_hours"`
	GameTimeWindowHours     int     `mapstructure:"game_time_window_hours"`
	OpinionTimeWindowHours  int     `mapstructure:"opinion_time_window_hours"`
	SimilarityThreshold     float64 `mapstructure:"cluster_similarity_threshold"`
	EntityOverlapThreshold  float64 `mapstructure:"entity_overlap_threshold"`
	TokenSimilarityThreshold float64 `mapstructure:"token_similarity_threshold"`
}

// SchedulerConfig configures the periodic task runner.
type SchedulerConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// SubmissionsConfig configures user-submission intake.
type SubmissionsConfig struct {
	RateLimitPerIPPerHour int `mapstructure:"submission_rate_limit_per_ip"`
}

// FeedCacheConfig configures the optional local conditional-GET cache.
type FeedCacheConfig struct {
	Directory string        `mapstructure:"directory"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config is the fully assembled, validated application configuration.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Feeds       FeedsConfig       `mapstructure:"feeds"`
	Relevance   RelevanceConfig   `mapstructure:"relevance"`
	Clustering  ClusteringConfig  `mapstructure:"clustering"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Submissions SubmissionsConfig `mapstructure:"submissions"`
	FeedCache   FeedCacheConfig   `mapstructure:"feed_cache"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

var (
	mu            sync.Mutex
	globalConfig  *Config
)

// Load reads configuration from defaults, an optional YAML file, a .env
// file (if present), and the environment, in that precedence order
// (environment wins). It validates the result and caches it for Get.
func Load(configFile string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	_ = godotenv.Load() // optional; absence is not an error

	v := viper.New()
	setDefaults(v)
	bindEnvironmentVariables(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	postProcessConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// Get returns the previously Load-ed configuration, or an error if Load has
// not been called yet.
func Get() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalConfig == nil {
		return nil, fmt.Errorf("config not loaded: call config.Load first")
	}
	return globalConfig, nil
}

// Reset clears the cached configuration. Exists for test isolation.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.connection_string", "postgres://localhost:5432/aggregator?sslmode=disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.idle_connections", 2)

	v.SetDefault("feeds.ingest_interval_minutes", 10)
	v.SetDefault("feeds.max_fetch_retries", 3)
	v.SetDefault("feeds.request_timeout_seconds", 30)
	v.SetDefault("feeds.user_agent", "aggregator-bot/1.0 (+https://example.invalid/bot)")

	v.SetDefault("relevance.llm_relevance_enabled", true)
	v.SetDefault("relevance.llm_evaluation_mode", false)
	v.SetDefault("relevance.ollama_base_url", "http://localhost:11434")
	v.SetDefault("relevance.ollama_model", "qwen2.5-instruct:1.5b")
	v.SetDefault("relevance.ollama_timeout_seconds", 30)
	v.SetDefault("relevance.topic_keywords", []string{})

	v.SetDefault("clustering.cluster_time_window_hours", 72)
	v.SetDefault("clustering.game_time_window_hours", 24)
	v.SetDefault("clustering.opinion_time_window_hours", 12)
	v.SetDefault("clustering.cluster_similarity_threshold", 0.62)
	v.SetDefault("clustering.entity_overlap_threshold", 0.50)
	v.SetDefault("clustering.token_similarity_threshold", 0.40)

	v.SetDefault("scheduler.max_concurrency", 5)

	v.SetDefault("submissions.submission_rate_limit_per_ip", 10)

	v.SetDefault("feed_cache.directory", "./data/feedcache")
	v.SetDefault("feed_cache.ttl", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// bindEnvironmentVariables binds a handful of keys that commonly arrive
// under more than one name (deployment environments rarely agree), first
// non-empty value wins.
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvAliases(v, "relevance.ollama_base_url", "OLLAMA_BASE_URL", "OLLAMA_URL")
	bindEnvAliases(v, "relevance.ollama_model", "OLLAMA_MODEL")
	bindEnvAliases(v, "database.connection_string", "DATABASE_URL", "POSTGRES_URL", "DATABASE_CONNECTION_STRING")
}

func bindEnvAliases(v *viper.Viper, key string, envNames ...string) {
	for _, name := range envNames {
		if val := os.Getenv(name); val != "" {
			v.Set(key, val)
			return
		}
	}
	_ = v.BindEnv(key, envNames...)
}

func postProcessConfig(cfg *Config) {
	cfg.Feeds.RequestTimeout = time.Duration(cfg.Feeds.RequestTimeoutSeconds) * time.Second
	if cfg.FeedCache.Directory != "" {
		if expanded, err := filepath.Abs(cfg.FeedCache.Directory); err == nil {
			cfg.FeedCache.Directory = expanded
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.ConnectionString == "" {
		return fmt.Errorf("database.connection_string is required")
	}
	if cfg.Feeds.IngestIntervalMinutes <= 0 {
		return fmt.Errorf("feeds.ingest_interval_minutes must be positive")
	}
	if cfg.Clustering.SimilarityThreshold <= 0 || cfg.Clustering.SimilarityThreshold > 1 {
		return fmt.Errorf("clustering.cluster_similarity_threshold must be in (0, 1]")
	}
	if cfg.Clustering.EntityOverlapThreshold <= 0 || cfg.Clustering.EntityOverlapThreshold > 1 {
		return fmt.Errorf("clustering.entity_overlap_threshold must be in (0, 1]")
	}
	if cfg.Clustering.TokenSimilarityThreshold <= 0 || cfg.Clustering.TokenSimilarityThreshold > 1 {
		return fmt.Errorf("clustering.token_similarity_threshold must be in (0, 1]")
	}
	if cfg.Relevance.OllamaBaseURL == "" {
		return fmt.Errorf("relevance.ollama_base_url is required")
	}
	return nil
}
