// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.osbuddy/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model selection, embedder model, generation timeout
//   - Storage: MongoDB connection and local data directory
//   - Retrieval: top-k, chunking parameters
//   - Chat: history window, refusal policy inputs
//   - Server: listen address, identity header, rate limiting
//
// Security: sensitive values (API key, Mongo URI) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation, checked with errors.Is.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidHistoryLimit indicates the history window is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history_limit")

	// ErrInvalidRetention indicates the retention window is out of range.
	ErrInvalidRetention = errors.New("invalid retention_days")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidUserHeader indicates the identity header name is empty.
	ErrInvalidUserHeader = errors.New("invalid user_header")
)

// Defaults for the tutoring pipeline.
const (
	// DefaultModelName is the generation model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the embedding model used for the passage index.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultHistoryLimit is the number of most recent messages included in
	// an assembled prompt. Older messages are dropped, never summarized.
	DefaultHistoryLimit = 10

	// DefaultTopK is the number of passages retrieved per query.
	DefaultTopK = 3

	// DefaultRetentionDays is the remote-store retention window: a session
	// whose last_active is older than this is expired by the backing store.
	// The local file fallback performs no expiry.
	DefaultRetentionDays = 365
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI configuration
	GeminiAPIKey  string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration
	MongoURI string `mapstructure:"mongo_uri" json:"mongo_uri"` // SENSITIVE: masked in MarshalJSON
	DataDir  string `mapstructure:"data_dir" json:"data_dir"`

	// Retrieval configuration
	TopK         int `mapstructure:"top_k" json:"top_k"`
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Chat configuration
	HistoryLimit  int `mapstructure:"history_limit" json:"history_limit"`
	RetentionDays int `mapstructure:"retention_days" json:"retention_days"`

	// Server configuration
	Addr       string `mapstructure:"addr" json:"addr"`
	UserHeader string `mapstructure:"user_header" json:"user_header"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".osbuddy")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use defaults.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("data_dir", configDir)

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("chunk_size", 2000)
	v.SetDefault("chunk_overlap", 200)

	v.SetDefault("history_limit", DefaultHistoryLimit)
	v.SetDefault("retention_days", DefaultRetentionDays)

	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("user_header", "X-User-ID")
	v.SetDefault("rate_burst", 60)
	v.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment, never from the config file search
// path in deployments.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("mongo_uri", "MONGO_URI")

	mustBind("model_name", "OSBUDDY_MODEL_NAME")
	mustBind("data_dir", "OSBUDDY_DATA_DIR")
	mustBind("addr", "OSBUDDY_ADDR")
	mustBind("user_header", "OSBUDDY_USER_HEADER")
	mustBind("trust_proxy", "OSBUDDY_TRUST_PROXY")
	mustBind("rate_burst", "OSBUDDY_RATE_BURST")
}

// Validate checks configuration ranges. Fails fast with sentinel errors.
//
// Note: a missing GEMINI_API_KEY is deliberately NOT a validation error.
// The server starts without it and the generator reports a configuration
// failure per chat turn, matching the refusal-over-crash policy.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.TopK < 1 || c.TopK > 10 {
		return fmt.Errorf("%w: %d (must be 1-10)", ErrInvalidTopK, c.TopK)
	}
	if c.HistoryLimit < 2 || c.HistoryLimit > 1000 {
		return fmt.Errorf("%w: %d (must be 2-1000)", ErrInvalidHistoryLimit, c.HistoryLimit)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("%w: %d (must be >= 1)", ErrInvalidRetention, c.RetentionDays)
	}
	if c.ChunkSize < 100 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.UserHeader == "" {
		return ErrInvalidUserHeader
	}
	return nil
}

// SessionsFilePath is the local fallback store: a single JSON file mapping
// session id to session record, rewritten wholesale on each save.
func (c *Config) SessionsFilePath() string {
	return filepath.Join(c.DataDir, "sessions.json")
}

// IndexPath is the persisted vector index location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "index")
}

// CorpusDir holds the reference documents (.md/.txt) the index is built from.
func (c *Config) CorpusDir() string {
	return filepath.Join(c.DataDir, "corpus")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Short secrets are fully masked; longer ones keep two characters at each
// end for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.MongoURI = maskSecret(a.MongoURI)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
