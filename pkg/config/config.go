package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for ekaya-sqlchat.
// Configuration can come from YAML file (config.yaml), a .env file, or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"APP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"APP_PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Debug    bool   `yaml:"debug" env:"DEBUG" env-default:"false"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database the questions are answered against.
	Database DatabaseConfig `yaml:"database"`

	// Chat-completion and SQL generation model.
	LLM LLMConfig `yaml:"llm"`

	Generator GeneratorConfig `yaml:"generator"`
	Storage   StorageConfig   `yaml:"storage"`
	Stream    StreamConfig    `yaml:"stream"`
	Rules     RulesConfig     `yaml:"rules"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// DatabaseConfig holds the target database connection settings.
// Env names match the MYSQL_* variables used by existing deployments.
type DatabaseConfig struct {
	Type         string        `yaml:"type" env:"DB_TYPE" env-default:"mysql"`
	Host         string        `yaml:"host" env:"MYSQL_HOST" env-default:"localhost"`
	Port         int           `yaml:"port" env:"MYSQL_PORT" env-default:"3306"`
	User         string        `yaml:"user" env:"MYSQL_USER" env-default:"root"`
	Password     string        `yaml:"-" env:"MYSQL_PASSWORD"` // Secret - not in YAML
	Database     string        `yaml:"database" env:"MYSQL_DATABASE" env-default:""`
	Path         string        `yaml:"path" env:"DB_PATH" env-default:""` // sqlite only
	SSLMode      string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	QueryTimeout time.Duration `yaml:"query_timeout" env:"DB_QUERY_TIMEOUT" env-default:"0s"`
}

// LLMConfig holds the completion service settings.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider        string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL         string        `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model           string        `yaml:"model" env:"LLM_MODEL" env-default:"gpt-3.5-turbo"`
	EmbeddingModel  string        `yaml:"embedding_model" env:"LLM_EMBEDDING_MODEL" env-default:""`
	MaxTokens       int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	Timeout         time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"0s"`
	APIKey          string        `yaml:"-" env:"OPENAI_API_KEY"`    // Secret - not in YAML
	AnthropicAPIKey string        `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
}

// IsAvailable returns true if the configured provider has enough settings to be called.
// Local OpenAI-compatible endpoints may run without an API key.
func (c *LLMConfig) IsAvailable() bool {
	switch c.Provider {
	case "anthropic":
		return c.AnthropicAPIKey != "" && c.Model != ""
	default:
		if c.Model == "" || c.BaseURL == "" {
			return false
		}
		return c.APIKey != "" || !strings.Contains(c.BaseURL, "api.openai.com")
	}
}

// GeneratorConfig holds settings for the SQL generator and its training store.
type GeneratorConfig struct {
	TrainingDBPath string `yaml:"training_db_path" env:"GENERATOR_TRAINING_DB" env-default:"./data/training.db"`
	// MaxExamples bounds how many training items of each kind are injected into a prompt.
	MaxExamples int `yaml:"max_examples" env:"GENERATOR_MAX_EXAMPLES" env-default:"10"`
}

// StorageConfig selects where conversation transcripts live.
type StorageConfig struct {
	Backend          string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file"`
	ConversationsDir string `yaml:"conversations_dir" env:"CONVERSATIONS_DIR" env-default:"./data/conversations"`
	SQLitePath       string `yaml:"sqlite_path" env:"CONVERSATIONS_SQLITE_PATH" env-default:"./data/conversations.db"`
}

// StreamConfig controls the pacing of streamed chat responses.
type StreamConfig struct {
	ExplanationChunkSize int           `yaml:"explanation_chunk_size" env:"STREAM_EXPLANATION_CHUNK_SIZE" env-default:"10"`
	ExplanationDelay     time.Duration `yaml:"explanation_delay" env:"STREAM_EXPLANATION_DELAY" env-default:"30ms"`
	ResultChunkSize      int           `yaml:"result_chunk_size" env:"STREAM_RESULT_CHUNK_SIZE" env-default:"50"`
	ResultDelay          time.Duration `yaml:"result_delay" env:"STREAM_RESULT_DELAY" env-default:"20ms"`
	TrailingDelay        time.Duration `yaml:"trailing_delay" env:"STREAM_TRAILING_DELAY" env-default:"100ms"`
}

// RulesConfig points at an optional YAML file overriding the built-in heuristics.
type RulesConfig struct {
	Path string `yaml:"path" env:"RULES_PATH" env-default:""`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from .env and config.yaml with environment variable overrides.
// Both files are optional; without them every value comes from the environment or defaults.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// .env only fills variables that are not already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unsupported storage backend %q (want file or sqlite)", c.Storage.Backend)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q (want openai or anthropic)", c.LLM.Provider)
	}

	if c.Stream.ExplanationChunkSize <= 0 || c.Stream.ResultChunkSize <= 0 {
		return fmt.Errorf("stream chunk sizes must be positive")
	}

	if c.Database.Type == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite")
	}

	return nil
}

// Address returns the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}
