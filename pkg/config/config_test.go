package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp switches into a fresh temp directory so Load() only sees files the test writes.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() {
		_ = os.Chdir(originalDir)
	})
	return tmpDir
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := chdirTemp(t)

	yamlContent := `
port: "9000"
env: "test"
database:
  host: "db.example.com"
  port: 3307
  user: "reporter"
  database: "shop"
stream:
  explanation_delay: 5ms
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlContent), 0644))

	t.Setenv("APP_PORT", "9100")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("MYSQL_PASSWORD", "s3cret")

	cfg, err := Load("test-version")
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port, "env should override yaml")
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "db.example.com", cfg.Database.Host, "yaml value should be read")
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 5*time.Millisecond, cfg.Stream.ExplanationDelay)
	assert.Equal(t, 50, cfg.Stream.ResultChunkSize, "unset values fall back to defaults")
}

func TestLoad_WithoutConfigFileUsesEnvAndDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MYSQL_DATABASE", "blog")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "blog", cfg.Database.Database)
	assert.Equal(t, 10, cfg.Stream.ExplanationChunkSize)
	assert.Equal(t, 30*time.Millisecond, cfg.Stream.ExplanationDelay)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.True(t, cfg.LLM.IsAvailable())
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	tmpDir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("MYSQL_USER=dotenv_user\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("MYSQL_USER") })

	cfg, err := Load("dev")
	require.NoError(t, err)
	assert.Equal(t, "dotenv_user", cfg.Database.User)
}

func TestLoad_DebugForcesDebugLevel(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DEBUG", "true")

	cfg, err := Load("dev")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown storage backend", env: map[string]string{"STORAGE_BACKEND": "redis"}},
		{name: "unknown llm provider", env: map[string]string{"LLM_PROVIDER": "bard"}},
		{name: "zero chunk size", env: map[string]string{"STREAM_RESULT_CHUNK_SIZE": "0"}},
		{name: "sqlite without path", env: map[string]string{"DB_TYPE": "sqlite"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("dev")
			assert.Error(t, err)
		})
	}
}

func TestLLMConfig_IsAvailable(t *testing.T) {
	tests := []struct {
		name     string
		cfg      LLMConfig
		expected bool
	}{
		{name: "openai with key", cfg: LLMConfig{Provider: "openai", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o", APIKey: "k"}, expected: true},
		{name: "openai without key", cfg: LLMConfig{Provider: "openai", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o"}, expected: false},
		{name: "local endpoint without key", cfg: LLMConfig{Provider: "openai", BaseURL: "http://localhost:11434/v1", Model: "llama3"}, expected: true},
		{name: "anthropic with key", cfg: LLMConfig{Provider: "anthropic", Model: "claude-sonnet-4-5", AnthropicAPIKey: "k"}, expected: true},
		{name: "anthropic without key", cfg: LLMConfig{Provider: "anthropic", Model: "claude-sonnet-4-5"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.IsAvailable())
		})
	}
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{BindAddr: "127.0.0.1", Port: "8000"}
	assert.Equal(t, "127.0.0.1:8000", cfg.Address())
}
