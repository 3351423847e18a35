package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: property_intelligence
    user: app
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfigFile(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "property-intelligence", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.anthropic.com", cfg.LLM.Claude.BaseURL)
	assert.NotEmpty(t, cfg.LLM.Claude.Models)
	assert.NotEmpty(t, cfg.LLM.Gemini.Models)
	assert.Equal(t, 300, cfg.LLM.DecisionMaxTokens)
	assert.Equal(t, 1000, cfg.LLM.SynthesisMaxTokens)
	assert.Equal(t, int64(50000), cfg.Budget.SessionTokenLimit)
	assert.Len(t, cfg.RSS.Feeds, 3)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_ExplicitValuesWin(t *testing.T) {
	yaml := minimalYAML + `
server:
  port: 9090
budget:
  session_token_limit: 1234
llm:
  claude:
    models:
      - claude-test-model
`
	cfg, err := LoadFromFile(writeConfigFile(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1234), cfg.Budget.SessionTokenLimit)
	assert.Equal(t, []string{"claude-test-model"}, cfg.LLM.Claude.Models)
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	yaml := minimalYAML + `
    password: ${TEST_DB_PASSWORD}
`
	cfg, err := LoadFromFile(writeConfigFile(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
}

func TestLoadFromFile_CredentialEnvOverride(t *testing.T) {
	t.Setenv("CLAUDE_API_KEY", "env-claude-key")
	t.Setenv("WEB_SEARCH_ENGINE_ID", "env-cx")

	cfg, err := LoadFromFile(writeConfigFile(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-claude-key", cfg.LLM.Claude.APIKey)
	assert.Equal(t, "env-cx", cfg.APIs.WebSearch.EngineID)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing postgres host",
			yaml: `
database:
  postgres:
    database: d
    user: u
`,
		},
		{
			name: "missing database name",
			yaml: `
database:
  postgres:
    host: localhost
    user: u
`,
		},
		{
			name: "invalid port",
			yaml: minimalYAML + `
server:
  port: 99999
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfigFile(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetDuration(30000))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	dsn := PostgresConfig{
		Host: "db", Port: 5432, Database: "pi", User: "app",
		Password: "pw", SSLMode: "disable",
	}.GetDSN()
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=pi sslmode=disable", dsn)
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", ServerConfig{Host: "0.0.0.0", Port: 8080}.Addr())
}
