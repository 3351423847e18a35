// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	APIs     APIsConfig     `mapstructure:"apis"`
	RSS      RSSConfig      `mapstructure:"rss"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name             string   `mapstructure:"name"`
	Version          string   `mapstructure:"version"`
	Environment      string   `mapstructure:"environment"`
	SeedDemoUsers    bool     `mapstructure:"seed_demo_users"`
	ExampleQuestions []string `mapstructure:"example_questions"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int      `mapstructure:"write_timeout"` // milliseconds
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- LLM Provider Configuration ---

type LLMConfig struct {
	Claude ProviderConfig `mapstructure:"claude"`
	Gemini ProviderConfig `mapstructure:"gemini"`

	DecisionMaxTokens  int `mapstructure:"decision_max_tokens"`
	SynthesisMaxTokens int `mapstructure:"synthesis_max_tokens"`
	StepTimeout        int `mapstructure:"step_timeout"` // milliseconds
}

// ProviderConfig holds the per-vendor binding settings. Models is the
// ordered candidate list walked during capability probing.
type ProviderConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"`
	Models      []string `mapstructure:"models"`
	Timeout     int      `mapstructure:"timeout"` // milliseconds
	Temperature float64  `mapstructure:"temperature"`
}

// --- External API Configuration ---

type APIsConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
}

type WebSearchConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	EngineID         string `mapstructure:"engine_id"`
	MaxResults       int    `mapstructure:"max_results"`
	SnippetMaxLength int    `mapstructure:"snippet_max_length"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds
}

// --- RSS Configuration ---

type RSSConfig struct {
	Feeds              []FeedConfig `mapstructure:"feeds"`
	TopArticles        int          `mapstructure:"top_articles"`
	MaxEntriesPerFeed  int          `mapstructure:"max_entries_per_feed"`
	CacheTTLMinutes    int          `mapstructure:"cache_ttl_minutes"`
	FetchTimeout       int          `mapstructure:"fetch_timeout"` // milliseconds
	SummaryMaxLength   int          `mapstructure:"summary_max_length"`
}

type FeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// --- Token Budget Configuration ---

// BudgetConfig caps cumulative LLM token spend per user. A negative limit
// disables the gate.
type BudgetConfig struct {
	SessionTokenLimit int64 `mapstructure:"session_token_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
