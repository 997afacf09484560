package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Hubspot   HubspotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// HubspotConfig holds HubSpot private-app credentials and client tuning.
type HubspotConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// NotionConfig holds Notion API credentials and the analysis-type database ID.
type NotionConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	TypesDB string `yaml:"types_db" mapstructure:"types_db"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEALBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit", 9)
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Secrets have no file defaults; empty registrations make the keys
	// visible to Unmarshal when set only through AutomaticEnv.
	v.SetDefault("hubspot.token", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.types_db", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields the given modes depend on are set and
// in range. Modes: brief, analyze, serve, store, sync. Problems across
// all modes are reported in one error.
func (c *Config) Validate(modes ...string) error {
	var problems []string

	requireHubspot := func() {
		if c.Hubspot.Token == "" {
			problems = append(problems, "hubspot.token is required")
		}
		if c.Hubspot.RateLimit < 1 || c.Hubspot.RateLimit > 100 {
			problems = append(problems, "hubspot.rate_limit must be between 1 and 100")
		}
	}
	requireClients := func() {
		requireHubspot()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Anthropic.MaxTokens < 1 || c.Anthropic.MaxTokens > 64000 {
			problems = append(problems, "anthropic.max_tokens must be between 1 and 64000")
		}
	}
	requireStore := func() {
		switch c.Store.Driver {
		case "postgres", "sqlite":
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	for _, mode := range modes {
		switch mode {
		case "brief":
			requireHubspot()
		case "analyze":
			requireClients()
		case "serve":
			requireClients()
			requireStore()
			if c.Server.Port <= 0 {
				problems = append(problems, "server.port must be > 0")
			}
		case "store":
			requireStore()
		case "sync":
			if c.Notion.Token == "" {
				problems = append(problems, "notion.token is required")
			}
			if c.Notion.TypesDB == "" {
				problems = append(problems, "notion.types_db is required")
			}
		default:
			return eris.Errorf("config: unknown mode %s", mode)
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
