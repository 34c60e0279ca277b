package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete, immutable runtime configuration. It is built
// once at process start from an optional config.yaml plus environment
// variables (env wins) and never mutated afterwards.
type Config struct {
	// Jira connection. JiraURL, JiraUser and JiraAPIKey are required.
	JiraURL    string
	JiraUser   string
	JiraAPIKey string
	ProjectKey string

	// Retrieval tunables.
	PageSize      int
	Timeout       time.Duration
	Flavor        string // "classic" or "versioned"
	EstimateField string

	// Optional downstream sinks; each is disabled when empty.
	DatabaseDriver string // "postgres" or "sqlite"
	DatabaseDSN    string
	RedisURL       string
	AMQPUrl        string
	AMQPQueue      string

	// Logging.
	LogLevel  string
	LogFormat string
}

// fileConfig mirrors the config.yaml layout.
type fileConfig struct {
	Jira struct {
		ProjectKey    string `yaml:"project_key"`
		PageSize      int    `yaml:"page_size"`
		Timeout       string `yaml:"timeout"`
		Flavor        string `yaml:"flavor"`
		EstimateField string `yaml:"estimate_field"`
	} `yaml:"jira"`
	Storage struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	AMQP struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"amqp"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logger"`
}

// Load builds the configuration: defaults, then config.yaml at path (if
// present), then environment variables on top. Call LoadEnv first so
// .env files and AWS secrets are visible here.
func Load(path string) (*Config, error) {
	cfg := &Config{
		PageSize:  100,
		Timeout:   30 * time.Second,
		Flavor:    "classic",
		LogLevel:  "info",
		LogFormat: "console",
		AMQPQueue: "jira.issue-batches",
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			applyFile(cfg, fc)
		}
	}

	applyEnv(cfg)

	if cfg.JiraURL == "" {
		return nil, fmt.Errorf("JIRA_URL is required")
	}
	if cfg.JiraUser == "" {
		return nil, fmt.Errorf("JIRA_USER is required")
	}
	if cfg.JiraAPIKey == "" {
		return nil, fmt.Errorf("JIRA_API_KEY is required")
	}
	if cfg.Flavor != "classic" && cfg.Flavor != "versioned" {
		return nil, fmt.Errorf("unknown API flavor %q", cfg.Flavor)
	}

	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.Jira.ProjectKey != "" {
		cfg.ProjectKey = fc.Jira.ProjectKey
	}
	if fc.Jira.PageSize > 0 {
		cfg.PageSize = fc.Jira.PageSize
	}
	if fc.Jira.Timeout != "" {
		if d, err := time.ParseDuration(fc.Jira.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if fc.Jira.Flavor != "" {
		cfg.Flavor = fc.Jira.Flavor
	}
	if fc.Jira.EstimateField != "" {
		cfg.EstimateField = fc.Jira.EstimateField
	}
	if fc.Storage.Driver != "" {
		cfg.DatabaseDriver = fc.Storage.Driver
	}
	if fc.Storage.DSN != "" {
		cfg.DatabaseDSN = fc.Storage.DSN
	}
	if fc.Redis.URL != "" {
		cfg.RedisURL = fc.Redis.URL
	}
	if fc.AMQP.URL != "" {
		cfg.AMQPUrl = fc.AMQP.URL
	}
	if fc.AMQP.Queue != "" {
		cfg.AMQPQueue = fc.AMQP.Queue
	}
	if fc.Logger.Level != "" {
		cfg.LogLevel = fc.Logger.Level
	}
	if fc.Logger.Format != "" {
		cfg.LogFormat = fc.Logger.Format
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.JiraURL, "JIRA_URL")
	setString(&cfg.JiraUser, "JIRA_USER")
	setString(&cfg.JiraAPIKey, "JIRA_API_KEY")
	setString(&cfg.ProjectKey, "JIRA_PROJECT_KEY")
	setString(&cfg.Flavor, "JIRA_API_FLAVOR")
	setString(&cfg.EstimateField, "JIRA_ESTIMATE_FIELD")
	setString(&cfg.DatabaseDriver, "DATABASE_DRIVER")
	setString(&cfg.DatabaseDSN, "DATABASE_DSN")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.AMQPUrl, "AMQP_URL")
	setString(&cfg.AMQPQueue, "AMQP_QUEUE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if v := os.Getenv("JIRA_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv("JIRA_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
