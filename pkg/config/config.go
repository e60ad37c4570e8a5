package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-mapper.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Knowledge base (Wikibase) the mappings target
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`

	// Editor session behaviour
	Editor EditorConfig `yaml:"editor"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_mapper"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// KnowledgeBaseConfig points at the Wikibase instance used for property
// lookups and constraint checks.
type KnowledgeBaseConfig struct {
	BaseURL         string `yaml:"base_url" env:"KB_BASE_URL" env-default:"https://www.wikidata.org"`
	APIPath         string `yaml:"api_path" env:"KB_API_PATH" env-default:"/w/api.php"`
	UserAgent       string `yaml:"user_agent" env:"KB_USER_AGENT" env-default:"ekaya-mapper"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" env:"KB_TIMEOUT_SECONDS" env-default:"15"`
	DefaultLanguage string `yaml:"default_language" env:"KB_DEFAULT_LANGUAGE" env-default:"en"`
}

// Timeout returns the HTTP timeout for knowledge-base calls.
func (c *KnowledgeBaseConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EditorConfig holds limits and lifecycle settings for editor sessions.
type EditorConfig struct {
	LabelMaxLength int `yaml:"label_max_length" env:"EDITOR_LABEL_MAX_LENGTH" env-default:"250"`
	AliasMaxLength int `yaml:"alias_max_length" env:"EDITOR_ALIAS_MAX_LENGTH" env-default:"100"`
	// RulesFile is an optional YAML completeness-rule file. Empty uses the built-in rules.
	RulesFile string `yaml:"rules_file" env:"EDITOR_RULES_FILE" env-default:""`
	// AutosaveOnDrop persists the schema after every accepted drop.
	AutosaveOnDrop bool `yaml:"autosave_on_drop" env:"EDITOR_AUTOSAVE_ON_DROP" env-default:"false"`
	// SessionTTLMinutes is how long an idle editor session is kept.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" env:"EDITOR_SESSION_TTL_MINUTES" env-default:"60"`
}

// SessionTTL returns the idle expiry for editor sessions.
func (c *EditorConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateEditor(); err != nil {
		return nil, fmt.Errorf("invalid editor configuration: %w", err)
	}

	if err := cfg.validateKnowledgeBase(); err != nil {
		return nil, fmt.Errorf("invalid knowledge_base configuration: %w", err)
	}

	// A database or Wikibase on the Docker host is reached through host.docker.internal
	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.KnowledgeBase.BaseURL = ResolveURLForDocker(cfg.KnowledgeBase.BaseURL)

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (c *Config) validateEditor() error {
	if c.Editor.LabelMaxLength <= 0 || c.Editor.AliasMaxLength <= 0 {
		return fmt.Errorf("label_max_length and alias_max_length must be positive")
	}
	if c.Editor.SessionTTLMinutes <= 0 {
		return fmt.Errorf("session_ttl_minutes must be positive")
	}
	return nil
}

func (c *Config) validateKnowledgeBase() error {
	u, err := url.Parse(c.KnowledgeBase.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.KnowledgeBase.BaseURL)
	}
	if !strings.HasPrefix(c.KnowledgeBase.APIPath, "/") {
		return fmt.Errorf("api_path must start with /")
	}
	if c.KnowledgeBase.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
