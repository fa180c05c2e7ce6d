package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings. It is loaded once at startup and never mutated.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Meta      MetaConfig      `mapstructure:"meta"`
	State     StateConfig     `mapstructure:"state"`
	Security  SecurityConfig  `mapstructure:"security"`
	App       AppConfig       `mapstructure:"app"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	Mode string `mapstructure:"mode"`

	// Addrs is used by every mode; for "single" the first address wins.
	Addrs []string `mapstructure:"addrs"`

	// Addr is the single-mode fallback when Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName is required in sentinel mode.
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // ms
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // ms
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// AuthConfig describes how sessions issued by the identity provider are verified.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// MetaConfig holds the Facebook/Instagram app registration.
type MetaConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppSecret   string `mapstructure:"app_secret"`
	RedirectURI string `mapstructure:"redirect_uri"`

	// AuthURL is the dialog endpoint; GraphURL is the API host. Both are overridable for tests.
	AuthURL    string   `mapstructure:"auth_url"`
	GraphURL   string   `mapstructure:"graph_url"`
	APIVersion string   `mapstructure:"api_version"`
	Scopes     []string `mapstructure:"scopes"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StateConfig configures signing of the OAuth state parameter.
type StateConfig struct {
	Secret string        `mapstructure:"secret"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

// SecurityConfig holds keys for data at rest.
type SecurityConfig struct {
	TokenEncryptionKey string `mapstructure:"token_encryption_key"`
}

// AppConfig describes the browser-facing application.
type AppConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig limits how often a single IP may start a connection.
type RateLimitConfig struct {
	ConnectMaxRequests int           `mapstructure:"connect_max_requests"`
	ConnectWindow      time.Duration `mapstructure:"connect_window"`
}

// PostgresConnectionString builds a libpq-style DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// GraphEndpoint returns the versioned Graph API base, e.g. https://graph.facebook.com/v19.0.
func (m MetaConfig) GraphEndpoint() string {
	base := strings.TrimRight(m.GraphURL, "/")
	if m.APIVersion == "" {
		return base
	}
	return base + "/" + m.APIVersion
}

// Validate reports the first missing setting required by the connect flow.
func (m MetaConfig) Validate() error {
	if strings.TrimSpace(m.AppID) == "" {
		return errors.New("meta app id is required (check META_APP_ID env var)")
	}
	if strings.TrimSpace(m.AppSecret) == "" {
		return errors.New("meta app secret is required (check META_APP_SECRET env var)")
	}
	if strings.TrimSpace(m.RedirectURI) == "" {
		return errors.New("meta redirect uri is required (check META_REDIRECT_URI env var)")
	}
	if _, err := url.ParseRequestURI(m.RedirectURI); err != nil {
		return fmt.Errorf("meta redirect uri is not a valid url: %w", err)
	}
	return nil
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 10)
	vip.SetDefault("server.write_timeout", 10)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("log.level", "info")
	vip.SetDefault("log.environment", "development")
	vip.SetDefault("auth.audience", "authenticated")
	vip.SetDefault("meta.auth_url", "https://www.facebook.com")
	vip.SetDefault("meta.graph_url", "https://graph.facebook.com")
	vip.SetDefault("meta.api_version", "v19.0")
	vip.SetDefault("meta.scopes", []string{"pages_show_list", "pages_read_engagement", "instagram_basic"})
	vip.SetDefault("meta.request_timeout", 5*time.Second)
	vip.SetDefault("state.max_age", 10*time.Minute)
	vip.SetDefault("app.base_url", "http://localhost:3000")
	vip.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})
	vip.SetDefault("rate_limit.connect_max_requests", 20)
	vip.SetDefault("rate_limit.connect_window", time.Minute)
}

func bindEnv(vip *viper.Viper) {
	bindings := map[string]string{
		"server.port":          "SERVER_PORT",
		"server.read_timeout":  "SERVER_READ_TIMEOUT",
		"server.write_timeout": "SERVER_WRITE_TIMEOUT",

		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.dbname":   "DATABASE_DBNAME",
		"database.sslmode":  "DATABASE_SSLMODE",

		"redis.mode":        "REDIS_MODE",
		"redis.addrs":       "REDIS_ADDRS",
		"redis.addr":        "REDIS_ADDR",
		"redis.password":    "REDIS_PASSWORD",
		"redis.db":          "REDIS_DB",
		"redis.master_name": "REDIS_MASTER_NAME",

		"log.level":       "LOG_LEVEL",
		"log.environment": "APP_ENV",

		"auth.jwt_secret": "AUTH_JWT_SECRET",
		"auth.issuer":     "AUTH_ISSUER",
		"auth.audience":   "AUTH_AUDIENCE",

		"meta.app_id":          "META_APP_ID",
		"meta.app_secret":      "META_APP_SECRET",
		"meta.redirect_uri":    "META_REDIRECT_URI",
		"meta.auth_url":        "META_AUTH_URL",
		"meta.graph_url":       "META_GRAPH_URL",
		"meta.api_version":     "META_API_VERSION",
		"meta.scopes":          "META_SCOPES",
		"meta.request_timeout": "META_REQUEST_TIMEOUT",

		"state.secret":  "OAUTH_STATE_SECRET",
		"state.max_age": "OAUTH_STATE_MAX_AGE",

		"security.token_encryption_key": "TOKEN_ENCRYPTION_KEY",

		"app.base_url":        "APP_BASE_URL",
		"app.allowed_origins": "CORS_ALLOWED_ORIGINS",

		"rate_limit.connect_max_requests": "RATE_LIMIT_CONNECT_MAX_REQUESTS",
		"rate_limit.connect_window":       "RATE_LIMIT_CONNECT_WINDOW",
	}
	for key, env := range bindings {
		// BindEnv only fails when called without a key.
		_ = vip.BindEnv(key, env)
	}
}

// Load reads configuration from an optional YAML file and the environment.
// A missing file is not an error; missing required settings are.
func Load(configPath string) (*Config, []string, error) {
	vip := viper.New()

	setDefaults(vip)
	bindEnv(vip)

	var warnings []string
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				warnings = append(warnings, fmt.Sprintf("config file %q not found, using environment and defaults", configPath))
			} else {
				warnings = append(warnings, fmt.Sprintf("failed to read config file %q: %v", configPath, err))
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, warnings, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, warnings, err
	}
	return &cfg, warnings, nil
}

// LoadDatabase reads only the database section, for tools that do not serve traffic.
func LoadDatabase(configPath string) (*DatabaseConfig, error) {
	vip := viper.New()
	setDefaults(vip)
	bindEnv(vip)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		// A missing file falls back to the environment.
		_ = vip.ReadInConfig()
	}

	var partial struct {
		Database DatabaseConfig `mapstructure:"database"`
	}
	if err := vip.Unmarshal(&partial); err != nil {
		return nil, fmt.Errorf("failed to unmarshal database config: %w", err)
	}
	if err := partial.Database.validate(); err != nil {
		return nil, err
	}
	return &partial.Database, nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" || d.DBName == "" || d.User == "" {
		return errors.New("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("identity provider jwt secret is required (check AUTH_JWT_SECRET env var)")
	}
	if err := c.Meta.Validate(); err != nil {
		return err
	}
	if c.State.Secret == "" {
		return errors.New("oauth state signing secret is required (check OAUTH_STATE_SECRET env var)")
	}
	if c.State.MaxAge <= 0 {
		return errors.New("oauth state max age must be positive (check OAUTH_STATE_MAX_AGE env var)")
	}
	if c.Security.TokenEncryptionKey == "" {
		return errors.New("token encryption key is required (check TOKEN_ENCRYPTION_KEY env var)")
	}
	if c.Meta.RequestTimeout <= 0 {
		return errors.New("meta request timeout must be positive (check META_REQUEST_TIMEOUT env var)")
	}
	return nil
}
