package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tenant resolution modes
const (
	TenantModePath      = "path"
	TenantModeSubdomain = "subdomain"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	API         APIConfig         `yaml:"api"`
	Web         WebConfig         `yaml:"web"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	NATS        NATSConfig        `yaml:"nats"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Tenant      TenantConfig      `yaml:"tenant"`
	Session     SessionConfig     `yaml:"session"`
	Integration IntegrationConfig `yaml:"integration"`
	Secrets     SecretsConfig     `yaml:"secrets"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents HTTP listener configuration
type APIConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// WebConfig represents web UI configuration
type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig represents database configuration.
// An empty DSN runs the server on the in-memory store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	ClientID          string        `yaml:"client_id"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	SubjectPrefix     string        `yaml:"subject_prefix"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	Issuer          string        `yaml:"issuer"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TenantConfig controls how the active tenant is derived from a request
type TenantConfig struct {
	Mode       string        `yaml:"mode"`
	BaseDomain string        `yaml:"base_domain"`
	CacheSize  int           `yaml:"cache_size"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// SessionConfig represents cookie and visitor scope configuration
type SessionConfig struct {
	TokenCookie   string        `yaml:"token_cookie"`
	VisitorCookie string        `yaml:"visitor_cookie"`
	SecureCookies bool          `yaml:"secure_cookies"`
	ScopeIdleTTL  time.Duration `yaml:"scope_idle_ttl"`
}

// IntegrationConfig represents kitchen display forwarding configuration
type IntegrationConfig struct {
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	MQTTClientID   string        `yaml:"mqtt_client_id"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// SecretsConfig holds the key used to encrypt tenant secrets at rest
type SecretsConfig struct {
	Key string `yaml:"key"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies environment overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration suitable for standalone development
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		c.Redis.Addr = redisAddr
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if mode := os.Getenv("TENANT_MODE"); mode != "" {
		c.Tenant.Mode = mode
	}

	if domain := os.Getenv("TENANT_BASE_DOMAIN"); domain != "" {
		c.Tenant.BaseDomain = domain
	}

	if key := os.Getenv("SECRETS_KEY"); key != "" {
		c.Secrets.Key = key
	}

	if webDir := os.Getenv("WEB_DIR"); webDir != "" {
		c.Web.StaticDir = webDir
	}
}

// setDefaults fills zero values
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "restoku"
	}
	if c.Server.Version == "" {
		c.Server.Version = "dev"
	}

	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = 60 * time.Second
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"*"}
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "restoku:"
	}

	if c.NATS.ClientID == "" {
		c.NATS.ClientID = "restoku-server"
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 60
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 2 * time.Second
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "restoku"
	}

	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "restoku"
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 12 * time.Hour
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 30 * 24 * time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	if c.Tenant.Mode == "" {
		c.Tenant.Mode = TenantModePath
	}
	c.Tenant.BaseDomain = strings.ToLower(strings.TrimPrefix(c.Tenant.BaseDomain, "."))
	if c.Tenant.CacheSize == 0 {
		c.Tenant.CacheSize = 512
	}
	if c.Tenant.CacheTTL == 0 {
		c.Tenant.CacheTTL = 5 * time.Minute
	}

	if c.Session.TokenCookie == "" {
		c.Session.TokenCookie = "restoku_token"
	}
	if c.Session.VisitorCookie == "" {
		c.Session.VisitorCookie = "restoku_visitor"
	}
	if c.Session.ScopeIdleTTL == 0 {
		c.Session.ScopeIdleTTL = 2 * time.Hour
	}

	if c.Integration.WebhookTimeout == 0 {
		c.Integration.WebhookTimeout = 10 * time.Second
	}
	if c.Integration.PublishTimeout == 0 {
		c.Integration.PublishTimeout = 5 * time.Second
	}
	if c.Integration.MQTTClientID == "" {
		c.Integration.MQTTClientID = "restoku-kitchen"
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Tenant.Mode {
	case TenantModePath:
	case TenantModeSubdomain:
		if c.Tenant.BaseDomain == "" {
			return fmt.Errorf("tenant.base_domain is required in subdomain mode")
		}
	default:
		return fmt.Errorf("invalid tenant mode: %s", c.Tenant.Mode)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}

	if c.Secrets.Key != "" && len(c.Secrets.Key) != 32 {
		return fmt.Errorf("secrets.key must be 32 bytes, got %d", len(c.Secrets.Key))
	}

	return nil
}

// ListenAddr returns the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// PrintConfigSummary prints a short summary of the effective configuration
func (c *Config) PrintConfigSummary() {
	fmt.Printf("=== Restoku Server Configuration ===\n")
	fmt.Printf("Server: %s v%s\n", c.Server.Name, c.Server.Version)
	fmt.Printf("Listen: %s\n", c.ListenAddr())
	fmt.Printf("Tenant mode: %s", c.Tenant.Mode)
	if c.Tenant.Mode == TenantModeSubdomain {
		fmt.Printf(" (*.%s)", c.Tenant.BaseDomain)
	}
	fmt.Printf("\n")
	fmt.Printf("Database: %s\n", describe(c.Database.DSN != "", "postgres", "in-memory"))
	fmt.Printf("Redis: %s\n", describe(c.Redis.Addr != "", c.Redis.Addr, "disabled"))
	fmt.Printf("NATS: %s\n", describe(c.NATS.URL != "", c.NATS.URL, "disabled"))
	fmt.Printf("=====================================\n")
}

func describe(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
