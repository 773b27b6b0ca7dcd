package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Store     StoreConfig
	Alert     AlertConfig
	Messaging MessagingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"scanventory-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	// Timezone decides which calendar day "today" is for expiry math.
	Timezone string `envconfig:"APP_TIMEZONE" default:"UTC"`
}

// CacheConfig holds cache and item-lock settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost      string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"scanventory"`
}

// StoreConfig selects and configures the pantry database.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres, mysql or mongodb
	Path string `envconfig:"STORE_PATH" default:"./data/pantry.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"STORE_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_PORT" default:"0"`
	Name     string `envconfig:"STORE_NAME" default:"scanventory"`
	User     string `envconfig:"STORE_USER" default:""`
	Password string `envconfig:"STORE_PASS" default:""`
	SSLMode  string `envconfig:"STORE_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"scanventory"`
}

// AlertConfig holds the expiry thresholds and the bulk reconcile schedule.
type AlertConfig struct {
	CriticalDays      int           `envconfig:"ALERT_CRITICAL_DAYS" default:"3"`
	WarningDays       int           `envconfig:"ALERT_WARNING_DAYS" default:"7"`
	ReconcileInterval time.Duration `envconfig:"ALERT_RECONCILE_INTERVAL" default:"1h"`
	LockTimeout       time.Duration `envconfig:"ALERT_LOCK_TIMEOUT" default:"10s"`
}

// MessagingConfig holds alert event publishing settings.
// Events are only logged when no brokers are set.
type MessagingConfig struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"pantry.alerts"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	port := s.Port
	if port == 0 {
		port = 5432
	}
	user := s.User
	if user == "" {
		user = "postgres"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, s.Password, s.Host, port, s.Name, s.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	port := s.Port
	if port == 0 {
		port = 3306
	}
	user := s.User
	if user == "" {
		user = "root"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		user, s.Password, s.Host, port, s.Name)
}

// Location resolves APP_TIMEZONE.
func (a *AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// KafkaEnabled reports whether at least one broker is configured.
func (m *MessagingConfig) KafkaEnabled() bool {
	for _, b := range m.KafkaBrokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "sqlite", "postgres", "mysql", "mongodb":
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Alert.CriticalDays < 0 {
		return fmt.Errorf("ALERT_CRITICAL_DAYS must be >= 0, got %d", c.Alert.CriticalDays)
	}
	if c.Alert.WarningDays < c.Alert.CriticalDays {
		return fmt.Errorf("ALERT_WARNING_DAYS (%d) must be >= ALERT_CRITICAL_DAYS (%d)",
			c.Alert.WarningDays, c.Alert.CriticalDays)
	}
	if c.Alert.ReconcileInterval < 0 {
		return fmt.Errorf("ALERT_RECONCILE_INTERVAL must not be negative")
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
