// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Backend       BackendConfig           `mapstructure:"backend"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Intake        IntakeConfig            `mapstructure:"intake"`
	Admin         AdminConfig             `mapstructure:"admin"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig points at the hosted backend that serves photo storage.
// UsingEmbeddedDefaults is set by the loader, never read from file.
type BackendConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`

	UsingEmbeddedDefaults bool `mapstructure:"-"`
}

type HTTPConfig struct {
	Addr          string `mapstructure:"addr"`
	ClientTimeout int    `mapstructure:"client_timeout"` // milliseconds
	ReadTimeout   int    `mapstructure:"read_timeout"`   // milliseconds
	WriteTimeout  int    `mapstructure:"write_timeout"`  // milliseconds
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// Enabled reports whether an Elasticsearch cluster is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// StorageConfig holds the photo bucket settings.
type StorageConfig struct {
	Bucket       string `mapstructure:"bucket"`
	CacheControl string `mapstructure:"cache_control"`
}

// IntakeConfig holds the weekly intake form rules.
type IntakeConfig struct {
	Timezone      string   `mapstructure:"timezone"`
	MaxPhotoBytes int64    `mapstructure:"max_photo_bytes"`
	PhotoRequired bool     `mapstructure:"photo_required"`
	PhotoTypes    []string `mapstructure:"photo_types"`
	IPLookupURL   string   `mapstructure:"ip_lookup_url"`
}

// Location resolves the configured timezone, falling back to time.Local.
func (i IntakeConfig) Location() *time.Location {
	if i.Timezone == "" || i.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type AdminConfig struct {
	StatsCacheTTL int `mapstructure:"stats_cache_ttl"` // milliseconds, 0 disables
	RecentLimit   int `mapstructure:"recent_limit"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// IntegrationConfig holds settings for AWS and other external services.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// NotificationConfig holds settings for post-submission notifications.
type NotificationConfig struct {
	Email struct {
		Enabled bool   `mapstructure:"enabled"`
		Subject string `mapstructure:"subject"`
	} `mapstructure:"email"`
	Admin struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"admin"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
