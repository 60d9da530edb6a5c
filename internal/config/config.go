// Package config centralises configuration loading for the ingest jobs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config captures runtime configuration for every ingest job.
type Config struct {
	Garmin   GarminConfig   `koanf:"garmin"`
	Database DatabaseConfig `koanf:"database"`
	Broker   BrokerConfig   `koanf:"broker"`
	Topics   TopicsConfig   `koanf:"topics"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// GarminConfig addresses the provider and holds the account credentials.
// TokenURL has no default: it must name a token service that accepts the OAuth2
// password grant for the account, which Garmin's own exchange endpoint does not.
type GarminConfig struct {
	Username          string        `koanf:"username" validate:"required"`
	Password          string        `koanf:"password" validate:"required"`
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	TokenURL          string        `koanf:"token_url" validate:"required,url"`
	ClientID          string        `koanf:"client_id"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DatabaseConfig selects the document store. BackfillURI, when set, is used by the
// backfill job instead of URI; a backfill-only deployment may leave URI empty.
type DatabaseConfig struct {
	URI         string `koanf:"uri" validate:"required_without=BackfillURI"`
	BackfillURI string `koanf:"backfill_uri"`
	Name        string `koanf:"name" validate:"required"`
}

// BrokerConfig addresses the message bus.
type BrokerConfig struct {
	Kind     string `koanf:"kind" validate:"oneof=mqtt kafka nats"`
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"gt=0,lte=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// TopicsConfig names the status topics. Raw is optional.
type TopicsConfig struct {
	Raw      string `koanf:"raw"`
	Stats    string `koanf:"stats" validate:"required"`
	Activity string `koanf:"activity" validate:"required"`
}

// IngestConfig tunes how much each job fetches.
type IngestConfig struct {
	RecentActivities       int    `koanf:"recent_activities" validate:"gte=1"`
	BackfillActivityWindow int    `koanf:"backfill_activity_window" validate:"gte=1"`
	Timezone               string `koanf:"timezone"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// MetricsConfig points at an optional Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `koanf:"pushgateway_url" validate:"omitempty,url"`
}

// envMappings translates the environment variable names the jobs have always used,
// plus the HEALTHSYNC_ tunables, onto koanf paths.
var envMappings = map[string]string{
	"GARMIN_USER":       "garmin.username",
	"GARMIN_PASS":       "garmin.password",
	"GARMIN_BASE_URL":   "garmin.base_url",
	"GARMIN_TOKEN_URL":  "garmin.token_url",
	"GARMIN_CLIENT_ID":  "garmin.client_id",
	"GARMIN_RATE_LIMIT": "garmin.requests_per_second",
	"GARMIN_TIMEOUT":    "garmin.timeout",

	"MONGODB_URI":        "database.uri",
	"MONGODB_URI_SERVER": "database.backfill_uri",
	"DATABASE_NAME":      "database.name",

	"BROKER_KIND": "broker.kind",
	"BROKER_HOST": "broker.host",
	"BROKER_PORT": "broker.port",
	"BROKER_USER": "broker.username",
	"BROKER_PASS": "broker.password",

	"TOPIC_GARMIN":          "topics.raw",
	"TOPIC_GARMIN_STATS":    "topics.stats",
	"TOPIC_GARMIN_ACTIVITY": "topics.activity",

	"HEALTHSYNC_RECENT_ACTIVITIES":        "ingest.recent_activities",
	"HEALTHSYNC_BACKFILL_ACTIVITY_WINDOW": "ingest.backfill_activity_window",
	"HEALTHSYNC_TIMEZONE":                 "ingest.timezone",
	"LOG_LEVEL":                           "logging.level",
	"LOG_FORMAT":                          "logging.format",
	"PUSHGATEWAY_URL":                     "metrics.pushgateway_url",
}

func defaultConfig() Config {
	return Config{
		Garmin: GarminConfig{
			BaseURL:           "https://connectapi.garmin.com",
			ClientID:          "healthsync",
			RequestsPerSecond: 2,
			Timeout:           30 * time.Second,
		},
		Database: DatabaseConfig{
			Name: "HealthDB",
		},
		Broker: BrokerConfig{
			Kind: "mqtt",
			Host: "localhost",
			Port: 1883,
		},
		Topics: TopicsConfig{
			Stats:    "stats",
			Activity: "activity",
		},
		Ingest: IngestConfig{
			RecentActivities:       2,
			BackfillActivityWindow: 366,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads envFile (".env" when empty; a missing file is not an error) into the
// process environment, then layers defaults and environment into a validated Config.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envTransform(key string) string {
	return envMappings[strings.ToUpper(key)]
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("configuration validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if c.Ingest.Timezone != "" {
		if _, err := time.LoadLocation(c.Ingest.Timezone); err != nil {
			return fmt.Errorf("configuration validation failed: timezone: %w", err)
		}
	}
	return nil
}

// Location returns the configured time zone, defaulting to the host's.
func (c Config) Location() *time.Location {
	if c.Ingest.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Ingest.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// StoreURI returns the connection string for the job; backfill prefers BackfillURI.
func (c Config) StoreURI(backfill bool) string {
	if backfill && c.Database.BackfillURI != "" {
		return c.Database.BackfillURI
	}
	return c.Database.URI
}
