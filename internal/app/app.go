// Package app wires configuration, the store, the broker and the provider session
// into the ingest jobs run by the cmd binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/healthsync/internal/config"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/garmin"
	"example.com/healthsync/internal/ingest"
	"example.com/healthsync/internal/logging"
	"example.com/healthsync/internal/notify"
	"example.com/healthsync/internal/observability"
	"example.com/healthsync/internal/store"
)

// Flags are the command line options every binary accepts.
type Flags struct {
	EnvFile  string `help:"Path to a dotenv file; a missing file is ignored." default:".env" name:"env-file"`
	LogLevel string `help:"Overrides LOG_LEVEL." name:"log-level"`
}

// Setup loads configuration and installs the process logger tagged with job and a
// fresh run id.
func Setup(flags Flags, job string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flags.EnvFile)
	if err != nil {
		return config.Config{}, logging.Logger(), err
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger := logging.Logger().With().
		Str("job", job).
		Str("run_id", uuid.NewString()).
		Logger()
	logging.SetLogger(logger)
	return cfg, logger, nil
}

// Resources are the connections a job holds for its lifetime.
type Resources struct {
	DB          store.Database
	Publisher   notify.Publisher
	Notifier    *notify.StatusNotifier
	Collections ingest.Collections
	Login       ingest.Login
}

// Open connects the store and, for daily jobs, the message bus. Backfill runs use the
// backfill database URI and publish nothing. The provider session is opened later by
// the job through Login. On error everything already acquired is released.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger, backfill bool) (*Resources, error) {
	uri := cfg.StoreURI(backfill)
	if uri == "" {
		return nil, errors.New("open store: MONGODB_URI is not set")
	}
	db, err := store.Open(ctx, uri, cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	res := &Resources{
		DB: db,
		Collections: ingest.Collections{
			Stats:      db.Collection(domain.CollectionHealthStats),
			Activities: db.Collection(domain.CollectionActivities),
		},
		Login: ProviderLogin(GarminConfig(cfg), logger),
	}

	if !backfill {
		pub, err := notify.Open(ctx, BrokerConfig(cfg))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open broker: %w", err), res.Close(ctx))
		}
		res.Publisher = pub
		res.Notifier = notify.NewStatusNotifier(pub, notify.Topics{
			Raw:      cfg.Topics.Raw,
			Stats:    cfg.Topics.Stats,
			Activity: cfg.Topics.Activity,
		}, notify.WithLogger(logger))
	}
	return res, nil
}

// Close releases every acquired resource and joins their errors.
func (r *Resources) Close(ctx context.Context) error {
	var errs []error
	if r.Publisher != nil {
		if err := r.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close broker: %w", err))
		}
	}
	if r.DB != nil {
		if err := r.DB.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ProviderLogin adapts garmin.Login to the ingest jobs.
func ProviderLogin(cfg garmin.Config, logger zerolog.Logger) ingest.Login {
	return func(ctx context.Context) (ingest.Provider, error) {
		client, err := garmin.Login(ctx, cfg, garmin.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func GarminConfig(cfg config.Config) garmin.Config {
	return garmin.Config{
		BaseURL:           cfg.Garmin.BaseURL,
		TokenURL:          cfg.Garmin.TokenURL,
		ClientID:          cfg.Garmin.ClientID,
		Username:          cfg.Garmin.Username,
		Password:          cfg.Garmin.Password,
		RequestsPerSecond: cfg.Garmin.RequestsPerSecond,
		Timeout:           cfg.Garmin.Timeout,
	}
}

// BrokerConfig gives every run its own client id so that overlapping runs do not
// kick each other off the broker.
func BrokerConfig(cfg config.Config) notify.BrokerConfig {
	return notify.BrokerConfig{
		Kind:     cfg.Broker.Kind,
		Host:     cfg.Broker.Host,
		Port:     cfg.Broker.Port,
		Username: cfg.Broker.Username,
		Password: cfg.Broker.Password,
		ClientID: "healthsync-" + uuid.NewString(),
	}
}

// Finish records the run metrics and pushes them when a Pushgateway is configured.
// A failed push is logged only.
func Finish(ctx context.Context, cfg config.Config, logger zerolog.Logger, job string, started time.Time, success bool) {
	observability.RecordRun(job, started, success)
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := observability.Push(pushCtx, cfg.Metrics.PushgatewayURL, job); err != nil {
		logger.Warn().Err(err).Str("gateway", cfg.Metrics.PushgatewayURL).Msg("metrics push failed")
	}
}
