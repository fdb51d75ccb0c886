package main

import (
	"context"
	"fmt"

	"github.com/stockshastri/shastri/internal/app"
	"github.com/stockshastri/shastri/internal/collector/worldbank"
	"github.com/stockshastri/shastri/internal/collector/yahoo"
	"github.com/stockshastri/shastri/internal/config"
	"github.com/stockshastri/shastri/internal/logger"
	"github.com/stockshastri/shastri/internal/metrics"
	"github.com/stockshastri/shastri/internal/notifier"
	"github.com/stockshastri/shastri/internal/notifier/webhook"
	"github.com/stockshastri/shastri/internal/storage/archive"
	"github.com/stockshastri/shastri/internal/storage/postgres"
	"go.uber.org/zap"
)

// env is the wired application shared by every command.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	app     *app.App
	metrics *metrics.Registry
	close   func()
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setup loads configuration and wires storage, the optional database and
// the collectors into an App.
func setup(ctx context.Context) (*env, error) {
	bootLog := logger.Must(debug)

	cfg, err := loadConfig(bootLog)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log, err := logger.NewWithLevel(debug, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	storage, err := archive.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	reg := metrics.NewRegistry()
	a := app.New(cfg, storage, log)
	a.SetMetrics(reg)

	e := &env{cfg: cfg, log: log, app: a, metrics: reg, close: func() { _ = log.Sync() }}

	if cfg.Data.Source == config.SourcePostgres || cfg.Database.DSN != "" {
		pool, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.SetStore(postgres.New(pool))
		e.close = func() {
			pool.Close()
			_ = log.Sync()
		}
	}

	if cfg.Collectors.Yahoo.Enabled {
		a.RegisterCollector(yahoo.New(cfg.Collectors.Yahoo, log.Named("yahoo")))
	}
	if cfg.Collectors.WorldBank.Enabled {
		a.RegisterCollector(worldbank.New(cfg.Collectors.WorldBank, log.Named("worldbank")))
	}

	if cfg.Notifications.Webhook.Enabled {
		hook, err := webhook.New(cfg.Notifications.Webhook)
		if err != nil {
			return nil, fmt.Errorf("creating webhook notifier: %w", err)
		}
		notifiers := notifier.NewRegistry()
		if err := notifiers.Register(hook); err != nil {
			return nil, err
		}
		a.SetNotifiers(notifiers)
	}

	log.Debug("application wired",
		zap.String("source", cfg.Data.Source),
		zap.String("storage", cfg.Storage.Type),
	)
	return e, nil
}

// withEnv runs fn against a wired application and releases it afterwards.
func withEnv(fn func(ctx context.Context, e *env) error) error {
	ctx := context.Background()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	return fn(ctx, e)
}
