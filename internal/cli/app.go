package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/cache"
	"github.com/ppiankov/intake/internal/logging"
	"github.com/ppiankov/intake/internal/metrics"
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/pipeline"
	"github.com/ppiankov/intake/internal/store"
)

// app holds everything a command needs to run the engine
type app struct {
	cfg      *model.Config
	pipeline *pipeline.Pipeline
	registry *prometheus.Registry
	logger   *zap.Logger
	db       *store.SQLite
}

// newApp wires the pipeline from the effective configuration
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if cfg.Output.Verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	opts := pipeline.Options{
		Metrics: metrics.New(a.registry),
		Logger:  logger,
	}

	switch cfg.Store.Driver {
	case "", "memory":
	case "sqlite":
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.db = db
		opts.Store = db
		opts.BankStore = db
	default:
		return nil, fmt.Errorf("unknown store driver %q (want memory or sqlite)", cfg.Store.Driver)
	}

	if cfg.Cache.Enabled {
		opts.Cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Directory, cfg.Cache.DiskTTL)
	}

	p, err := pipeline.New(ctx, cfg, opts)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.pipeline = p

	logger.Debug("engine ready",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Int("rules", p.Bank().Len()),
		zap.String("bank", p.Bank().Fingerprint()))
	return a, nil
}

// durable reports whether training records outlive this process
func (a *app) durable() bool {
	return a.db != nil
}

// Close releases the store and flushes the logger
func (a *app) Close() error {
	var err error
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	// stderr sync fails on some terminals; nothing useful to report
	_ = a.logger.Sync()
	return err
}
