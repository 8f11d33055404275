package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/broker"
	"github.com/newthinker/reversion/internal/broker/mock"
	"github.com/newthinker/reversion/internal/collector"
	"github.com/newthinker/reversion/internal/collector/csvfeed"
	"github.com/newthinker/reversion/internal/collector/yahoo"
	"github.com/newthinker/reversion/internal/config"
	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/indicator"
	"github.com/newthinker/reversion/internal/logger"
	"github.com/newthinker/reversion/internal/notifier"
	"github.com/newthinker/reversion/internal/notifier/telegram"
	"github.com/newthinker/reversion/internal/notifier/webhook"
	"github.com/newthinker/reversion/internal/quality"
	"github.com/newthinker/reversion/internal/storage/archive"
	"github.com/newthinker/reversion/internal/strategy"
)

// loadConfig reads --config, falling back to defaults, and validates
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
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

// setup initializes the logger and config shared by every command
func setup() (*zap.Logger, *config.Config, error) {
	log := logger.Must(debug)
	cfg, err := loadConfig(log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	if cfg.Log.Development && !debug {
		log = logger.Must(true)
	}
	return log, cfg, nil
}

func newIndicators(cfg *config.Config) *indicator.Engine {
	return indicator.NewDefaultEngine(cfg.Strategy.Params)
}

func newDetector(cfg *config.Config) *strategy.Detector {
	return strategy.NewDetector(cfg.Strategy.LateralThreshold)
}

// priceSources registers every historical price provider
func priceSources(dataDir string) *collector.Registry {
	reg := collector.NewRegistry()
	reg.Register(csvfeed.New(dataDir))
	reg.Register(yahoo.New())
	return reg
}

// newGateway builds the configured broker gateway and connects it
func newGateway(ctx context.Context, cfg *config.Config) (broker.Gateway, error) {
	if cfg.Broker.Provider != "mock" {
		return nil, fmt.Errorf("unknown broker provider %q", cfg.Broker.Provider)
	}

	opts := []mock.Option{
		mock.WithProvider(csvfeed.New(cfg.Broker.DataDir), cfg.Broker.Lookback),
		mock.WithBalance(broker.Balance{
			Currency: "USD",
			Balance:  cfg.Broker.Balance,
			Equity:   cfg.Broker.Balance,
		}),
	}
	for _, inst := range cfg.Instruments {
		opts = append(opts, mock.WithSymbolInfo(broker.SymbolInfoFor(inst, 5)))
	}

	gw := mock.New(opts...)
	if err := gw.Connect(ctx); err != nil {
		return nil, err
	}
	return gw, nil
}

// modelRepository opens the archive holding trained quality models
func modelRepository(cfg *config.Config, log *zap.Logger) (*quality.ArchiveRepository, error) {
	store, err := archive.New(cfg.Storage.Archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return quality.NewArchiveRepository(store, cfg.Quality.ModelName, cfg.Quality.VersionsKept, log), nil
}

// loadClassifier returns the latest trained model, or nil when the filter is
// disabled or no model exists yet. A nil classifier approves every signal.
func loadClassifier(ctx context.Context, cfg *config.Config, repo *quality.ArchiveRepository, log *zap.Logger) quality.Classifier {
	if !cfg.Quality.Enabled || repo == nil {
		return nil
	}
	model, err := repo.Load(ctx)
	if err != nil {
		if errors.Is(err, core.ErrModelUnavailable) {
			log.Info("no quality model trained yet, signals pass unfiltered")
		} else {
			log.Warn("failed to load quality model, signals pass unfiltered", zap.Error(err))
		}
		return nil
	}
	log.Info("quality model loaded",
		zap.String("version", model.Version),
		zap.Float64("accuracy", model.Report.Accuracy),
	)
	return model
}

// newNotifiers initializes every configured notifier
func newNotifiers(cfg *config.Config) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for _, nc := range cfg.Notifiers {
		var n notifier.Notifier
		switch nc.Type {
		case "webhook":
			n = webhook.New("", nil)
		case "telegram":
			n = telegram.New("", "")
		default:
			return nil, fmt.Errorf("unknown notifier type %q", nc.Type)
		}
		if err := n.Init(nc); err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
