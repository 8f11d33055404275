package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/config"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/metrics"
	"github.com/newthinker/reversion/internal/quality"
	"github.com/newthinker/reversion/internal/risk"
	"github.com/newthinker/reversion/internal/scheduler"
	"github.com/newthinker/reversion/internal/trader"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision cycle continuously",
	Long: `Evaluate every watched symbol each trader.interval, serve metrics, and
retrain the quality classifier on quality.retrain_schedule once the current
model is older than quality.retrain_interval.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// retrainer swaps in a fresh model when the current one has aged out
type retrainer struct {
	cfg    *config.Config
	repo   *quality.ArchiveRepository
	trader *trader.Trader
	reg    *metrics.Registry
	log    *zap.Logger

	mu    sync.Mutex
	model *quality.Model
}

func (r *retrainer) run(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !quality.NeedsRetrain(r.model, time.Now(), r.cfg.Quality.RetrainInterval) {
		r.log.Debug("quality model is current", zap.String("version", r.model.Version))
		return
	}

	model, err := trainModel(ctx, r.cfg, r.repo, r.reg, r.log)
	if err != nil {
		r.log.Warn("retraining skipped", zap.Error(err))
		return
	}
	r.model = model
	r.trader.SetClassifier(model)
}

func runRun(cmd *cobra.Command, args []string) error {
	log, cfg, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting broker: %w", err)
	}
	defer gw.Disconnect()

	rec, err := journal.Open(cfg.Storage.Journal, log)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer rec.Close()

	notifiers, err := newNotifiers(cfg)
	if err != nil {
		return fmt.Errorf("configuring notifiers: %w", err)
	}

	repo, err := modelRepository(cfg, log)
	if err != nil {
		return err
	}

	opts := []trader.Option{
		trader.WithLogger(log),
		trader.WithIndicators(newIndicators(cfg)),
		trader.WithStrategy(newDetector(cfg)),
		trader.WithInstruments(cfg.Instruments),
		trader.WithRecorder(rec),
		trader.WithMetrics(reg),
		trader.WithNotifiers(notifiers),
	}
	classifier := loadClassifier(ctx, cfg, repo, log)
	if classifier != nil {
		opts = append(opts, trader.WithClassifier(classifier))
	}
	t := trader.New(cfg.Trader, gw, risk.NewSizer(cfg.Risk), opts...)

	sched := scheduler.New(log)
	if cfg.Quality.Enabled {
		rt := &retrainer{cfg: cfg, repo: repo, trader: t, reg: reg, log: log}
		if m, ok := classifier.(*quality.Model); ok {
			rt.model = m
		}
		if err := sched.Register("retrain", cfg.Quality.RetrainSchedule, func() { rt.run(ctx) }); err != nil {
			return err
		}
	}

	var server *http.Server
	if cfg.Metrics.Enabled {
		server = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metrics.NewMux(reg, cfg.Metrics.Path, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("listen", cfg.Metrics.Listen), zap.String("path", cfg.Metrics.Path))
	}

	log.Info("starting reversion",
		zap.Strings("symbols", cfg.Trader.Symbols),
		zap.String("timeframe", cfg.Trader.Timeframe),
		zap.Duration("interval", cfg.Trader.Interval),
		zap.Bool("execute", cfg.Trader.Execute),
		zap.Strings("notifiers", notifiers.Names()),
	)

	sched.Start()

	// Blocks until a shutdown signal
	if err := t.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down reversion")

	<-sched.Stop().Done()

	if server == nil {
		return nil
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
