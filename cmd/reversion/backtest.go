package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/backtest"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/metrics"
	"github.com/newthinker/reversion/internal/risk"
	"github.com/newthinker/reversion/internal/storage/archive"
)

var (
	backtestSymbol   string
	backtestFrom     string
	backtestTo       string
	backtestSource   string
	backtestInterval string
	backtestJournal  bool
	backtestTrades   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the signal pipeline over history",
	Long: `Fetch historical bars for a symbol, run detection, filtering, sizing and
exit simulation on every bar, and print performance statistics.`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestSource, "source", "", "Price source: csv or yahoo (default from config)")
	backtestCmd.Flags().StringVar(&backtestInterval, "interval", "", "Bar interval, e.g. H1 or D1 (default from config)")
	backtestCmd.Flags().BoolVar(&backtestJournal, "journal", false, "Record trades and decisions to the journal (train counts a trade journaled by repeated runs once)")
	backtestCmd.Flags().BoolVar(&backtestTrades, "trades", false, "Print every simulated trade")

	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date format (expected YYYY-MM-DD): %w", flag, err)
	}
	return d, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log, cfg, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	fromDate, err := parseDate("from", backtestFrom)
	if err != nil {
		return err
	}
	toDate, err := parseDate("to", backtestTo)
	if err != nil {
		return err
	}
	if !fromDate.IsZero() && !toDate.IsZero() && toDate.Before(fromDate) {
		return fmt.Errorf("end date must be after start date")
	}

	source := cfg.Backtest.Source
	if backtestSource != "" {
		source = backtestSource
	}
	interval := cfg.Backtest.Interval
	if backtestInterval != "" {
		interval = backtestInterval
	}
	symbol := strings.ToUpper(backtestSymbol)

	provider, err := priceSources(cfg.Backtest.DataDir).MustGet(source)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := modelRepository(cfg, log)
	if err != nil {
		return err
	}

	opts := []backtest.Option{
		backtest.WithLogger(log),
		backtest.WithIndicators(newIndicators(cfg)),
		backtest.WithStrategy(newDetector(cfg)),
		backtest.WithInitialBalance(cfg.Backtest.InitialBalance),
		backtest.WithMetrics(metrics.NewRegistry()),
	}
	if classifier := loadClassifier(ctx, cfg, repo, log); classifier != nil {
		opts = append(opts, backtest.WithClassifier(classifier))
	}
	if backtestJournal || cfg.Backtest.RecordJournal {
		rec, err := journal.Open(cfg.Storage.Journal, log)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer rec.Close()
		opts = append(opts, backtest.WithRecorder(rec))
	}

	engine := backtest.NewEngine(risk.NewSizer(cfg.Risk), opts...)
	inst := cfg.Instrument(symbol)

	log.Info("starting backtest",
		zap.String("symbol", symbol),
		zap.String("source", provider.Name()),
		zap.String("interval", interval),
		zap.Stringer("instrument", inst),
	)

	res, err := backtest.New(provider, engine).RunRange(ctx, symbol, fromDate, toDate, interval, inst)
	if res == nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	if err != nil {
		log.Warn("backtest interrupted, reporting partial result", zap.Error(err))
	}

	printResult(res)

	if cfg.Backtest.SaveReport {
		store, serr := archive.New(cfg.Storage.Archive)
		if serr != nil {
			return fmt.Errorf("opening archive: %w", serr)
		}
		path, serr := backtest.SaveReport(context.Background(), store, res)
		if serr != nil {
			return fmt.Errorf("saving report: %w", serr)
		}
		fmt.Printf("\nReport saved to %s\n", path)
	}

	return err
}

func printResult(res *backtest.Result) {
	fmt.Println("=== Backtest ===")
	fmt.Printf("Strategy: %s\n", res.Strategy)
	fmt.Printf("Symbol:   %s\n", res.Symbol)
	fmt.Printf("Period:   %s to %s (%d bars)\n",
		res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"), res.Bars)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Initial balance\t%.2f\n", res.InitialBalance)
	fmt.Fprintf(w, "Final balance\t%.2f\n", res.FinalBalance)
	fmt.Fprintf(w, "Total profit\t%.2f\n", res.TotalProfit)
	fmt.Fprintf(w, "Total return\t%.2f%%\n", res.Stats.TotalReturn)
	fmt.Fprintf(w, "Signals\t%d (filtered %d, skipped %d)\n", res.Signals, res.Filtered, res.Skipped)
	fmt.Fprintf(w, "Trades\t%d\n", res.TotalTrades)
	fmt.Fprintf(w, "Win rate\t%.2f%%\n", res.WinRate*100)
	fmt.Fprintf(w, "Profit factor\t%.2f\n", res.Stats.ProfitFactor)
	fmt.Fprintf(w, "Max drawdown\t%.2f%%\n", res.Stats.MaxDrawdown)
	fmt.Fprintf(w, "Sharpe (per trade)\t%.2f\n", res.Stats.SharpeRatio)
	fmt.Fprintf(w, "Exits SL/TP/close\t%d/%d/%d\n",
		res.Stats.StopLossExits, res.Stats.TakeProfitExits, res.Stats.MarkToCloseExits)
	w.Flush()

	if !backtestTrades || len(res.Trades) == 0 {
		return
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tSIDE\tSIZE\tPRICE\tSL\tTP\tEXIT\tREASON\tBARS\tPROFIT")
	for _, t := range res.Trades {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.5f\t%.5f\t%.5f\t%.5f\t%s\t%d\t%.2f\n",
			t.EntryTime.Format("2006-01-02 15:04"), t.Side, t.Size, t.EntryPrice,
			t.StopLoss, t.TakeProfit, t.ExitPrice, t.ExitReason, t.BarsHeld, t.Profit)
	}
	w.Flush()
}
