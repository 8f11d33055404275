package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/reversion/internal/risk"
	"github.com/newthinker/reversion/internal/trader"
)

var scanSymbols []string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Evaluate the latest bar of every watched symbol once",
	Long: `Run a single decision cycle against the broker gateway and print the
decision made for each symbol. Orders are only placed when trader.execute is set.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanSymbols, "symbols", nil, "Symbols to scan (default from config)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	log, cfg, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting broker: %w", err)
	}
	defer gw.Disconnect()

	repo, err := modelRepository(cfg, log)
	if err != nil {
		return err
	}

	opts := []trader.Option{
		trader.WithLogger(log),
		trader.WithIndicators(newIndicators(cfg)),
		trader.WithStrategy(newDetector(cfg)),
		trader.WithInstruments(cfg.Instruments),
	}
	if classifier := loadClassifier(ctx, cfg, repo, log); classifier != nil {
		opts = append(opts, trader.WithClassifier(classifier))
	}

	t := trader.New(cfg.Trader, gw, risk.NewSizer(cfg.Risk), opts...)
	if len(scanSymbols) > 0 {
		symbols := make([]string, len(scanSymbols))
		for i, s := range scanSymbols {
			symbols[i] = strings.ToUpper(s)
		}
		t.SetWatchlist(symbols)
	}

	decisions := t.Cycle(ctx)
	if len(decisions) == 0 {
		fmt.Println("No decisions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tDECISION\tREASON\tDETAIL")
	for _, d := range decisions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.Time.Format("2006-01-02 15:04"), d.Symbol, d.Decision, d.Reason, d.Detail)
	}
	return w.Flush()
}
