package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "reversion",
	Short: "Bollinger mean-reversion signals for ranging markets",
	Long: `reversion detects Bollinger band re-entries while ADX shows a ranging
market, sizes positions by risk, filters signals through a trained quality
classifier and replays the whole pipeline over history.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
