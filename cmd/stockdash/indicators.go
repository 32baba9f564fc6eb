package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"stockdash/internal/indicator"
	"stockdash/internal/marketdata"
	"stockdash/internal/model"
)

var indicatorsPeriod string

var indicatorsCmd = &cobra.Command{
	Use:   "indicators <ticker>",
	Short: "Fetch history for a ticker and print its latest indicators as JSON",
	Example: `  stockdash indicators 7203.T
  stockdash indicators 9984.T --period 1y`,
	Args: cobra.ExactArgs(1),
	RunE: runIndicators,
}

var computeCSV string

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute indicators from a local CSV of daily bars",
	Long: `Compute reads date,open,high,low,close,volume rows (a header row is
optional) and prints the indicator record for the last bar as JSON.`,
	Example: `  stockdash compute --csv data/7203.csv`,
	RunE:    runCompute,
}

func init() {
	indicatorsCmd.Flags().StringVarP(&indicatorsPeriod, "period", "p", "", "history period (default from config)")
	computeCmd.Flags().StringVar(&computeCSV, "csv", "", "CSV file of daily bars")
	computeCmd.MarkFlagRequired("csv")

	rootCmd.AddCommand(indicatorsCmd, computeCmd)
}

func runIndicators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	period := indicatorsPeriod
	if period == "" {
		period = cfg.DefaultPeriod
	}

	market := newMarket(cfg, nil, nil)
	series, err := market.History(cmd.Context(), marketdata.Request{Ticker: args[0], Period: period})
	if err != nil {
		return err
	}
	rec, err := indicator.Compute(series)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), model.IndicatorSnapshot{Ticker: series.Ticker, IndicatorRecord: rec})
}

func runCompute(cmd *cobra.Command, args []string) error {
	f, err := os.Open(computeCSV)
	if err != nil {
		return err
	}
	defer f.Close()

	series, err := marketdata.ReadCSV(f, "")
	if err != nil {
		return fmt.Errorf("%s: %w", computeCSV, err)
	}
	rec, err := indicator.Compute(series)
	if err != nil {
		return fmt.Errorf("%s: %w", computeCSV, err)
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
