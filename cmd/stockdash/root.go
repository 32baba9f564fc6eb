package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"stockdash/config"
	"stockdash/internal/marketdata"
	"stockdash/internal/metrics"
	"stockdash/internal/model"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stockdash",
	Short: "Swing-trading dashboard backend for Tokyo-listed stocks",
	Long: `stockdash serves quotes, technical indicators, a trade journal and a
watchlist over HTTP, and computes indicators from the command line.

Configuration comes from built-in defaults, an optional YAML file
(--config or CONFIG_PATH) and environment variables, in that order.`,
	SilenceUsage: true,
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newMarket builds the cached Yahoo provider. cache may be nil, in which
// case an in-process cache is used.
func newMarket(cfg *config.Config, cache model.SeriesCache, m *metrics.Metrics) *marketdata.CachedProvider {
	name := "redis"
	if cache == nil {
		cache = marketdata.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
		name = "memory"
	}
	return marketdata.NewCachedProvider(
		marketdata.NewYahooProvider(cfg.MarketBaseURL, cfg.MarketTimeout),
		cache,
		marketdata.CachedProviderConfig{
			TTL:         cfg.CacheTTL,
			MinInterval: cfg.MarketMinInterval,
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
			CacheName:   name,
		},
		m,
	)
}
