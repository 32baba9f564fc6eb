package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"stockdash/config"
	"stockdash/internal/api"
	"stockdash/internal/dashboard"
	"stockdash/internal/gateway"
	"stockdash/internal/journal"
	"stockdash/internal/llm"
	"stockdash/internal/logger"
	"stockdash/internal/metrics"
	"stockdash/internal/model"
	"stockdash/internal/notification"
	"stockdash/internal/scanner"
	"stockdash/internal/store/redis"
	"stockdash/internal/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, websocket feed, metrics server and watchlist scanner",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Setup("stockdash", logger.Options{
		Level:      logger.ParseLevel(cfg.LogLevel),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	slog.Info("starting", "http_addr", cfg.HTTPAddr, "metrics_addr", cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Metrics & health ──
	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ── Storage ──
	store, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		rc    *redis.Client
		rdb   *goredis.Client
		cache model.SeriesCache
	)
	if cfg.RedisAddr != "" {
		health.SetRedisEnabled(true)
		rc, err = redis.New(redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache", "addr", cfg.RedisAddr, "error", err)
			rc = nil
		} else {
			defer rc.Close()
			rdb = rc.Raw()
			cache = rc
		}
	}
	health.StartLivenessChecker(ctx, rdb, store.DB(), 15*time.Second)

	// ── Services ──
	market := newMarket(cfg, cache, m)

	chat := llm.NewClient(llm.Config{
		APIKey:     cfg.AnthropicAPIKey,
		BaseURL:    cfg.AnthropicBaseURL,
		Model:      cfg.AnthropicModel,
		MaxTokens:  cfg.AnthropicMaxTokens,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: cfg.LLMMaxRetries,
	}, llm.NewConversations(cfg.ConversationLimit), m)
	health.SetLLMConfigured(chat.Configured())
	if !chat.Configured() {
		slog.Warn("ANTHROPIC_API_KEY not set; analysis chat disabled")
	}

	jw := journal.New(cfg.VaultPath, cfg.JournalDir)
	if jw == nil {
		slog.Info("journal disabled (no vault path)")
	}

	svc := dashboard.New(dashboard.Deps{
		Trades:        store,
		Watchlist:     store,
		Market:        market,
		Journal:       jw,
		Chat:          chat,
		Metrics:       m,
		DefaultPeriod: cfg.DefaultPeriod,
	})

	// ── Watchlist push ──
	hub := gateway.NewHub(m)
	var pub gateway.Publisher = hub
	if rc != nil {
		router := gateway.NewPubSubRouter(hub, rc)
		go router.Run(ctx)
		pub = router
	}
	go hub.StartStatusBroadcast(ctx, 30*time.Second)

	// ── Scanner ──
	var sc *scanner.Scanner
	if cfg.ScanEnabled {
		sc = scanner.New(scanner.Config{
			Spec:   cfg.ScanCron,
			Period: cfg.DefaultPeriod,
			Thresholds: scanner.Thresholds{
				Overbought: cfg.RSIOverbought,
				Oversold:   cfg.RSIOversold,
			},
		}, svc, pub, notification.New(notification.Config{
			WebhookURL:       cfg.AlertWebhookURL,
			TelegramBotToken: cfg.TelegramBotToken,
			TelegramChatID:   cfg.TelegramChatID,
		}), m)
		if err := sc.Start(ctx); err != nil {
			return err
		}
		defer sc.Stop()
	}

	if path := resolvedConfigPath(); path != "" && sc != nil {
		go func() {
			err := config.Watch(ctx, path, func(c *config.Config) {
				sc.SetThresholds(scanner.Thresholds{Overbought: c.RSIOverbought, Oversold: c.RSIOversold})
			})
			if err != nil {
				slog.Warn("config watch stopped", "error", err)
			}
		}()
	}

	// ── HTTP ──
	var alerts api.AlertSource
	if sc != nil {
		alerts = sc
	}
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Options{
			Service:     svc,
			WS:          hub,
			Alerts:      alerts,
			Metrics:     m,
			CORSOrigins: splitList(cfg.CORSOrigins),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[stockdash] http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Printf("[stockdash] received %v, shutting down...", sig)
	case runErr = <-errCh:
		log.Printf("[stockdash] http server failed: %v", runErr)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	srv.Shutdown(shutdownCtx)
	hub.Close()
	metricsSrv.Stop(shutdownCtx)
	cancel()

	log.Println("[stockdash] stopped")
	return runErr
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("CONFIG_PATH")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
