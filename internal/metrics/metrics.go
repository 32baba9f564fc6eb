package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard.
// A nil *Metrics is valid; every recording method is then a no-op.
type Metrics struct {
	// Indicator engine
	IndicatorComputeDur prometheus.Histogram
	IndicatorComputes   *prometheus.CounterVec // labels: result=ok|empty|error

	// Market data
	MarketFetches  *prometheus.CounterVec // labels: kind, status
	MarketFetchDur prometheus.Histogram
	CacheLookups   *prometheus.CounterVec // labels: cache, result=hit|miss

	// Upstream circuit breaker
	CircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CircuitBreakerTrips prometheus.Counter

	// LLM
	LLMRequestDur prometheus.Histogram
	LLMErrors     prometheus.Counter

	// HTTP API
	HTTPRequests *prometheus.CounterVec // labels: route, code
	HTTPDuration *prometheus.HistogramVec

	// Watchlist push and scanner
	WSClients  prometheus.Gauge
	ScanRuns   *prometheus.CounterVec // labels: status
	AlertsSent *prometheus.CounterVec // labels: kind

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers and returns all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockdash_indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per series",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		IndicatorComputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_indicator_computes_total",
			Help: "Indicator computations by result",
		}, []string{"result"}),

		MarketFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_market_fetches_total",
			Help: "Upstream market-data requests by kind and status",
		}, []string{"kind", "status"}),
		MarketFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockdash_market_fetch_duration_seconds",
			Help:    "Upstream market-data request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_cache_lookups_total",
			Help: "Market-data cache lookups by cache and result",
		}, []string{"cache", "result"}),

		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockdash_market_circuit_breaker_state",
			Help: "Market-data circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockdash_market_circuit_breaker_trips_total",
			Help: "Times the market-data circuit breaker tripped open",
		}),

		LLMRequestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockdash_llm_request_duration_seconds",
			Help:    "LLM request latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		LLMErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockdash_llm_errors_total",
			Help: "Failed LLM requests",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockdash_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockdash_ws_clients",
			Help: "Connected watchlist websocket clients",
		}),
		ScanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_scan_runs_total",
			Help: "Watchlist scan runs by status",
		}, []string{"status"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_alerts_sent_total",
			Help: "Indicator alerts delivered by kind",
		}, []string{"kind"}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockdash_market_state",
			Help: "Exchange session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.IndicatorComputeDur,
		m.IndicatorComputes,
		m.MarketFetches,
		m.MarketFetchDur,
		m.CacheLookups,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.LLMRequestDur,
		m.LLMErrors,
		m.HTTPRequests,
		m.HTTPDuration,
		m.WSClients,
		m.ScanRuns,
		m.AlertsSent,
		m.MarketState,
	)

	return m
}

// ObserveCompute records one indicator computation.
func (m *Metrics) ObserveCompute(d time.Duration, result string) {
	if m == nil {
		return
	}
	m.IndicatorComputeDur.Observe(d.Seconds())
	m.IndicatorComputes.WithLabelValues(result).Inc()
}

// ObserveFetch records one upstream market-data request.
func (m *Metrics) ObserveFetch(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MarketFetches.WithLabelValues(kind, status).Inc()
	m.MarketFetchDur.Observe(d.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// SetBreakerState records the circuit breaker state; a transition to open
// also counts a trip.
func (m *Metrics) SetBreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Set(float64(state))
	if tripped {
		m.CircuitBreakerTrips.Inc()
	}
}

// ObserveLLM records one LLM request.
func (m *Metrics) ObserveLLM(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.LLMRequestDur.Observe(d.Seconds())
	if err != nil {
		m.LLMErrors.Inc()
	}
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// SetWSClients records the number of connected websocket clients.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}

// ObserveScan records one watchlist scan run.
func (m *Metrics) ObserveScan(status string) {
	if m == nil {
		return
	}
	m.ScanRuns.WithLabelValues(status).Inc()
}

// ObserveAlert records one delivered alert.
func (m *Metrics) ObserveAlert(kind string) {
	if m == nil {
		return
	}
	m.AlertsSent.WithLabelValues(kind).Inc()
}

// SetMarketOpen records the exchange session state.
func (m *Metrics) SetMarketOpen(open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.MarketState.Set(v)
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool `json:"redis_enabled"`
	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`
	LLMConfigured  bool `json:"llm_configured"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLLMConfigured(v bool) {
	h.mu.Lock()
	h.LLMConfigured = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// Probe runs every configured dependency check once.
func (h *HealthStatus) Probe(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if rdb != nil {
		h.CheckRedis(probeCtx, rdb)
	}
	if sqlDB != nil {
		h.CheckSQLite(probeCtx, sqlDB)
	}
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	h.Probe(ctx, rdb, sqlDB)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Probe(ctx, rdb, sqlDB)
			}
		}
	}()
}

// Report is the JSON body served by ServeHTTP.
type Report struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	RedisEnabled    bool    `json:"redis_enabled"`
	RedisConnected  bool    `json:"redis_connected"`
	RedisLatencyMs  float64 `json:"redis_latency_ms"`
	SQLiteOK        bool    `json:"sqlite_ok"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	LLMConfigured   bool    `json:"llm_configured"`
	LastCheckAt     string  `json:"last_check_at"`
}

// Report summarises current health. SQLite down is unhealthy; Redis down
// while enabled is degraded.
func (h *HealthStatus) Report() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if h.RedisEnabled && !h.RedisConnected {
		overallStatus = "degraded"
	}
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	return Report{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LLMConfigured:   h.LLMConfigured,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}, httpCode
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, httpCode := h.Report()
	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
