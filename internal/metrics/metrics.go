// Package metrics provides Prometheus instrumentation for the settlement engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsTotal counts accepted bets, partitioned by side.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sibyl_bets_total",
		Help: "Total number of bets accepted",
	}, []string{"side"})

	// BetVolume accumulates staked SBYL base units per side.
	BetVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sibyl_bet_volume_total",
		Help: "Cumulative stake in SBYL base units",
	}, []string{"side"})

	// MarketsCreated counts markets opened by the authority.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sibyl_markets_created_total",
		Help: "Total number of markets created",
	})

	// MarketsResolved counts finalized markets, partitioned by outcome.
	MarketsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sibyl_markets_resolved_total",
		Help: "Total number of markets resolved",
	}, []string{"outcome"})

	// ClaimsTotal counts successful payout claims.
	ClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sibyl_claims_total",
		Help: "Total number of successful claims",
	})

	// PayoutVolume accumulates net payouts in SBYL base units.
	PayoutVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sibyl_payout_volume_total",
		Help: "Cumulative net payouts in SBYL base units",
	})

	// SwapsTotal counts successful native→SBYL swaps.
	SwapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sibyl_swaps_total",
		Help: "Total number of successful swaps",
	})

	// SwapRejections counts swaps rejected by the per-call cap.
	SwapRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sibyl_swap_rejections_total",
		Help: "Swaps rejected by the per-call cap",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sibyl_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sibyl_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sibyl_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
