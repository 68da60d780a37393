// Package metrics exposes Prometheus instrumentation for the directory
// server and the ranking engine.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Connection metrics
	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotelier_connections_total",
		Help: "Total number of client connections accepted",
	})

	connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hotelier_connections_active",
		Help: "Current number of open client connections",
	})

	connectionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hotelier_connections_rejected_total",
		Help: "Connections rejected before the handshake, by reason",
	}, []string{"reason"})

	// Request metrics
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hotelier_requests_total",
		Help: "Requests processed, by method and response status",
	}, []string{"method", "status"})

	framingErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotelier_framing_errors_total",
		Help: "Connections dropped because of malformed or oversized frames",
	})

	// Worker pool metrics
	workerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hotelier_worker_queue_depth",
		Help: "Current number of tasks waiting in the worker pool queue",
	})

	workerTasksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotelier_worker_tasks_dropped_total",
		Help: "Tasks dropped because the worker pool queue was full",
	})

	// Ranking metrics
	rankingPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotelier_ranking_passes_total",
		Help: "Completed ranking passes",
	})

	rankingPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hotelier_ranking_pass_duration_seconds",
		Help:    "Wall time of one ranking pass over all cities",
		Buckets: prometheus.DefBuckets,
	})

	reviewsAggregated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotelier_reviews_aggregated_total",
		Help: "Reviews folded into hotel aggregates",
	})

	notificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotelier_notifications_sent_total",
		Help: "Top-hotel change notifications published over multicast",
	})

	// Persistence metrics
	reviewsDumped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotelier_reviews_dumped_total",
		Help: "Reviews appended to the on-disk review log",
	})

	saveErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hotelier_save_errors_total",
		Help: "Failed table saves, by table",
	}, []string{"table"})
)

func init() {
	prometheus.MustRegister(connectionsTotal)
	prometheus.MustRegister(connectionsActive)
	prometheus.MustRegister(connectionsRejected)

	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(framingErrors)

	prometheus.MustRegister(workerQueueDepth)
	prometheus.MustRegister(workerTasksDropped)

	prometheus.MustRegister(rankingPasses)
	prometheus.MustRegister(rankingPassDuration)
	prometheus.MustRegister(reviewsAggregated)
	prometheus.MustRegister(notificationsSent)

	prometheus.MustRegister(reviewsDumped)
	prometheus.MustRegister(saveErrors)
}

// Rejection reasons for ConnectionRejected.
const (
	RejectReasonCapacity  = "capacity"
	RejectReasonRateLimit = "rate_limit"
	RejectReasonCPU       = "cpu"
)

// ConnectionOpened records an accepted connection.
func ConnectionOpened() {
	connectionsTotal.Inc()
	connectionsActive.Inc()
}

// ConnectionClosed records a closed connection.
func ConnectionClosed() {
	connectionsActive.Dec()
}

// ConnectionRejected records a pre-handshake rejection.
func ConnectionRejected(reason string) {
	connectionsRejected.WithLabelValues(reason).Inc()
}

// RequestHandled records one processed request.
func RequestHandled(method, status string) {
	requestsTotal.WithLabelValues(method, status).Inc()
}

// FramingError records a connection killed by a wire format violation.
func FramingError() {
	framingErrors.Inc()
}

// WorkerQueueDepthSet updates the worker queue gauge.
func WorkerQueueDepthSet(depth int) {
	workerQueueDepth.Set(float64(depth))
}

// WorkerTaskDropped records a task lost to a full worker queue.
func WorkerTaskDropped() {
	workerTasksDropped.Inc()
}

// RankingPassCompleted records one finished pass and its duration.
func RankingPassCompleted(elapsed time.Duration, folded int) {
	rankingPasses.Inc()
	rankingPassDuration.Observe(elapsed.Seconds())
	reviewsAggregated.Add(float64(folded))
}

// NotificationSent records one multicast publication.
func NotificationSent() {
	notificationsSent.Inc()
}

// ReviewsDumped records reviews persisted to the log.
func ReviewsDumped(n int) {
	reviewsDumped.Add(float64(n))
}

// SaveError records a failed table save.
func SaveError(table string) {
	saveErrors.WithLabelValues(table).Inc()
}

// Serve runs the Prometheus scrape endpoint until ctx is canceled.
func Serve(ctx context.Context, addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics endpoint failed")
	}
}
