package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_attempts_finalized_total",
			Help: "Attempts moved out of in_progress, by resulting status",
		},
		[]string{"status"},
	)

	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_points_awarded_total",
			Help: "Points credited to student wallets",
		},
		[]string{"source"},
	)

	BadgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_badges_awarded_total",
			Help: "Badges newly earned, by trigger type",
		},
		[]string{"trigger"},
	)

	RewardFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_reward_failures_total",
			Help: "Completion pipeline steps that failed",
		},
		[]string{"step"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	WalletDrift = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_wallet_drift_total",
			Help: "Wallets whose balance differs from the ledger sum at reconciliation",
		},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(AttemptsFinalized)
		prometheus.MustRegister(PointsAwarded)
		prometheus.MustRegister(BadgesAwarded)
		prometheus.MustRegister(RewardFailures)
		prometheus.MustRegister(RateLimited)
		prometheus.MustRegister(WalletDrift)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
