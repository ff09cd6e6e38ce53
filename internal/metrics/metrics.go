// Package metrics exposes Prometheus counters for HTTP traffic and exam sessions.
package metrics

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/examhall/internal/model"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examhall_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "examhall_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	LiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "examhall_live_sessions",
		Help: "Exam sockets currently open",
	})

	SessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examhall_session_events_total",
			Help: "Session lifecycle transitions",
		},
		[]string{"event"},
	)

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examhall_submissions_total",
			Help: "Results stored, by submit mode",
		},
		[]string{"mode"},
	)

	SubmitFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "examhall_submit_failures_total",
		Help: "Submit attempts that could not be persisted",
	})

	IntegritySignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examhall_integrity_signals_total",
			Help: "Anti-cheating signals, by kind",
		},
		[]string{"kind"},
	)
)

// Session lifecycle labels for SessionEvents.
const (
	EventOpened    = "opened"
	EventStarted   = "started"
	EventDeclined  = "declined"
	EventCancelled = "cancelled"
	EventAbandoned = "abandoned"
)

var once sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter, RequestDuration, LiveSessions,
			SessionEvents, Submissions, SubmitFailures, IntegritySignals,
		)
	})
}

// Middleware records count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		RequestCounter.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ResultObserver counts stored results by submit mode.
type ResultObserver struct{}

func (ResultObserver) ResultStored(_ context.Context, r *model.Result) {
	mode := "manual"
	if r.AutoSubmit {
		mode = "auto"
	}
	Submissions.WithLabelValues(mode).Inc()
}
