package bridge

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ghost_stark"

// Outcome labels.
const (
	outcomeSuccess   = "success"
	outcomeZeroFee   = "zero_fee"
	outcomeError     = "error"
	outcomeStale     = "stale"
	outcomeRejected  = "rejected"
	outcomeSubmitted = "submitted"
)

// Metrics are the bridge collectors.
type Metrics struct {
	Estimations        *prometheus.CounterVec
	Executions         *prometheus.CounterVec
	Rejections         prometheus.Counter
	EstimationDuration prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Estimations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimations_total",
			Help:      "Fee estimations by outcome.",
		}, []string{"outcome"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Transaction submissions by outcome.",
		}, []string{"outcome"}),
		Rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Submissions declined at the signing prompt.",
		}),
		EstimationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "estimation_duration_seconds",
			Help:      "Fee estimation latency.",
			Buckets:   []float64{0.1, 0.3, 0.5, 1.0, 2.0, 5.0},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Bridge HTTP requests.",
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(m.Estimations, m.Executions, m.Rejections, m.EstimationDuration, m.HTTPRequests)

	return m
}

func (m *Metrics) observeEstimation(outcome string, start time.Time) {
	m.Estimations.WithLabelValues(outcome).Inc()
	m.EstimationDuration.Observe(time.Since(start).Seconds())
}

// middleware counts requests by route template.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			return
		}

		m.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
