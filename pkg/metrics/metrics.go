package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var HistogramBuckets = []float64{
	// fast (0 - 500ms)
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	// medium (500ms - 2s)
	750, 1000, 1250, 1500, 1750, 2000,
	// slow (2s - 15s)
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
	// provider round-trips can stall much longer
	20000, 30000, 60000,
}

var (
	reqCnt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "req_total",
		Help: "How many HTTP requests processed, partitioned by status code, method and route.",
	}, []string{"code", "method", "url"})

	reqDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "req_dur_ms",
		Help:    "The HTTP request latencies in milliseconds.",
		Buckets: HistogramBuckets,
	}, []string{"code", "method", "url"})

	// WebhookEvents counts reconciler outcomes per provider event type.
	// result is one of: handled, ignored, duplicate, miss, error, rejected.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook events by type and processing result.",
	}, []string{"type", "result"})
)

// HandlerFunc records request count and latency for every route except the
// metrics path itself.
func HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		url := c.FullPath()
		if url == "" {
			url = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		elapsed := float64(time.Since(start).Milliseconds())

		reqDur.WithLabelValues(status, c.Request.Method, url).Observe(elapsed)
		reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
	}
}

// Serve exposes /metrics on its own listener so scrapes stay out of the API
// access log. Runs in a goroutine; errors are logged, not fatal.
func Serve(addr string, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorw("metrics listener stopped", "addr", addr, "err", err)
		}
	}()
}
