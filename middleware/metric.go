package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"backoffice/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	StockMovementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Units moved through the stock ledger",
		},
		[]string{"type"},
	)

	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order payment status changes",
		},
		[]string{"status"},
	)

	RequestOrdersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "request_orders_expired_total",
			Help: "Request orders flipped to unconfirmed by the expiry sweep",
		},
	)

	registerOnce sync.Once
)

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal,
			HttpRequestDuration,
			StockMovementsTotal,
			OrderTransitionsTotal,
			RequestOrdersExpiredTotal,
		)
	})
}

func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "undefined"
		}

		HttpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HttpRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
	}
}

// MetricsHandler serves /metrics to the listed client IPs only.
func MetricsHandler(allowedIPs []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		allowed[ip] = true
	}
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// LedgerMetrics feeds ledger events into the Prometheus collectors.
type LedgerMetrics struct{}

func (LedgerMetrics) StockMoved(entryType models.EntryType, quantity int) {
	StockMovementsTotal.WithLabelValues(string(entryType)).Add(float64(quantity))
}

func (LedgerMetrics) OrderTransitioned(status models.PaymentStatus) {
	OrderTransitionsTotal.WithLabelValues(string(status)).Inc()
}

func (LedgerMetrics) RequestsExpired(n int64) {
	RequestOrdersExpiredTotal.Add(float64(n))
}
