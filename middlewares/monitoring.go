package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecommerce_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecommerce_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecommerce_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	pipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecommerce_order_pipeline_failures_total",
			Help: "Order creation failures by pipeline state and error kind",
		},
		[]string{"state", "kind"},
	)

	notificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecommerce_notification_deliveries_total",
			Help: "Notification delivery attempts",
		},
		[]string{"kind", "status"},
	)

	orphanedOrders = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecommerce_orphaned_orders_total",
			Help: "Orders left partially committed because a compensation failed",
		},
	)
)

// PrometheusMiddleware 收集 Prometheus 指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

// RecordOrderOperation 记录订单操作指标
func RecordOrderOperation(operation string, success bool) {
	orderOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// RecordPipelineFailure 记录下单流程在哪个阶段失败
func RecordPipelineFailure(state, kind string) {
	pipelineFailures.WithLabelValues(state, kind).Inc()
}

func RecordNotification(kind string, success bool) {
	notificationDeliveries.WithLabelValues(kind, statusLabel(success)).Inc()
}

func RecordOrphanedOrder() {
	orphanedOrders.Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
