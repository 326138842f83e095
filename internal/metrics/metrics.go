// Package metrics provides the Prometheus metrics of the packing-list service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save actions
const (
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionUpsert         = "upsert"
	ActionConflictUpdate = "conflict_update"
	ActionFailed         = "failed"
)

var (
	// Save protocol metrics
	PackingListSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packing_list_saves_total",
			Help: "Packing list saves by resolved action",
		},
		[]string{"action"},
	)

	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packing_list_load_duration_seconds",
			Help:    "Time taken to load a packing list for editing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Editor metrics
	SessionEdits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packing_session_edits_total",
			Help: "Edits applied to packing sessions",
		},
		[]string{"op", "result"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordSave records the action a save resolved to.
func RecordSave(action string) {
	PackingListSaves.WithLabelValues(action).Inc()
}

// RecordLoad records where a manifest was loaded from.
func RecordLoad(source string, d time.Duration) {
	LoadDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordEdit records one editor operation.
func RecordEdit(op string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	SessionEdits.WithLabelValues(op, result).Inc()
}

// GinMiddleware records request count and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
