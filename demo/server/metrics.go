package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shpserve",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shpserve",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"endpoint"})

	featuresServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shpserve",
		Subsystem: "shapefile",
		Name:      "features_served_total",
		Help:      "Total features written to responses",
	}, []string{"format"})

	nullGeometriesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shpserve",
		Subsystem: "shapefile",
		Name:      "null_geometries_skipped_total",
		Help:      "Null records left out of FlatGeobuf responses",
	})

	orphanHoles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shpserve",
		Subsystem: "shapefile",
		Name:      "orphan_holes_total",
		Help:      "Polygon holes without a containing exterior ring",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency under a fixed endpoint label.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		httpRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
