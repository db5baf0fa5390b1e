package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TaskProcessed    *prometheus.CounterVec
	APIErrors        prometheus.Counter
	RequestSeconds   *prometheus.HistogramVec
	ActiveWorkers    prometheus.Gauge
	CacheLookups     *prometheus.CounterVec
	RoutePoints      prometheus.Histogram
	PolylineRequests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		TaskProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "routing_tasks_processed_total",
			Help: "Total number of processed routing tasks.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "routing_provider_api_errors_total",
			Help: "Total number of errors received from the routing provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routing_provider_request_duration_seconds",
			Help:    "Duration of requests to the routing provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "routing_active_workers",
			Help: "Current number of active workers processing tasks.",
		}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "routing_cache_lookups_total",
			Help: "Total number of route cache lookups by result.",
		}, []string{"result"}),
		RoutePoints: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "routing_route_points",
			Help:    "Number of points in decoded route polylines.",
			Buckets: prometheus.ExponentialBuckets(2, 4, 8), //nolint:mnd
		}),
		PolylineRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "polyline_api_requests_total",
			Help: "Total number of polyline API requests by operation and status.",
		}, []string{"operation", "status"}),
	}
}
