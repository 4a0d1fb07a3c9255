// Package metrics holds the Prometheus collectors for the website. They are
// registered on the default registry and served on the private address.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coderun"

var (
	PageRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Page requests by route and status code",
		},
		[]string{"route", "status"},
	)

	PageRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Page request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)

	PageRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Page requests currently being handled",
		},
	)

	ApiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Calls to the platform API by operation and status code (0 for transport errors)",
		},
		[]string{"operation", "status"},
	)

	ApiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Platform API call duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 120},
		},
		[]string{"operation"},
	)

	ApiUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "up",
			Help:      "1 if the last platform API health probe succeeded",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "phases_total",
			Help:      "Video upload phases by phase and result",
		},
		[]string{"phase", "result"},
	)

	UploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Bytes forwarded to the platform API by kind of file",
		},
		[]string{"kind"},
	)

	ForcedLogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "forced_logouts_total",
			Help:      "Sessions ended because the API rejected the stored token",
		},
	)
)

func ObservePageRequest(route string, status int, duration time.Duration) {
	PageRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	PageRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func ObserveApiRequest(operation string, status int, duration time.Duration) {
	ApiRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	ApiRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func ObserveUploadPhase(phase string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	UploadsTotal.WithLabelValues(phase, result).Inc()
}

func SetApiUp(up bool) {
	if up {
		ApiUp.Set(1)
	} else {
		ApiUp.Set(0)
	}
}
