package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whatsapp",
			Name:      "messages_total",
			Help:      "Total number of outbound messages by type and outcome",
		},
		[]string{"type", "status"},
	)

	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "whatsapp",
			Name:      "send_duration_seconds",
			Help:      "Duration of calls to the messages endpoint in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	apiErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whatsapp",
			Name:      "api_errors_total",
			Help:      "Total number of error objects returned by the platform, by error code",
		},
		[]string{"code"},
	)

	recordsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "whatsapp",
			Name:      "records_in_flight",
			Help:      "Number of Kafka records currently being dispatched",
		},
	)

	recordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whatsapp",
			Name:      "records_failed_total",
			Help:      "Total number of records routed to the DLQ, by failure type",
		},
		[]string{"failure_type"},
	)
)

// RecordSend counts one send attempt and observes its latency.
func RecordSend(msgType, status string, elapsed time.Duration) {
	messagesTotal.WithLabelValues(msgType, status).Inc()
	sendDuration.WithLabelValues(msgType).Observe(elapsed.Seconds())
}

// RecordAPIError counts an error object returned by the platform.
func RecordAPIError(code int) {
	apiErrors.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordFailure counts a record routed to the DLQ.
func RecordFailure(failureType string) {
	recordsFailed.WithLabelValues(failureType).Inc()
}

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func TrackInFlight() func() {
	recordsInFlight.Inc()
	return recordsInFlight.Dec
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
