package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Caption outcomes used as the "outcome" label.
const (
	OutcomeCaptioned    = "captioned"
	OutcomeNoCaption    = "no_caption"
	OutcomeFieldMissing = "field_missing"
	OutcomeSaveFailed   = "save_failed"
	OutcomeSkipped      = "skipped"
)

var (
	// CaptionRequests counts handled entity notifications by outcome.
	CaptionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_caption_events_total",
			Help: "Entity notifications handled by the caption handler, by outcome",
		},
		[]string{"outcome"},
	)

	// InferenceLatency tracks the inference call, labelled by request mode and result.
	InferenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_caption_inference_seconds",
			Help:    "Latency of captioning inference requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "result"},
	)

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_caption_http_requests_total",
			Help: "HTTP requests served, by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveInference records one inference call.
func ObserveInference(mode string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	InferenceLatency.WithLabelValues(mode, result).Observe(elapsed.Seconds())
}

// CountCaption increments the outcome counter.
func CountCaption(outcome string) {
	CaptionRequests.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
