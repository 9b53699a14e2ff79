package rewriter

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring rewriting.
var (
	//decoded prometheus metric.
	decoded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of bodies converted into documents",
			Name:      "decoded_total",
			Namespace: "jserial",
		},
	)
	//encoded prometheus metric.
	encoded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of documents converted back into bodies",
			Name:      "encoded_total",
			Namespace: "jserial",
		},
	)
	//decodeFailures prometheus metric.
	decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of qualified messages passed through undecoded",
			Name:      "decode_failures_total",
			Namespace: "jserial",
		},
		[]string{"reason"},
	)
	//encodeFailures prometheus metric.
	encodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of marked messages passed through unencoded",
			Name:      "encode_failures_total",
			Namespace: "jserial",
		},
		[]string{"reason"},
	)
	//hookPanics prometheus metric.
	hookPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of hook calls recovered from a panic",
			Name:      "hook_panics_total",
			Namespace: "jserial",
		},
	)
)

func init() {
	prometheus.MustRegister(
		decoded,
		encoded,
		decodeFailures,
		encodeFailures,
		hookPanics,
	)
}
