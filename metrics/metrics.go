package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type CompositorMetrics struct {
	HTTPRequestsInFlight prometheus.Gauge

	ChunkBytesWritten   prometheus.Counter
	ChunkAppendFailures prometheus.Counter

	ComposeRequestCount  prometheus.Counter
	CompositionsTotal    *prometheus.CounterVec
	CompositionDuration  *prometheus.SummaryVec
	ArtifactsProbed      *prometheus.CounterVec
	ProbeDurationSec     prometheus.Histogram
	RenderDurationSec    prometheus.Histogram
	RenderQueueDepth     prometheus.Gauge
	RendersInFlight      prometheus.Gauge
	ComposedDurationSec  prometheus.Histogram
	ArtifactsPurgedCount prometheus.Counter

	CompositionCallback ClientMetrics
}

func NewMetrics() *CompositorMetrics {
	m := &CompositorMetrics{
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "A count of the http requests in flight",
		}),

		// chunk ingestion
		ChunkBytesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chunk_bytes_written_total",
			Help: "Bytes of uploaded chunks durably appended to artifacts",
		}),
		ChunkAppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chunk_append_failures_total",
			Help: "Chunk appends that failed and were rolled back",
		}),

		// composition
		ComposeRequestCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "compose_request_count",
			Help: "The total number of compose requests",
		}),
		CompositionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compositions_total",
			Help: "Finished compositions broken up by final status",
		}, []string{"status"}),
		CompositionDuration: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "composition_duration_seconds",
			Help: "Wall clock time of whole compositions, broken up by final status",
		}, []string{"status"}),
		ArtifactsProbed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "artifacts_probed_total",
			Help: "Probed artifacts broken up by outcome",
		}, []string{"success"}),
		ProbeDurationSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_duration_seconds",
			Help:    "Time taken to probe a single artifact",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		RenderDurationSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Time taken by the transcoder to render a session",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		RenderQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "render_queue_depth",
			Help: "Renders waiting for a free slot",
		}),
		RendersInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "renders_in_flight",
			Help: "Renders currently running",
		}),
		ComposedDurationSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "composed_media_duration_seconds",
			Help:    "Duration of the composed output files",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200},
		}),
		ArtifactsPurgedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "artifacts_purged_total",
			Help: "Artifact files deleted after a successful composition",
		}),

		CompositionCallback: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "composition_callback_retry_count",
				Help: "The number of retries of a successful completion callback",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "composition_callback_failure_count",
				Help: "The total number of failed completion callbacks",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "composition_callback_duration",
				Help:    "Time taken to send completion callbacks",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}, []string{"host"}),
		},
	}

	return m
}

var Metrics = NewMetrics()
