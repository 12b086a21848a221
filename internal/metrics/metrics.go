// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "room_transcriber"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Agent metrics
	AgentsStarted prometheus.Counter
	AgentsActive  prometheus.Gauge

	// Track metrics
	TracksActive prometheus.Gauge
	TrackErrors  prometheus.Counter

	// Transcript metrics
	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Bus metrics
	SubscribersActive prometheus.Gauge
	EventsPublished   prometheus.Counter
	EventsDropped     *prometheus.CounterVec

	// Kafka mirror metrics
	KafkaPublishTotal  prometheus.Counter
	KafkaPublishErrors prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		AgentsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agents_started_total",
			Help:      "Total number of room agents started",
		}),
		AgentsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_active",
			Help:      "Number of currently running room agents",
		}),
		TracksActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracks_active",
			Help:      "Number of audio tracks currently being transcribed",
		}),
		TrackErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_errors_total",
			Help:      "Total number of per-track transcription failures",
		}),
		TranscriptsInterim: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts published",
		}),
		SubscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers_active",
			Help:      "Number of currently connected transcript subscribers",
		}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of transcript events published to the bus",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of transcript events dropped",
		}, []string{"reason"}),
		KafkaPublishTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of transcript events mirrored to Kafka",
		}),
		KafkaPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of failed Kafka mirror publishes",
		}),
	}
}
