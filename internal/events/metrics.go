package events

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Number of learning events written to Kafka, labeled by event type.",
	}, []string{"event_type"})

	publishFailedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Number of learning events that could not be written, labeled by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(publishedCounter, publishFailedCounter)
}
