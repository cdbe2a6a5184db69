package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"example.com/learnlog/internal/events"
)

const missingEventType = "missing"

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "auditor",
		Name:      "messages_processed_total",
		Help:      "Number of learning events successfully handled.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "auditor",
		Name:      "handler_errors_total",
		Help:      "Number of handler errors grouped by topic and event type.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "auditor",
		Name:      "decode_errors_total",
		Help:      "Number of malformed learning events per topic, labeled by the event_type header (\"missing\" when absent).",
	}, []string{"topic", "event_type"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "learnlog",
		Subsystem: "auditor",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed message per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(msg kafka.Message) {
	eventType := missingEventType
	if value, ok := headerValue(msg, events.HeaderEventType); ok && len(value) > 0 {
		eventType = string(value)
	}
	decodeErrorCounter.WithLabelValues(msg.Topic, eventType).Inc()
}
