// Package observability registers the Prometheus metrics shared across learnlog packages.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordsRecordedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "store",
		Name:      "records_recorded_total",
		Help:      "Number of learning records accepted, labeled by course and activity type.",
	}, []string{"course", "activity_type"})

	studentsAddedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "store",
		Name:      "students_added_total",
		Help:      "Number of students registered explicitly.",
	})

	studentsDeletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "store",
		Name:      "students_deleted_total",
		Help:      "Number of students deleted.",
	})

	cascadedRecordsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "store",
		Name:      "records_cascade_deleted_total",
		Help:      "Number of records removed together with their student.",
	})

	collectionSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "learnlog",
		Subsystem: "store",
		Name:      "collection_size",
		Help:      "Current number of entries per collection.",
	}, []string{"collection"})

	persistFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "learnlog",
		Subsystem: "persistence",
		Name:      "save_failures_total",
		Help:      "Number of failed dataset saves, labeled by the mutation that triggered them.",
	}, []string{"op"})

	persistedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "learnlog",
		Subsystem: "persistence",
		Name:      "last_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful dataset save.",
	})

	saveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "learnlog",
		Subsystem: "persistence",
		Name:      "save_duration_seconds",
		Help:      "Time spent writing the dataset blob, labeled by backend.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(
		recordsRecordedCounter,
		studentsAddedCounter,
		studentsDeletedCounter,
		cascadedRecordsCounter,
		collectionSizeGauge,
		persistFailureCounter,
		persistedGauge,
		saveDuration,
	)
}

// RecordActivityRecorded counts an accepted learning record.
func RecordActivityRecorded(course, activityType string) {
	recordsRecordedCounter.WithLabelValues(course, activityType).Inc()
}

// RecordStudentAdded counts an explicit registration.
func RecordStudentAdded() {
	studentsAddedCounter.Inc()
}

// RecordStudentDeleted counts a deletion and the records removed with it.
func RecordStudentDeleted(cascaded int) {
	studentsDeletedCounter.Inc()
	cascadedRecordsCounter.Add(float64(cascaded))
}

// RecordCollectionSizes updates the collection size gauges.
func RecordCollectionSizes(students, records int) {
	collectionSizeGauge.WithLabelValues("students").Set(float64(students))
	collectionSizeGauge.WithLabelValues("records").Set(float64(records))
}

// RecordPersistenceFailure counts a failed save.
func RecordPersistenceFailure(op string) {
	persistFailureCounter.WithLabelValues(op).Inc()
}

// RecordSnapshotSaved updates the save watermark and latency histogram.
func RecordSnapshotSaved(backend string, ts time.Time, took time.Duration) {
	saveDuration.WithLabelValues(backend).Observe(took.Seconds())
	if ts.IsZero() {
		return
	}
	persistedGauge.Set(float64(ts.Unix()))
}
