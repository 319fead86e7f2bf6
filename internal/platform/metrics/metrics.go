package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the scan pipeline.
type Metrics struct {
	GroupsDiscovered   prometheus.Counter
	EntriesSkipped     prometheus.Counter
	RecordsBuilt       prometheus.Counter
	RecordsDiscarded   prometheus.Counter
	Submissions        *prometheus.CounterVec
	Reverts            *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
}

// New creates and registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GroupsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkscan_groups_discovered_total",
			Help: "Complete scan triplets found in the drop folder",
		}),
		EntriesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkscan_entries_skipped_total",
			Help: "Directory entries that could not be read during discovery",
		}),
		RecordsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkscan_records_built_total",
			Help: "Check records reconstructed from complete groups",
		}),
		RecordsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkscan_records_discarded_total",
			Help: "Complete groups discarded because no code could be read",
		}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkscan_submissions_total",
			Help: "Per-record submissions by result",
		}, []string{"result"}),
		Reverts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkscan_reverts_total",
			Help: "Batch revert calls by result",
		}, []string{"result"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkscan_submission_duration_seconds",
			Help:    "Duration of a single multipart submission",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) AddGroupsDiscovered(n int) {
	m.GroupsDiscovered.Add(float64(n))
}

func (m *Metrics) IncrementEntriesSkipped() {
	m.EntriesSkipped.Inc()
}

func (m *Metrics) IncrementRecordsBuilt() {
	m.RecordsBuilt.Inc()
}

func (m *Metrics) IncrementRecordsDiscarded() {
	m.RecordsDiscarded.Inc()
}

// ObserveSubmission records one per-record submission outcome.
// Call with time.Now() at the start of the upload.
func (m *Metrics) ObserveSubmission(start time.Time, failed bool) {
	m.SubmissionDuration.Observe(time.Since(start).Seconds())
	m.Submissions.WithLabelValues(resultLabel(failed)).Inc()
}

func (m *Metrics) IncrementRevert(failed bool) {
	m.Reverts.WithLabelValues(resultLabel(failed)).Inc()
}

func resultLabel(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}
