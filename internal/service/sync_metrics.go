package service

import (
	"sync"

	"github.com/jjenkins/factbase/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// syncMetrics holds the Prometheus collectors of the sync subsystem.
type syncMetrics struct {
	once sync.Once

	runs          *prometheus.CounterVec
	records       *prometheus.CounterVec
	recordErrors  *prometheus.CounterVec
	linked        *prometheus.CounterVec
	unmatched     *prometheus.CounterVec
	fuzzyMatches  prometheus.Counter
	runDuration   *prometheus.HistogramVec
	lastSuccessTS *prometheus.GaugeVec
}

var metrics syncMetrics

func (m *syncMetrics) init() {
	m.once.Do(func() {
		m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "factbase_sync_runs_total", Help: "Sync runs by final state"}, []string{"source", "state"})
		m.records = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "factbase_sync_records_total", Help: "Records merged by result"}, []string{"source", "result"})
		m.recordErrors = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "factbase_sync_record_errors_total", Help: "Records that failed to parse or merge"}, []string{"source"})
		m.linked = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "factbase_agency_links_total", Help: "Agency references resolved to an organization"}, []string{"source"})
		m.unmatched = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "factbase_agency_unmatched_total", Help: "Agency references left unresolved"}, []string{"source"})
		m.fuzzyMatches = prometheus.NewCounter(prometheus.CounterOpts{Name: "factbase_agency_fuzzy_matches_total", Help: "Agency names resolved by the fuzzy tier"})
		m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "factbase_sync_run_seconds",
			Help:    "Duration of sync runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"source"})
		m.lastSuccessTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "factbase_sync_last_success_timestamp_seconds", Help: "Finish time of the last completed run"}, []string{"source"})

		prometheus.MustRegister(
			m.runs, m.records, m.recordErrors,
			m.linked, m.unmatched, m.fuzzyMatches,
			m.runDuration, m.lastSuccessTS,
		)
	})
}

func recordFuzzyMatch() { metrics.init(); metrics.fuzzyMatches.Inc() }

func recordRun(s *model.SyncStatistics) {
	metrics.init()
	src := string(s.Source)
	metrics.runs.WithLabelValues(src, string(s.State)).Inc()
	metrics.records.WithLabelValues(src, string(ResultCreated)).Add(float64(s.Created))
	metrics.records.WithLabelValues(src, string(ResultUpdated)).Add(float64(s.Updated))
	metrics.records.WithLabelValues(src, string(ResultUnchanged)).Add(float64(s.Unchanged))
	metrics.records.WithLabelValues(src, string(ResultSkipped)).Add(float64(s.Skipped))
	metrics.recordErrors.WithLabelValues(src).Add(float64(s.Errors))
	metrics.linked.WithLabelValues(src).Add(float64(s.LinkedAgencies))
	metrics.unmatched.WithLabelValues(src).Add(float64(s.UnmatchedAgencies))
	metrics.runDuration.WithLabelValues(src).Observe(s.Duration().Seconds())
	if s.State == model.StateCompleted {
		metrics.lastSuccessTS.WithLabelValues(src).Set(float64(s.FinishedAt.Unix()))
	}
}
