// Package metrics exposes Prometheus instrumentation for extraction and training.
//
// All metrics are prefixed with "intake_". Every method is safe on a nil *Metrics,
// so components can be built without instrumentation.
//
// Metrics:
//   - intake_documents_processed_total{document_type,cached}
//   - intake_extraction_duration_seconds
//   - intake_fields_extracted_total{section}
//   - intake_field_conflicts_total
//   - intake_degraded_hints_total
//   - intake_corrections_total{document_type,outcome}
//   - intake_rule_adjustments_total{direction}
//   - intake_coverage_gaps_total
//   - intake_bank_version
//   - intake_cache_hits_total, intake_cache_misses_total
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/intake/internal/model"
)

// Metrics holds the intake collectors
type Metrics struct {
	DocumentsProcessed *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	FieldsExtracted    *prometheus.CounterVec
	FieldConflicts     prometheus.Counter
	DegradedHints      prometheus.Counter

	Corrections     *prometheus.CounterVec
	RuleAdjustments *prometheus.CounterVec
	CoverageGaps    prometheus.Counter
	BankVersion     prometheus.Gauge

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates the collectors and registers them with reg.
// Use a fresh registry per instance; registering twice on one registry panics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_documents_processed_total",
			Help: "Documents run through extraction",
		}, []string{"document_type", "cached"}),
		ExtractionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_extraction_duration_seconds",
			Help:    "Time spent extracting one document",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
		FieldsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_fields_extracted_total",
			Help: "Fields that received a value",
		}, []string{"section"}),
		FieldConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_field_conflicts_total",
			Help: "Fields whose candidates disagreed",
		}),
		DegradedHints: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_degraded_hints_total",
			Help: "Document type hints that were not a known type",
		}),
		Corrections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_corrections_total",
			Help: "Training corrections received",
		}, []string{"document_type", "outcome"}), // outcome: stored, invalid, error
		RuleAdjustments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_rule_adjustments_total",
			Help: "Rule weight adjustments applied by training",
		}, []string{"direction"}), // up, down
		CoverageGaps: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_coverage_gaps_total",
			Help: "Corrected fields no rule could produce",
		}),
		BankVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "intake_bank_version",
			Help: "Pattern bank version, bumped on every training update",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_cache_hits_total",
			Help: "Extraction result cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "intake_cache_misses_total",
			Help: "Extraction result cache misses",
		}),
	}
}

// RecordExtraction records one processed document
func (m *Metrics) RecordExtraction(docType model.DocumentType, cached bool, seconds float64, result model.ExtractionResult, signals []model.Signal) {
	if m == nil {
		return
	}
	c := "false"
	if cached {
		c = "true"
	}
	m.DocumentsProcessed.WithLabelValues(string(docType), c).Inc()
	if cached {
		return
	}
	m.ExtractionDuration.Observe(seconds)
	for section, fields := range result {
		for _, v := range fields {
			if !v.IsEmpty() {
				m.FieldsExtracted.WithLabelValues(string(section)).Inc()
			}
		}
	}
	for _, s := range signals {
		switch s.Type {
		case model.SignalFieldConflict:
			m.FieldConflicts.Inc()
		case model.SignalDegradedHint:
			m.DegradedHints.Inc()
		}
	}
}

// RecordCache records a result cache lookup
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// RecordCorrection records one training call and the adjustments it caused
func (m *Metrics) RecordCorrection(docType model.DocumentType, outcome string, rec *model.TrainingRecord) {
	if m == nil {
		return
	}
	m.Corrections.WithLabelValues(string(docType), outcome).Inc()
	if rec == nil {
		return
	}
	for _, a := range rec.Attribution {
		m.RuleAdjustments.WithLabelValues("down").Add(float64(len(a.Failed)))
		m.RuleAdjustments.WithLabelValues("up").Add(float64(len(a.Succeeded)))
	}
	m.CoverageGaps.Add(float64(len(rec.CoverageGaps())))
}

// SetBankVersion publishes the current bank version
func (m *Metrics) SetBankVersion(v int64) {
	if m == nil {
		return
	}
	m.BankVersion.Set(float64(v))
}
