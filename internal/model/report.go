package model

import "time"

// EffectivenessReport is the read-only view of how well each rule performs
type EffectivenessReport struct {
	GeneratedAt     time.Time           `json:"generated_at"`
	BankFingerprint string              `json:"bank_fingerprint"`
	TrainingRecords int                 `json:"training_records"`
	Rules           []RuleStats         `json:"rules"`
	CoverageGaps    []CoverageGapNotice `json:"coverage_gaps"`
	Signals         []Signal            `json:"signals"`
}

// RuleStats summarises one rule's training history
type RuleStats struct {
	RuleID          string       `json:"rule_id"`
	Section         Section      `json:"section"`
	Field           string       `json:"field"`
	Strategy        StrategyKind `json:"strategy"`
	SuccessCount    int          `json:"success_count"`
	FailureCount    int          `json:"failure_count"`
	Weight          float64      `json:"weight"`
	DerivedAccuracy float64      `json:"derived_accuracy"` // success / (success + failure), 0 when untrained
}

// CoverageGapNotice reports a field corrected by reviewers that no rule could produce.
// It is informational and never an error.
type CoverageGapNotice struct {
	FieldPath     string         `json:"field_path"`
	Occurrences   int            `json:"occurrences"`
	DocumentTypes []DocumentType `json:"document_types"`
	LastSeen      time.Time      `json:"last_seen"`
	Examples      []any          `json:"examples,omitempty"` // corrected values, most recent first
}

// Signal is a diagnostic with transparent supporting data
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType classifies a diagnostic signal
type SignalType string

const (
	SignalFieldConflict   SignalType = "field_conflict"    // Candidates disagreed on a field value
	SignalDegradedHint    SignalType = "degraded_hint"     // Document type hint was not a known type
	SignalUnclassified    SignalType = "unclassified"      // Classifier fell back to UNKNOWN
	SignalLowAccuracyRule SignalType = "low_accuracy_rule" // Rule is corrected more often than confirmed
	SignalDecayedRule     SignalType = "decayed_rule"      // Rule weight dropped to near zero
	SignalCoverageGap     SignalType = "coverage_gap"      // Corrections with no rule able to produce them
	SignalUntrainedBank   SignalType = "untrained_bank"    // No training records yet
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
