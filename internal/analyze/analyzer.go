package analyze

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/patterns"
	"github.com/ppiankov/intake/internal/training"
)

const (
	// MinSamples is the number of corrections a rule needs before its accuracy is judged
	MinSamples = 3
	// LowAccuracy flags rules corrected more often than confirmed
	LowAccuracy = 0.5
	// DecayedWeight flags rules training has pushed close to zero
	DecayedWeight = 0.05
	// maxExamples bounds the corrected values kept per coverage gap
	maxExamples = 3
)

// Analyzer reports rule effectiveness. It never mutates the bank or the store.
type Analyzer struct {
	bank  *patterns.Bank
	store training.Store
	now   func() time.Time
}

// New creates an analyzer
func New(bank *patterns.Bank, store training.Store) *Analyzer {
	return &Analyzer{
		bank:  bank,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Report builds the effectiveness report from the current bank and all training records
func (a *Analyzer) Report(ctx context.Context) (model.EffectivenessReport, error) {
	records, err := a.store.List(ctx)
	if err != nil {
		return model.EffectivenessReport{}, fmt.Errorf("failed to list training records: %w", err)
	}

	snap := a.bank.Snapshot()
	report := model.EffectivenessReport{
		GeneratedAt:     a.now(),
		BankFingerprint: snap.Fingerprint,
		TrainingRecords: len(records),
		Rules:           RuleStats(snap.Rules()),
		CoverageGaps:    CoverageGaps(records),
	}

	report.Signals = append(report.Signals, ruleSignals(report.Rules)...)
	for _, g := range report.CoverageGaps {
		report.Signals = append(report.Signals, gapSignal(g))
	}
	if len(records) == 0 {
		report.Signals = append(report.Signals, model.Signal{
			Type:        model.SignalUntrainedBank,
			Severity:    model.SeverityInfo,
			Description: "No training records yet; rule weights are the built-in defaults",
			Data:        map[string]any{"records": 0, "rules": len(report.Rules)},
		})
	}
	return report, nil
}

// RuleStats converts rules to stats sorted by rule ID
func RuleStats(rules []model.PatternRule) []model.RuleStats {
	out := make([]model.RuleStats, 0, len(rules))
	for _, r := range rules {
		out = append(out, model.RuleStats{
			RuleID:          r.ID,
			Section:         r.Section,
			Field:           r.Field,
			Strategy:        r.Strategy.Kind,
			SuccessCount:    r.SuccessCount,
			FailureCount:    r.FailureCount,
			Weight:          r.Weight,
			DerivedAccuracy: DerivedAccuracy(r.SuccessCount, r.FailureCount),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// DerivedAccuracy is success / (success + failure), or 0 for an untrained rule
func DerivedAccuracy(success, failure int) float64 {
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(success) / float64(total)
}

// CoverageGaps groups the unattributable corrections of all records by field path.
// Most frequent gaps come first.
func CoverageGaps(records []model.TrainingRecord) []model.CoverageGapNotice {
	byPath := make(map[string]*model.CoverageGapNotice)
	types := make(map[string]map[model.DocumentType]bool)

	// newest first so examples and LastSeen come from recent corrections
	ordered := append([]model.TrainingRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp.After(ordered[j].Timestamp) })

	for i := range ordered {
		rec := &ordered[i]
		for _, path := range rec.CoverageGaps() {
			g, ok := byPath[path]
			if !ok {
				g = &model.CoverageGapNotice{FieldPath: path, LastSeen: rec.Timestamp}
				byPath[path] = g
				types[path] = make(map[model.DocumentType]bool)
			}
			g.Occurrences++
			if !types[path][rec.DocumentType] {
				types[path][rec.DocumentType] = true
				g.DocumentTypes = append(g.DocumentTypes, rec.DocumentType)
			}
			if len(g.Examples) < maxExamples {
				g.Examples = append(g.Examples, rec.Diff[path].NewValue)
			}
		}
	}

	out := make([]model.CoverageGapNotice, 0, len(byPath))
	for _, g := range byPath {
		sort.Slice(g.DocumentTypes, func(i, j int) bool { return g.DocumentTypes[i] < g.DocumentTypes[j] })
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].FieldPath < out[j].FieldPath
	})
	return out
}

func ruleSignals(stats []model.RuleStats) []model.Signal {
	var out []model.Signal
	for _, s := range stats {
		samples := s.SuccessCount + s.FailureCount
		if samples >= MinSamples && s.DerivedAccuracy < LowAccuracy {
			severity := model.SeverityWarning
			if s.SuccessCount == 0 {
				severity = model.SeverityCritical
			}
			out = append(out, model.Signal{
				Type:        model.SignalLowAccuracyRule,
				Severity:    severity,
				Description: fmt.Sprintf("Rule %s is correct in %.0f%% of %d corrections", s.RuleID, s.DerivedAccuracy*100, samples),
				Data: map[string]any{
					"rule_id":   s.RuleID,
					"success":   s.SuccessCount,
					"failure":   s.FailureCount,
					"accuracy":  s.DerivedAccuracy,
					"threshold": LowAccuracy,
					"formula":   "accuracy = success / (success + failure)",
				},
			})
		}
		if s.FailureCount > 0 && s.Weight < DecayedWeight {
			out = append(out, model.Signal{
				Type:        model.SignalDecayedRule,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("Rule %s has decayed to weight %.2f and rarely wins", s.RuleID, s.Weight),
				Data: map[string]any{
					"rule_id":   s.RuleID,
					"weight":    s.Weight,
					"failure":   s.FailureCount,
					"threshold": DecayedWeight,
				},
			})
		}
	}
	return out
}

func gapSignal(g model.CoverageGapNotice) model.Signal {
	types := make([]string, len(g.DocumentTypes))
	for i, t := range g.DocumentTypes {
		types[i] = string(t)
	}
	return model.Signal{
		Type:        model.SignalCoverageGap,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%s was corrected %d time(s) to values no rule produces", g.FieldPath, g.Occurrences),
		Data: map[string]any{
			"field_path":     g.FieldPath,
			"occurrences":    g.Occurrences,
			"document_types": types,
			"last_seen":      g.LastSeen,
		},
	}
}
