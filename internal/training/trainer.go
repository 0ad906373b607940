package training

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/enhance"
	"github.com/ppiankov/intake/internal/extract"
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/patterns"
	"github.com/ppiankov/intake/internal/segment"
	"github.com/ppiankov/intake/internal/validate"
)

// SourceLookup finds the normalized text an extraction result was produced from
type SourceLookup interface {
	Source(result model.ExtractionResult) (string, bool)
}

// Trainer turns reviewer corrections into training records and rule adjustments.
// It is the only writer of the pattern bank.
type Trainer struct {
	mu        sync.Mutex
	bank      *patterns.Bank
	extractor *extract.Extractor
	segmenter *segment.Segmenter
	store     Store
	sources   SourceLookup
	cfg       model.TrainingConfig
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// Deps are the collaborators of a Trainer. Store, Segmenter and Logger have defaults.
type Deps struct {
	Bank      *patterns.Bank
	Extractor *extract.Extractor
	Segmenter *segment.Segmenter
	Store     Store
	Sources   SourceLookup
	Logger    *zap.Logger
}

// NewTrainer creates a trainer
func NewTrainer(d Deps, cfg model.TrainingConfig) *Trainer {
	if d.Store == nil {
		d.Store = NewMemoryStore()
	}
	if d.Segmenter == nil {
		d.Segmenter = segment.New()
	}
	if d.Extractor == nil {
		d.Extractor = extract.New(nil, patterns.Evaluator{}, extract.DefaultFloor)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Trainer{
		bank:      d.Bank,
		extractor: d.Extractor,
		segmenter: d.Segmenter,
		store:     d.Store,
		sources:   d.Sources,
		cfg:       cfg,
		logger:    d.Logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// Store returns the record store
func (t *Trainer) Store() Store {
	return t.store
}

type trainOptions struct {
	source    string
	hasSource bool
}

// Option customises one training call
type Option func(*trainOptions)

// WithSourceText supplies the normalized text the original extraction came from.
// Without it the trainer asks its SourceLookup.
func WithSourceText(text string) Option {
	return func(o *trainOptions) {
		o.source = text
		o.hasSource = true
	}
}

// TrainWithCorrection diffs a corrected record against the original extraction, persists the
// training record and adjusts the rules involved. Invalid input returns a ValidationError and
// changes nothing.
func (t *Trainer) TrainWithCorrection(ctx context.Context, original model.ExtractionResult, corrected model.Correction, docType model.DocumentType, opts ...Option) (model.TrainingRecord, error) {
	if err := validate.Training(original, corrected, docType); err != nil {
		return model.TrainingRecord{}, err
	}
	if t.bank == nil {
		return model.TrainingRecord{}, fmt.Errorf("trainer has no pattern bank")
	}

	var o trainOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasSource && t.sources != nil {
		o.source, o.hasSource = t.sources.Source(original)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	diff := Diff(original, corrected)
	attribution := t.attribute(original, diff, o)

	rec := model.TrainingRecord{
		ID:                 t.newID(),
		Timestamp:          t.now(),
		DocumentType:       docType,
		SchemaVersion:      model.SchemaVersion,
		OriginalExtraction: original.Clone(),
		CorrectedData:      cloneCorrection(corrected),
		Diff:               diff,
		Attribution:        attribution,
	}

	if err := t.store.Append(ctx, rec); err != nil {
		return model.TrainingRecord{}, fmt.Errorf("failed to persist training record: %w", err)
	}

	adjs := t.adjustments(attribution, docType)
	if err := t.bank.Apply(adjs, t.cfg.MaxAffinity); err != nil {
		// rule IDs are checked against the bank before this point
		return rec, fmt.Errorf("failed to apply adjustments: %w", err)
	}

	t.logger.Info("training record stored",
		zap.String("id", rec.ID),
		zap.String("document_type", string(docType)),
		zap.Int("diffs", len(diff)),
		zap.Int("adjustments", len(adjs)),
		zap.Strings("coverage_gaps", rec.CoverageGaps()),
	)
	return rec, nil
}

// Diff returns the fields of corrected whose value differs structurally from the original.
// Fields the reviewer left out are not compared.
func Diff(original model.ExtractionResult, corrected model.Correction) map[string]model.DiffEntry {
	diff := make(map[string]model.DiffEntry)
	for section, fields := range corrected {
		for id, newValue := range fields {
			old, _ := original.Get(section, id)
			if model.ValuesEqual(old.Value, newValue) {
				continue
			}
			diff[model.FieldPath(section, id)] = model.DiffEntry{
				OldValue: model.CanonicalValue(old.Value),
				NewValue: model.CanonicalValue(newValue),
			}
		}
	}
	return diff
}

// attribute finds, per diffed field, the rules that produced the old value and the rules that
// would have produced the new one. Probing re-runs the field's rules over the source text and
// compares enhanced output, so values match the way they appear in results.
func (t *Trainer) attribute(original model.ExtractionResult, diff map[string]model.DiffEntry, o trainOptions) map[string]model.Attribution {
	if len(diff) == 0 {
		return nil
	}

	var snap *patterns.Snapshot
	var spans map[model.Section][]model.Span
	if o.hasSource {
		snap = t.bank.Snapshot()
		spans = t.segmenter.SegmentAll(o.source)
	}

	out := make(map[string]model.Attribution, len(diff))
	for _, spec := range model.Schema() {
		for _, f := range spec.Fields {
			path := model.FieldPath(spec.Name, f.ID)
			d, ok := diff[path]
			if !ok {
				continue
			}

			failed := make(map[string]bool)
			succeeded := make(map[string]bool)
			if d.OldValue != nil {
				old, _ := original.Get(spec.Name, f.ID)
				for _, id := range old.Rules {
					failed[id] = true
				}
			}

			if o.hasSource {
				for _, c := range t.extractor.Probe(o.source, spans[spec.Name], snap, spec.Name, f.ID) {
					v := enhance.Field(f.Kind, c.Value)
					if d.OldValue != nil && model.ValuesEqual(v, d.OldValue) {
						failed[c.RuleID] = true
					}
					if d.NewValue != nil && model.ValuesEqual(v, d.NewValue) {
						succeeded[c.RuleID] = true
					}
				}
			}

			// a rule producing both values is not evidence either way
			for id := range failed {
				if succeeded[id] {
					delete(failed, id)
					delete(succeeded, id)
				}
			}

			out[path] = model.Attribution{
				Failed:     t.knownRules(failed),
				Succeeded:  t.knownRules(succeeded),
				Unverified: !o.hasSource,
			}
		}
	}
	return out
}

// knownRules returns the sorted IDs that exist in the bank. Provenance from clients may name
// rules that were since removed.
func (t *Trainer) knownRules(set map[string]bool) []string {
	var out []string
	for id := range set {
		if _, ok := t.bank.Rule(id); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (t *Trainer) adjustments(attribution map[string]model.Attribution, docType model.DocumentType) []patterns.Adjustment {
	paths := make([]string, 0, len(attribution))
	for p := range attribution {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var adjs []patterns.Adjustment
	for _, p := range paths {
		a := attribution[p]
		for _, id := range a.Failed {
			adjs = append(adjs, patterns.Adjustment{
				RuleID:        id,
				Failures:      1,
				WeightDelta:   -t.cfg.FailureStep,
				DocumentType:  docType,
				AffinityDelta: -t.cfg.AffinityStep,
			})
		}
		for _, id := range a.Succeeded {
			adjs = append(adjs, patterns.Adjustment{
				RuleID:        id,
				Successes:     1,
				WeightDelta:   t.cfg.SuccessStep,
				DocumentType:  docType,
				AffinityDelta: t.cfg.AffinityStep,
			})
		}
	}
	return adjs
}

func cloneCorrection(c model.Correction) model.Correction {
	out := make(model.Correction, len(c))
	for section, fields := range c {
		cp := make(map[string]any, len(fields))
		for id, v := range fields {
			cp[id] = model.CanonicalValue(v)
		}
		out[section] = cp
	}
	return out
}
