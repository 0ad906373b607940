package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/analyze"
	"github.com/ppiankov/intake/internal/cache"
	"github.com/ppiankov/intake/internal/classify"
	"github.com/ppiankov/intake/internal/enhance"
	"github.com/ppiankov/intake/internal/extract"
	"github.com/ppiankov/intake/internal/metrics"
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/normalize"
	"github.com/ppiankov/intake/internal/patterns"
	"github.com/ppiankov/intake/internal/score"
	"github.com/ppiankov/intake/internal/segment"
	"github.com/ppiankov/intake/internal/training"
)

// BankStore persists pattern bank snapshots between runs
type BankStore interface {
	SaveBank(ctx context.Context, rules []model.PatternRule, fingerprint string) error
	LoadBank(ctx context.Context) ([]model.PatternRule, string, error)
}

// Options are the optional collaborators of a Pipeline
type Options struct {
	Bank      *patterns.Bank // nil loads cfg.Rules.File
	Store     training.Store // nil keeps training records in memory
	BankStore BankStore      // nil disables bank snapshots
	Cache     cache.Cache    // result cache; nil disables it
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Pipeline runs the extraction stages and owns the training loop.
// It is safe for concurrent use.
type Pipeline struct {
	cfg        *model.Config
	bank       *patterns.Bank
	classifier *classify.Classifier
	segmenter  *segment.Segmenter
	extractor  *extract.Extractor
	aggregator *score.Aggregator
	trainer    *training.Trainer
	analyzer   *analyze.Analyzer
	store      training.Store
	bankStore  BankStore
	results    cache.Cache
	provenance *cache.Provenance
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// Run is one processed document
type Run struct {
	Result          model.ExtractionResult `json:"result"`
	DocumentType    model.DocumentType     `json:"document_type"`
	ClassConfidence float64                `json:"class_confidence"`
	Hinted          bool                   `json:"hinted"`
	Signals         []model.Signal         `json:"signals,omitempty"`
	BankFingerprint string                 `json:"bank_fingerprint"`
	BankVersion     int64                  `json:"bank_version"`
	Truncated       bool                   `json:"truncated,omitempty"`
	Cached          bool                   `json:"cached,omitempty"`
	ProcessedAt     time.Time              `json:"processed_at"`
}

// Filled returns the number of fields that received a value
func (r *Run) Filled() int {
	n := 0
	for _, fields := range r.Result {
		for _, v := range fields {
			if !v.IsEmpty() {
				n++
			}
		}
	}
	return n
}

// New creates a pipeline. When a BankStore is given, its snapshot is restored onto the bank.
func New(ctx context.Context, cfg *model.Config, o Options) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Store == nil {
		o.Store = training.NewMemoryStore()
	}

	bank := o.Bank
	if bank == nil {
		b, err := patterns.Load(cfg.Rules.File)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		bank = b
	}

	if o.BankStore != nil {
		rules, fp, err := o.BankStore.LoadBank(ctx)
		if err != nil {
			return nil, fmt.Errorf("load bank snapshot: %w", err)
		}
		if len(rules) > 0 {
			n, err := bank.Restore(rules)
			if err != nil {
				return nil, fmt.Errorf("restore bank snapshot: %w", err)
			}
			o.Logger.Info("restored bank snapshot",
				zap.Int("rules", n),
				zap.Int("stored", len(rules)),
				zap.Bool("fingerprint_match", fp == bank.Fingerprint()))
		}
	}

	eval := patterns.Evaluator{KeywordWindow: cfg.Extraction.KeywordWindow}
	extractor := extract.New(extract.NewRegistry(), eval, cfg.Extraction.FieldFloor)
	segmenter := segment.New()
	provenance := cache.NewProvenance(cfg.Cache.ProvenanceTTL)

	p := &Pipeline{
		cfg:        cfg,
		bank:       bank,
		classifier: classify.New(cfg.Extraction.ClassifierThreshold),
		segmenter:  segmenter,
		extractor:  extractor,
		aggregator: score.NewAggregator(),
		store:      o.Store,
		bankStore:  o.BankStore,
		results:    o.Cache,
		provenance: provenance,
		metrics:    o.Metrics,
		logger:     o.Logger,
	}
	p.trainer = training.NewTrainer(training.Deps{
		Bank:      bank,
		Extractor: extractor,
		Segmenter: segmenter,
		Store:     o.Store,
		Sources:   provenance,
		Logger:    o.Logger.Named("training"),
	}, cfg.Training)
	p.analyzer = analyze.New(bank, o.Store)
	p.metrics.SetBankVersion(bank.Version())
	return p, nil
}

// Bank returns the pattern bank
func (p *Pipeline) Bank() *patterns.Bank {
	return p.bank
}

// Store returns the training record store
func (p *Pipeline) Store() training.Store {
	return p.store
}

// ProcessDocument extracts a structured result from raw document text.
// It never fails: fields nothing matched carry a nil value and zero confidence.
func (p *Pipeline) ProcessDocument(text string, hint model.DocumentType) model.ExtractionResult {
	return p.Process(text, hint).Result
}

// Process runs the full extraction and returns the result with its diagnostics
func (p *Pipeline) Process(raw string, hint model.DocumentType) *Run {
	start := time.Now()

	text, truncated := p.Normalize(raw)

	snap := p.bank.Snapshot()
	key := cache.ResultKey(text, hint, snap.Fingerprint)
	if run, ok := p.lookup(key); ok {
		p.remember(run.Result, text)
		p.metrics.RecordExtraction(run.DocumentType, true, 0, run.Result, run.Signals)
		return run
	}

	res := p.classifier.Resolve(text, hint)
	if res.Degraded {
		p.logger.Warn("document type hint is not a known type, classifying as UNKNOWN", zap.String("hint", string(hint)))
	}

	spans := p.segmenter.SegmentAll(text)
	candidates := p.extractor.ExtractAll(text, spans, snap, res.Type)
	result, conflicts := p.aggregator.AggregateAll(candidates)
	result = enhance.Enhance(result)

	run := &Run{
		Result:          result,
		DocumentType:    res.Type,
		ClassConfidence: res.Confidence,
		Hinted:          res.Hinted,
		Signals:         append(append([]model.Signal(nil), res.Signals...), conflicts...),
		BankFingerprint: snap.Fingerprint,
		BankVersion:     snap.Version,
		Truncated:       truncated,
		ProcessedAt:     time.Now().UTC(),
	}

	p.remember(result, text)
	p.save(key, run)

	elapsed := time.Since(start)
	p.metrics.RecordExtraction(run.DocumentType, false, elapsed.Seconds(), result, run.Signals)
	p.logger.Debug("document processed",
		zap.String("document_type", string(run.DocumentType)),
		zap.Float64("class_confidence", run.ClassConfidence),
		zap.Int("fields", run.Filled()),
		zap.Int("signals", len(run.Signals)),
		zap.Duration("elapsed", elapsed))
	return run
}

// Normalize prepares raw input the way Process does before extraction. Source text
// handed to training must go through it so rule probes see the same characters.
func (p *Pipeline) Normalize(raw string) (text string, truncated bool) {
	text = normalize.Text(raw)
	if limit := p.cfg.Extraction.MaxInputBytes; limit > 0 && len(text) > limit {
		return normalize.Truncate(text, limit), true
	}
	return text, false
}

// remember keeps the source text for later training. Results with no values all look
// alike, so they are not remembered.
func (p *Pipeline) remember(result model.ExtractionResult, text string) {
	for _, fields := range result {
		for _, v := range fields {
			if !v.IsEmpty() {
				p.provenance.Remember(result, text)
				return
			}
		}
	}
}

func (p *Pipeline) lookup(key string) (*Run, bool) {
	if p.results == nil {
		return nil, false
	}
	data, ok := p.results.Get(key)
	p.metrics.RecordCache(ok)
	if !ok {
		return nil, false
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		p.logger.Warn("dropping unreadable cache entry", zap.Error(err))
		_ = p.results.Delete(key)
		return nil, false
	}
	run.Result = canonicalResult(run.Result)
	run.Cached = true
	return &run, true
}

func (p *Pipeline) save(key string, run *Run) {
	if p.results == nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		p.logger.Warn("failed to encode run for cache", zap.Error(err))
		return
	}
	if err := p.results.Set(key, data, 0); err != nil {
		p.logger.Warn("failed to cache run", zap.Error(err))
	}
}

// canonicalResult turns JSON-decoded list values back into []string
func canonicalResult(r model.ExtractionResult) model.ExtractionResult {
	for _, fields := range r {
		for id, v := range fields {
			v.Value = model.CanonicalValue(v.Value)
			fields[id] = v
		}
	}
	return r
}

// TrainWithCorrection records a reviewer's correction and adjusts the rules involved.
// Source text is looked up from documents this pipeline processed unless given explicitly.
func (p *Pipeline) TrainWithCorrection(ctx context.Context, original model.ExtractionResult, corrected model.Correction, docType model.DocumentType, opts ...training.Option) (model.TrainingRecord, error) {
	rec, err := p.trainer.TrainWithCorrection(ctx, original, corrected, docType, opts...)
	if err != nil {
		outcome := "error"
		if model.IsValidationError(err) {
			outcome = "invalid"
		}
		p.metrics.RecordCorrection(docType, outcome, nil)
		return rec, err
	}
	p.metrics.RecordCorrection(docType, "stored", &rec)
	p.metrics.SetBankVersion(p.bank.Version())

	if p.bankStore != nil && len(rec.Diff) > 0 {
		// the record is already durable; a failed snapshot is rewritten in full on the next save
		if err := p.bankStore.SaveBank(ctx, p.bank.Export(), p.bank.Fingerprint()); err != nil {
			p.logger.Error("failed to save bank snapshot", zap.String("record", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}

// Report builds the rule effectiveness report
func (p *Pipeline) Report(ctx context.Context) (model.EffectivenessReport, error) {
	return p.analyzer.Report(ctx)
}

// Rules returns the current rules sorted by ID
func (p *Pipeline) Rules() []model.PatternRule {
	return p.bank.Export()
}
