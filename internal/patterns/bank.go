package patterns

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/intake/internal/model"
)

// DefaultMaxAffinity bounds learned document-type affinities when the caller passes no limit
const DefaultMaxAffinity = 2.0

// RankedRule is a rule copy paired with its compiled matchers and its position in a field ranking
type RankedRule struct {
	Rule  model.PatternRule
	Rank  int     // 0 = most trusted for the requested document type
	Score float64 // weight × affinity
	c     *compiled
}

type entry struct {
	rule model.PatternRule
	c    *compiled
}

// Bank is the process-wide rule set. Reads go through Snapshot; Apply is the only
// path that changes weights or statistics.
type Bank struct {
	mu          sync.RWMutex
	rules       map[string]*entry
	ids         []string // sorted
	version     int64
	fingerprint string
}

// NewBank validates and compiles rules. Duplicate IDs are rejected.
func NewBank(rules []model.PatternRule) (*Bank, error) {
	b := &Bank{rules: make(map[string]*entry, len(rules))}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := b.rules[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %s", r.ID)
		}
		c, err := compile(r)
		if err != nil {
			return nil, err
		}
		b.rules[r.ID] = &entry{rule: r.Clone(), c: c}
		b.ids = append(b.ids, r.ID)
	}
	sort.Strings(b.ids)
	b.fingerprint = b.computeFingerprint()
	return b, nil
}

// Len returns the number of rules
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ids)
}

// Version increments on every successful Apply or Restore
func (b *Bank) Version() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Fingerprint is a sha256 over the full rule state. Equal banks have equal fingerprints.
func (b *Bank) Fingerprint() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fingerprint
}

// Rule returns a copy of one rule
func (b *Bank) Rule(id string) (model.PatternRule, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.rules[id]
	if !ok {
		return model.PatternRule{}, false
	}
	return e.rule.Clone(), true
}

// Export returns deep copies of all rules sorted by ID
func (b *Bank) Export() []model.PatternRule {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.PatternRule, 0, len(b.ids))
	for _, id := range b.ids {
		out = append(out, b.rules[id].rule.Clone())
	}
	return out
}

// Snapshot returns a consistent copy of the bank. Later training does not affect it.
func (b *Bank) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := &Snapshot{
		Version:     b.version,
		Fingerprint: b.fingerprint,
		entries:     make([]entry, 0, len(b.ids)),
		byField:     make(map[string][]int),
	}
	for _, id := range b.ids {
		e := b.rules[id]
		s.byField[e.rule.Path()] = append(s.byField[e.rule.Path()], len(s.entries))
		s.entries = append(s.entries, entry{rule: e.rule.Clone(), c: e.c})
	}
	return s
}

// Adjustment is one training-driven change to a rule
type Adjustment struct {
	RuleID        string
	Successes     int
	Failures      int
	WeightDelta   float64
	DocumentType  model.DocumentType // affinity target; UNKNOWN or empty leaves affinity alone
	AffinityDelta float64
}

// Apply performs a batch of adjustments atomically. Unknown rule IDs fail the whole batch.
// Weights are clamped to [0,1] and affinities to [0, maxAffinity].
func (b *Bank) Apply(adjs []Adjustment, maxAffinity float64) error {
	if len(adjs) == 0 {
		return nil
	}
	if maxAffinity <= 0 {
		maxAffinity = DefaultMaxAffinity
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range adjs {
		if _, ok := b.rules[a.RuleID]; !ok {
			return fmt.Errorf("apply: unknown rule %s", a.RuleID)
		}
	}

	for _, a := range adjs {
		e := b.rules[a.RuleID]
		r := e.rule.Clone()
		r.SuccessCount += a.Successes
		r.FailureCount += a.Failures
		r.Weight = clamp01(r.Weight + a.WeightDelta)
		if a.AffinityDelta != 0 && a.DocumentType.IsValid() && a.DocumentType != model.DocTypeUnknown {
			next := r.AffinityFor(a.DocumentType) + a.AffinityDelta
			if next < 0 {
				next = 0
			}
			if next > maxAffinity {
				next = maxAffinity
			}
			if r.Affinity == nil {
				r.Affinity = make(map[model.DocumentType]float64)
			}
			r.Affinity[a.DocumentType] = next
		}
		b.rules[a.RuleID] = &entry{rule: r, c: e.c}
	}

	b.version++
	b.fingerprint = b.computeFingerprint()
	return nil
}

// Restore loads persisted weights, affinities and counters onto known rules.
// Rules the bank does not define are skipped. Returns the number of rules updated.
func (b *Bank) Restore(rules []model.PatternRule) (int, error) {
	for _, r := range rules {
		if r.Weight < 0 || r.Weight > 1 {
			return 0, fmt.Errorf("restore: rule %s weight %.3f outside [0,1]", r.ID, r.Weight)
		}
		for t, a := range r.Affinity {
			if !t.IsValid() || a < 0 {
				return 0, fmt.Errorf("restore: rule %s has invalid affinity %s=%.3f", r.ID, t, a)
			}
		}
		if r.SuccessCount < 0 || r.FailureCount < 0 {
			return 0, fmt.Errorf("restore: rule %s has negative counts", r.ID)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	applied := 0
	for _, in := range rules {
		e, ok := b.rules[in.ID]
		if !ok {
			continue
		}
		r := e.rule.Clone()
		src := in.Clone()
		r.Weight = src.Weight
		r.Affinity = src.Affinity
		r.SuccessCount = src.SuccessCount
		r.FailureCount = src.FailureCount
		b.rules[in.ID] = &entry{rule: r, c: e.c}
		applied++
	}
	if applied > 0 {
		b.version++
		b.fingerprint = b.computeFingerprint()
	}
	return applied, nil
}

// computeFingerprint must be called with the lock held
func (b *Bank) computeFingerprint() string {
	rules := make([]model.PatternRule, 0, len(b.ids))
	for _, id := range b.ids {
		rules = append(rules, b.rules[id].rule)
	}
	data, err := json.Marshal(rules)
	if err != nil {
		// PatternRule holds only plain values; marshal cannot fail
		panic(fmt.Sprintf("fingerprint: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Snapshot is an immutable view of the bank at one version
type Snapshot struct {
	Version     int64
	Fingerprint string
	entries     []entry
	byField     map[string][]int
}

// Rules returns copies of all rules sorted by ID
func (s *Snapshot) Rules() []model.PatternRule {
	out := make([]model.PatternRule, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.rule.Clone())
	}
	return out
}

// Len returns the number of rules in the snapshot
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// ForField returns the rules for one field ranked by weight × affinity descending, ID ascending
// on ties. Rules whose effective weight is zero are left out.
func (s *Snapshot) ForField(section model.Section, field string, docType model.DocumentType) []RankedRule {
	idx := s.byField[model.FieldPath(section, field)]
	out := make([]RankedRule, 0, len(idx))
	for _, i := range idx {
		e := s.entries[i]
		score := e.rule.EffectiveWeight(docType)
		if score <= 0 {
			continue
		}
		out = append(out, RankedRule{Rule: e.rule, Score: score, c: e.c})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Rule.ID < out[j].Rule.ID
	})
	for i := range out {
		out[i].Rank = i
	}
	return out
}

// AllForField returns every rule for a field in ID order, including rules whose weight or
// affinity has decayed to zero. Training uses it to find rules that could have produced a value.
func (s *Snapshot) AllForField(section model.Section, field string) []RankedRule {
	idx := s.byField[model.FieldPath(section, field)]
	out := make([]RankedRule, 0, len(idx))
	for n, i := range idx {
		e := s.entries[i]
		out = append(out, RankedRule{Rule: e.rule, Rank: n, Score: e.rule.Weight, c: e.c})
	}
	return out
}
