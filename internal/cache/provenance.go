package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/intake/internal/model"
)

// Provenance remembers which normalized text produced an extraction result, so a later
// correction of that result can re-run rules against the original document.
type Provenance struct {
	texts *gocache.Cache
}

// NewProvenance creates a provenance cache. Entries expire after ttl.
func NewProvenance(ttl time.Duration) *Provenance {
	return &Provenance{texts: gocache.New(ttl, ttl/2+time.Minute)}
}

// Remember records the source text of result
func (p *Provenance) Remember(result model.ExtractionResult, text string) {
	p.texts.SetDefault(ResultFingerprint(result), text)
}

// Source returns the text result was extracted from, if still cached
func (p *Provenance) Source(result model.ExtractionResult) (string, bool) {
	v, ok := p.texts.Get(ResultFingerprint(result))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Len returns the number of remembered documents
func (p *Provenance) Len() int {
	return p.texts.ItemCount()
}

type fingerprintField struct {
	Value any      `json:"v"`
	Rules []string `json:"r,omitempty"`
}

// ResultFingerprint hashes the values and supporting rules of a result. Confidence is left
// out so a client that rounds confidences still finds its document. Map keys marshal
// sorted, which keeps the hash stable.
func ResultFingerprint(result model.ExtractionResult) string {
	view := make(map[model.Section]map[string]fingerprintField, len(result))
	for section, fields := range result {
		m := make(map[string]fingerprintField, len(fields))
		for id, v := range fields {
			m[id] = fingerprintField{Value: model.CanonicalValue(v.Value), Rules: v.Rules}
		}
		view[section] = m
	}
	data, _ := json.Marshal(view)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
