package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/intake/internal/model"
)

// keyPrefix versions cache keys; bump it when the cached payload changes shape
const keyPrefix = "intake:v1:"

// Cache stores opaque payloads with a TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ResultKey identifies one extraction: the same text, hint and bank state always produce
// the same result, so a bank update invalidates every earlier entry.
func ResultKey(text string, hint model.DocumentType, bankFingerprint string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(hint))
	h.Write([]byte{0})
	h.Write([]byte(bankFingerprint))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
