package worker

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles document processing per source directory, so one large intake
// folder cannot starve the others in a mixed batch
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter. A rate <= 0 disables throttling.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	r := rate.Limit(perSecond)
	if perSecond <= 0 {
		r = rate.Inf
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a document from path may be processed
func (l *Limiter) Wait(ctx context.Context, path string) error {
	return l.get(SourceKey(path)).Wait(ctx)
}

// Allow reports whether a document from path may be processed now
func (l *Limiter) Allow(path string) bool {
	return l.get(SourceKey(path)).Allow()
}

// SetSourceRate overrides the rate for one source directory
func (l *Limiter) SetSourceRate(dir string, perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.limiters[filepath.Clean(dir)] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// SourceKey is the directory a document is throttled under. Stdin has its own key.
func SourceKey(path string) string {
	if path == "-" {
		return "-"
	}
	return filepath.Dir(filepath.Clean(path))
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter
	return limiter
}
