// Package dedup drops QoS 1 redeliveries by remembering recently seen
// message keys for a short window.
package dedup

import (
	"sync"
	"time"
)

// Window remembers keys for a TTL, capped in size.
type Window struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func NewWindow(ttl time.Duration, max int) *Window {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if max <= 0 {
		max = 1024
	}
	return &Window{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// Seen records the key and reports whether it was already present and
// unexpired. An empty key is never deduplicated.
func (w *Window) Seen(key string) bool {
	if key == "" {
		return false
	}
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	if exp, ok := w.seen[key]; ok && now.Before(exp) {
		return true
	}
	w.seen[key] = now.Add(w.ttl)

	if len(w.seen) > w.max {
		for k, exp := range w.seen {
			if now.After(exp) {
				delete(w.seen, k)
			}
			if len(w.seen) <= w.max {
				break
			}
		}
	}
	return false
}
