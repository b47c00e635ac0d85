package streamingest

import (
	"sync"
	"time"
)

// history is the bounded, FIFO-eviction rolling result history attached to
// one ingestor (§3 Rolling Detection History; invariant: size never
// exceeds its declared bound).
type history struct {
	mu      sync.RWMutex
	entries []Result
	cap     int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = 100
	}
	return &history{cap: capacity}
}

// append adds r, evicting the oldest entry if at capacity. Append-only with
// FIFO eviction, per §5's ordering contract.
func (h *history) append(r Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, r)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.cap:]
	}
}

// results returns up to limit entries (0 or negative means "all"), newest
// last, optionally restricted to those at or after since. A nil or
// zero-value since is treated as no lower bound. The returned slice is a
// consistent snapshot taken under the read lock.
func (h *history) results(limit int, since *time.Time) []Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var filtered []Result
	if since != nil && !since.IsZero() {
		for _, r := range h.entries {
			if !r.Timestamp.Before(*since) {
				filtered = append(filtered, r)
			}
		}
	} else {
		filtered = append(filtered, h.entries...)
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	out := make([]Result, len(filtered))
	copy(out, filtered)
	return out
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
