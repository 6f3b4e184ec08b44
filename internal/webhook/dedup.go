package webhook

import (
	"sync"
	"time"
)

// dedupWindow bounds how long a (platform, provider_message_id) pair is
// remembered before it may be reprocessed. Channel providers occasionally
// redeliver a webhook after a slow 2xx; this keeps that redelivery from
// reaching the engine twice.
const dedupWindow = 5 * time.Minute

// Deduplicator is an in-memory, TTL-bounded set of recently seen inbound
// message ids. It is intentionally process-local: a brief double-process
// across a rolling deploy is an acceptable tradeoff against the cost of a
// shared store for a five-minute window.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewDeduplicator builds an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]time.Time), now: time.Now}
}

// SeenBefore records key if new, returning true if it was already present
// within the dedup window. Expired entries are swept opportunistically on
// every call so the map never grows unbounded under steady traffic.
func (d *Deduplicator) SeenBefore(platform, providerMessageID string) bool {
	key := platform + ":" + providerMessageID
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, t := range d.seen {
		if now.Sub(t) > dedupWindow {
			delete(d.seen, k)
		}
	}

	if t, ok := d.seen[key]; ok && now.Sub(t) <= dedupWindow {
		return true
	}
	d.seen[key] = now
	return false
}
