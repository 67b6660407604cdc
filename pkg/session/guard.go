package session

import (
	"sync"
	"time"
)

// bootstrapWindow is how long repeated bootstrap triggers for the same
// thread collapse into a single invocation. Views re-mounting in quick
// succession (double-invocation in dev tooling, rapid re-render) land
// well inside this window.
const bootstrapWindow = 100 * time.Millisecond

// coalescer is a request-coalescing guard keyed by thread id. It is the
// debounce reframed as an in-memory lock: the first trigger in a window
// wins, the rest are dropped.
type coalescer struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

var continuationGuard = &coalescer{now: time.Now}

// tryAcquire reports whether the caller owns the continuation for this
// thread id within the current window.
func (g *coalescer) tryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		g.last = make(map[string]time.Time)
	}
	now := g.now()
	if t, ok := g.last[id]; ok && now.Sub(t) < bootstrapWindow {
		return false
	}
	g.last[id] = now

	// drop stale entries so long-lived processes don't accumulate ids
	for k, t := range g.last {
		if now.Sub(t) > 10*bootstrapWindow {
			delete(g.last, k)
		}
	}
	return true
}
