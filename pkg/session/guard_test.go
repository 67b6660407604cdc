package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoalescerWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	g := &coalescer{now: func() time.Time { return now }}

	assert.True(t, g.tryAcquire("th_1"))
	assert.False(t, g.tryAcquire("th_1"))

	now = now.Add(bootstrapWindow / 2)
	assert.False(t, g.tryAcquire("th_1"))

	// a different thread is independent
	assert.True(t, g.tryAcquire("th_2"))

	now = now.Add(bootstrapWindow)
	assert.True(t, g.tryAcquire("th_1"))
}

func TestCoalescerConcurrentBurst(t *testing.T) {
	g := &coalescer{now: time.Now}

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.tryAcquire("th_1") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())
}

func TestCoalescerDropsStaleEntries(t *testing.T) {
	now := time.Unix(1000, 0)
	g := &coalescer{now: func() time.Time { return now }}

	g.tryAcquire("th_old")
	now = now.Add(20 * bootstrapWindow)
	g.tryAcquire("th_new")
	assert.NotContains(t, g.last, "th_old")
	assert.Contains(t, g.last, "th_new")
}
