package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westbrookdaniel/chat/pkg/config"
	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/store"
)

func TestRunDisabledBlocksUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, config.RetentionConfig{}) }()

	select {
	case err := <-done:
		t.Fatalf("returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	require.NoError(t, <-done)
}

func TestRunRejectsBadCron(t *testing.T) {
	err := Run(context.Background(), config.RetentionConfig{Enabled: true, Cron: "not a cron"})
	assert.ErrorContains(t, err, "invalid retention cron")
}

func TestRunOncePurgesExpiredTombstones(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	th := models.Thread{ID: "th_1", Owner: "alice", Title: "bye", Messages: []models.Message{}}
	require.NoError(t, store.SaveThread(th))
	require.NoError(t, store.MarkDeleted("alice", "th_1"))

	// tombstone is newer than the default period: survives
	require.NoError(t, RunOnce(config.RetentionConfig{}))
	threads, err := store.PurgeDeleted(time.Now().Add(time.Hour), 0, true)
	require.NoError(t, err)
	assert.Equal(t, 1, threads)

	// a tiny period makes it eligible
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, RunOnce(config.RetentionConfig{Period: config.Duration(time.Millisecond)}))
	threads, err = store.PurgeDeleted(time.Now().Add(time.Hour), 0, true)
	require.NoError(t, err)
	assert.Zero(t, threads)
}
