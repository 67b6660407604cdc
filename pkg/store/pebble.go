// Package store persists threads in Pebble, one JSON record per thread.
// The store is the single source of truth for thread state; only the
// server mutates it.
package store

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string
)

const threadPrefix = "thread:"

func threadKey(id string) []byte {
	return []byte(threadPrefix + id)
}

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return errors.New("pebble not opened; call store.Open first")
}

// SaveThread writes the full thread record.
func SaveThread(t models.Thread) error {
	if db == nil {
		return notOpened()
	}
	t.UpdatedTS = time.Now().UTC().UnixNano()
	b, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "marshal thread")
	}
	if err := db.Set(threadKey(t.ID), b, pebble.Sync); err != nil {
		opFailures.WithLabelValues("save").Inc()
		return err
	}
	ops.WithLabelValues("save").Inc()
	return nil
}

// GetThread loads a thread scoped to its owner. A missing record, a
// soft-deleted record and an owner mismatch are all models.ErrNotFound.
func GetThread(owner, id string) (models.Thread, error) {
	if db == nil {
		return models.Thread{}, notOpened()
	}
	v, closer, err := db.Get(threadKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Thread{}, models.ErrNotFound
		}
		opFailures.WithLabelValues("get").Inc()
		return models.Thread{}, err
	}
	defer func() { _ = closer.Close() }()
	var t models.Thread
	if err := json.Unmarshal(v, &t); err != nil {
		return models.Thread{}, errors.Wrap(err, "corrupt thread record")
	}
	if t.Deleted || t.Owner != owner {
		return models.Thread{}, models.ErrNotFound
	}
	ops.WithLabelValues("get").Inc()
	return t, nil
}

// ListThreads returns all live threads for an owner, newest first.
func ListThreads(owner string) ([]models.Thread, error) {
	if db == nil {
		return nil, notOpened()
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(threadPrefix),
		UpperBound: []byte(threadPrefix + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	var out []models.Thread
	for iter.First(); iter.Valid(); iter.Next() {
		var t models.Thread
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			logger.Warn("skipping_corrupt_thread", "key", string(iter.Key()))
			continue
		}
		if t.Deleted || t.Owner != owner {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedTS > out[j].UpdatedTS })
	ops.WithLabelValues("list").Inc()
	return out, nil
}

// mutate loads, transforms and rewrites a thread under owner scoping.
// Pebble serializes writes; the server additionally guarantees one
// in-flight turn per thread, so read-modify-write is sufficient here.
func mutate(owner, id string, fn func(*models.Thread) error) (models.Thread, error) {
	t, err := GetThread(owner, id)
	if err != nil {
		return models.Thread{}, err
	}
	if err := fn(&t); err != nil {
		return models.Thread{}, err
	}
	if err := SaveThread(t); err != nil {
		return models.Thread{}, err
	}
	return t, nil
}

// SetMessages overwrites the stored message list. This is the single
// durable write performed at the end of a completed turn.
func SetMessages(owner, id string, msgs []models.Message) (models.Thread, error) {
	return mutate(owner, id, func(t *models.Thread) error {
		t.Messages = msgs
		return nil
	})
}

// SetTitle renames a thread unconditionally (user rename, last write wins).
func SetTitle(owner, id, title string) (models.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Thread{}, models.Validation("title", "must not be empty")
	}
	return mutate(owner, id, func(t *models.Thread) error {
		t.Title = title
		return nil
	})
}

// SetTitleIfSentinel installs a synthesized title only while the stored
// title is still the sentinel. Reports whether the write happened, so a
// late synthesis never clobbers a user rename.
func SetTitleIfSentinel(owner, id, title string) (bool, error) {
	wrote := false
	_, err := mutate(owner, id, func(t *models.Thread) error {
		if t.Title != models.SentinelTitle {
			return nil
		}
		t.Title = title
		wrote = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if wrote {
		ops.WithLabelValues("title").Inc()
	}
	return wrote, nil
}

// MarkDeleted soft-deletes a thread. The retention runner purges the
// record later.
func MarkDeleted(owner, id string) error {
	_, err := mutate(owner, id, func(t *models.Thread) error {
		t.Deleted = true
		t.DeletedTS = time.Now().UTC().UnixNano()
		return nil
	})
	return err
}

// PurgeDeleted permanently removes threads soft-deleted before cutoff.
// Returns how many records were (or, in dry-run, would be) removed.
func PurgeDeleted(cutoff time.Time, batchSize int, dryRun bool) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(threadPrefix),
		UpperBound: []byte(threadPrefix + "\xff"),
	})
	if err != nil {
		return 0, err
	}
	defer func() { _ = iter.Close() }()

	cut := cutoff.UTC().UnixNano()
	purged := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if batchSize > 0 && purged >= batchSize {
			break
		}
		var t models.Thread
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		if !t.Deleted || t.DeletedTS == 0 || t.DeletedTS > cut {
			continue
		}
		if !dryRun {
			key := append([]byte(nil), iter.Key()...)
			if err := db.Delete(key, pebble.Sync); err != nil {
				opFailures.WithLabelValues("purge").Inc()
				return purged, err
			}
		}
		purged++
	}
	if purged > 0 {
		ops.WithLabelValues("purge").Add(float64(purged))
	}
	return purged, nil
}
