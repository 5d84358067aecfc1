// Package storage keeps the reaper's local evaluation journal and the
// optional DynamoDB watermark backend. The journal is advisory: decision
// logic never reads it, only the status command does.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"
)

// Bucket names in bbolt
var (
	bucketEvaluations = []byte("evaluations")
	bucketMeta        = []byte("meta")
)

var keyCurrentRevision = []byte("current_revision")

// EvaluationRecord is one journaled verdict for one instance
type EvaluationRecord struct {
	ResourceID string    `json:"resource_id"`
	Idle       bool      `json:"idle"`
	IdleSince  time.Time `json:"idle_since,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	Revision   int64     `json:"revision"`
}

// Journal appends evaluation records to bbolt and keeps an in-memory
// index of the latest record per resource
type Journal struct {
	mu sync.RWMutex

	// In-memory index for fast latest-state lookups
	index *btree.BTreeG[*EvaluationRecord]

	// On-disk storage
	db *bbolt.DB

	// Current revision number
	currentRev int64
}

// OpenJournal opens or creates the journal file at path
func OpenJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketEvaluations, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	journal := &Journal{
		index: btree.NewG[*EvaluationRecord](32, func(a, b *EvaluationRecord) bool {
			return a.ResourceID < b.ResourceID
		}),
		db: db,
	}

	journal.loadRevision()

	if err := journal.rebuildIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuild journal index: %w", err)
	}

	return journal, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordEvaluation appends one record and returns its revision
func (j *Journal) RecordEvaluation(rec EvaluationRecord) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.currentRev++
	rec.Revision = j.currentRev

	err := j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvaluations)
		key := makeEvaluationKey(rec.Revision, rec.ResourceID)
		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		if err := bucket.Put(key, value); err != nil {
			return err
		}

		metaBucket := tx.Bucket(bucketMeta)
		return metaBucket.Put(keyCurrentRevision, int64ToBytes(rec.Revision))
	})

	if err != nil {
		j.currentRev--
		return 0, err
	}

	j.indexLatest(&rec)

	return rec.Revision, nil
}

// Latest returns the most recent record for a resource
func (j *Journal) Latest(resourceID string) (*EvaluationRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	probe := &EvaluationRecord{ResourceID: resourceID}
	existing, found := j.index.Get(probe)
	if !found {
		return nil, fmt.Errorf("no evaluations recorded for %s", resourceID)
	}

	return existing, nil
}

// All returns the latest record for every resource, ordered by resource ID
func (j *Journal) All() []*EvaluationRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var results []*EvaluationRecord
	j.index.Ascend(func(rec *EvaluationRecord) bool {
		results = append(results, rec)
		return true
	})

	return results
}

// CurrentRevision returns the current revision number
func (j *Journal) CurrentRevision() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.currentRev
}

// Compact removes old revisions, keeping only recent ones
func (j *Journal) Compact(keepRevisions int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.currentRev - keepRevisions
	if cutoff <= 0 {
		return nil
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvaluations)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			rev, _ := parseEvaluationKey(k)
			if rev < cutoff {
				toDelete = append(toDelete, k)
			}
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})
}

// Helper functions

// indexLatest keeps only the highest-revision record per resource
func (j *Journal) indexLatest(rec *EvaluationRecord) {
	existing, found := j.index.Get(rec)
	if found && existing.Revision > rec.Revision {
		return
	}
	j.index.ReplaceOrInsert(rec)
}

func (j *Journal) loadRevision() {
	_ = j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(keyCurrentRevision)
		if data != nil {
			j.currentRev = bytesToInt64(data)
		}
		return nil
	})
}

// rebuildIndex restores the latest-state index from disk so a fresh
// process (the status command) sees what the sweeper wrote
func (j *Journal) rebuildIndex() error {
	return j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEvaluations)
		return bucket.ForEach(func(k, v []byte) error {
			var rec EvaluationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// Skip unreadable entries rather than refuse to open
				return nil
			}
			j.indexLatest(&rec)
			return nil
		})
	})
}

func makeEvaluationKey(rev int64, resourceID string) []byte {
	return []byte(fmt.Sprintf("%016d:%s", rev, resourceID))
}

func parseEvaluationKey(key []byte) (int64, string) {
	revPart, id, found := strings.Cut(string(key), ":")
	if !found {
		return 0, ""
	}
	rev, _ := strconv.ParseInt(revPart, 10, 64)
	return rev, id
}

func int64ToBytes(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func bytesToInt64(b []byte) int64 {
	n, _ := strconv.ParseInt(string(b), 10, 64)
	return n
}
