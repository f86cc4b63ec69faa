// Package store implements the embedded record store for ingatd.
//
// Records live in a single bbolt database file opened in exclusive-write
// mode. Opening fails fast with domain.ErrLockHeld when another process
// holds the file lock — that error is the trigger for remote mode, never
// silently retried. The store is the final authority on mutual exclusion;
// service discovery only exists to avoid hitting it.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

// lockTimeout bounds how long Open waits for the file lock. A short wait
// keeps the LockHeld failure fast and distinguishable.
const lockTimeout = 500 * time.Millisecond

// Bucket layout. idx_time and idx_project let "recent" and project-filtered
// scans walk creation order without touching unrelated records.
var (
	bucketRecords    = []byte("records")     // uuid bytes -> record JSON
	bucketTimeIdx    = []byte("idx_time")    // unixnano | uuid -> uuid
	bucketProjectIdx = []byte("idx_project") // project | 0x00 | unixnano | uuid -> uuid
)

const projectSep = byte(0x00)

// Store is the durable record store. One handle per owning process; safe
// for concurrent use (bbolt serializes writers internally).
type Store struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path in exclusive-write mode.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %v", domain.ErrStorage, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s is locked by another process; start or use the ingatd service instead of opening the store directly", domain.ErrLockHeld, path)
		}
		return nil, fmt.Errorf("%w: failed to open %s: %v", domain.ErrStorage, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketTimeIdx, bucketProjectIdx} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create buckets: %v", domain.ErrStorage, err)
	}

	logger.Info("record store opened", zap.String("path", path))

	return &Store{db: db, logger: logger}, nil
}

// Put durably persists a record. The transaction commits before Put returns,
// so a successful return guarantees a subsequent Get or search sees it.
func (s *Store) Put(rec domain.ContextRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: failed to encode record: %v", domain.ErrStorage, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		id := rec.ID[:]
		if err := tx.Bucket(bucketRecords).Put(id, payload); err != nil {
			return err
		}
		tk := timeKey(rec.CreatedAt, rec.ID)
		if err := tx.Bucket(bucketTimeIdx).Put(tk, id); err != nil {
			return err
		}
		return tx.Bucket(bucketProjectIdx).Put(projectKey(rec.Project, rec.CreatedAt, rec.ID), id)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to persist record %s: %v", domain.ErrStorage, rec.ID, err)
	}

	return nil
}

// Get loads one record by id, or domain.ErrNotFound.
func (s *Store) Get(id uuid.UUID) (*domain.ContextRecord, error) {
	var rec *domain.ContextRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketRecords).Get(id[:])
		if raw == nil {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		decoded, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		rec = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Scan streams records to fn in creation order, optionally restricted to one
// project. Each call starts a fresh iteration. A non-nil error from fn stops
// the scan and is returned.
func (s *Store) Scan(project string, fn func(domain.ContextRecord) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)

		if project == "" {
			return tx.Bucket(bucketTimeIdx).ForEach(func(_, id []byte) error {
				return applyRecord(records, id, fn)
			})
		}

		prefix := append([]byte(project), projectSep)
		c := tx.Bucket(bucketProjectIdx).Cursor()
		for k, id := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, id = c.Next() {
			if err := applyRecord(records, id, fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to limit summaries, newest first, optionally filtered by
// project. Walks the time index backwards — no full table scan.
func (s *Store) Recent(limit int, project string) ([]domain.ContextSummary, error) {
	if limit <= 0 {
		return []domain.ContextSummary{}, nil
	}

	summaries := make([]domain.ContextSummary, 0, limit)

	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)

		var c *bolt.Cursor
		var prefix []byte
		if project == "" {
			c = tx.Bucket(bucketTimeIdx).Cursor()
		} else {
			c = tx.Bucket(bucketProjectIdx).Cursor()
			prefix = append([]byte(project), projectSep)
		}

		for k, id := seekLast(c, prefix); k != nil; k, id = c.Prev() {
			if prefix != nil && !bytes.HasPrefix(k, prefix) {
				break
			}
			rec, err := loadRecord(records, id)
			if err != nil {
				return err
			}
			summaries = append(summaries, rec.AsSummary())
			if len(summaries) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// Projects returns the sorted set of distinct project names, read from the
// project index keys without decoding any record.
func (s *Store) Projects() ([]string, error) {
	unique := make(map[string]struct{})

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProjectIdx).ForEach(func(k, _ []byte) error {
			if i := bytes.IndexByte(k, projectSep); i >= 0 {
				unique[string(k[:i])] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list projects: %v", domain.ErrStorage, err)
	}

	projects := make([]string, 0, len(unique))
	for p := range unique {
		projects = append(projects, p)
	}
	sort.Strings(projects)

	return projects, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count records: %v", domain.ErrStorage, err)
	}
	return n, nil
}

// Ping verifies the database is readable.
func (s *Store) Ping() error {
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketRecords) == nil {
			return fmt.Errorf("records bucket missing")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.db.Path() }

// Close releases the database and its file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func timeKey(t time.Time, id uuid.UUID) []byte {
	key := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(key[:8], uint64(t.UnixNano()))
	copy(key[8:], id[:])
	return key
}

func projectKey(project string, t time.Time, id uuid.UUID) []byte {
	key := make([]byte, 0, len(project)+1+8+len(id))
	key = append(key, project...)
	key = append(key, projectSep)
	key = append(key, timeKey(t, id)...)
	return key
}

// seekLast positions the cursor on the last key within prefix (or the last
// key overall when prefix is nil).
func seekLast(c *bolt.Cursor, prefix []byte) (key, value []byte) {
	if prefix == nil {
		return c.Last()
	}

	// Seek just past the prefix range, then step back.
	end := make([]byte, len(prefix))
	copy(end, prefix)
	end[len(end)-1]++
	if k, _ := c.Seek(end); k == nil {
		key, value = c.Last()
	} else {
		key, value = c.Prev()
	}
	if key == nil || !bytes.HasPrefix(key, prefix) {
		return nil, nil
	}
	return key, value
}

func applyRecord(records *bolt.Bucket, id []byte, fn func(domain.ContextRecord) error) error {
	rec, err := loadRecord(records, id)
	if err != nil {
		return err
	}
	return fn(*rec)
}

func loadRecord(records *bolt.Bucket, id []byte) (*domain.ContextRecord, error) {
	raw := records.Get(id)
	if raw == nil {
		return nil, fmt.Errorf("%w: index references missing record %x", domain.ErrStorage, id)
	}
	return decodeRecord(raw)
}

func decodeRecord(raw []byte) (*domain.ContextRecord, error) {
	var rec domain.ContextRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: failed to decode record: %v", domain.ErrStorage, err)
	}
	return &rec, nil
}
