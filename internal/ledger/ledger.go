// Package ledger keeps a history of munge runs in a bbolt database.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
	"go.etcd.io/bbolt"

	"example.com/l2munger/internal/common"
)

const bucketRuns = "runs"

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var ErrNotFound = errors.New("run not found")

// Run is one ledger record. IDs are KSUIDs, so keys sort by creation time.
type Run struct {
	ID        string          `json:"id"`
	Command   string          `json:"command"`
	Started   time.Time       `json:"started"`
	ElapsedMs int64           `json:"elapsedMs"`
	Source    string          `json:"source"`
	Output    string          `json:"output,omitempty"`
	Audit     string          `json:"audit,omitempty"`
	Site      string          `json:"site"`
	Reference time.Time       `json:"reference"`
	Target    time.Time       `json:"target"`
	Speed     int             `json:"speed"`
	Packets   int64           `json:"packets"`
	Remapped  int64           `json:"remapped"`
	Skipped   int64           `json:"skipped"`
	ByType    map[uint8]int64 `json:"byType,omitempty"`
	Bytes     int64           `json:"bytes"`
	Sha256    string          `json:"sha256,omitempty"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// NewRunID returns a fresh time-ordered run identifier.
func NewRunID() string {
	return ksuid.New().String()
}

type Ledger struct {
	db *bbolt.DB
}

func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func key(id string) ([]byte, error) {
	k, err := ksuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	return k.Bytes(), nil
}

// Record stores run, assigning an ID when it has none.
func (l *Ledger) Record(run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.Status == "" {
		run.Status = StatusOK
	}
	k, err := key(run.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	if err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucketRuns)
		}
		return b.Put(k, data)
	}); err != nil {
		return err
	}
	common.Debugf("ledger: recorded run %s (%s)", run.ID, run.Status)
	return nil
}

func (l *Ledger) Get(id string) (Run, error) {
	var run Run
	k, err := key(id)
	if err != nil {
		return run, err
	}
	err = l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketRuns)).Get(k)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &run)
	})
	return run, err
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (l *Ledger) List(limit int) ([]Run, error) {
	var runs []Run
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %x: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}
