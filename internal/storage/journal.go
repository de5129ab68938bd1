// Package storage keeps a small on-disk journal of saved captures. The
// journal feeds the tray's recent-captures menu; it is bookkeeping only and
// plays no part in duplicate suppression, which is in-memory by design.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

const (
	captureBucket      = "captures"
	defaultKeepEntries = 50
)

// Entry is one journaled capture.
type Entry struct {
	Path      string    `json:"path"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	PixelHash uint64    `json:"pixel_hash"`
	SavedAt   time.Time `json:"saved_at"`
}

// Journal is a bbolt-backed log of saved captures, pruned to a fixed number
// of entries.
type Journal struct {
	db     *bbolt.DB
	keep   int
	logger *zap.Logger
}

// JournalConfig holds configuration for Journal initialization.
type JournalConfig struct {
	DBPath      string
	KeepEntries int
	Logger      *zap.Logger
}

// NewJournal opens (or creates) the journal database.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	keep := cfg.KeepEntries
	if keep <= 0 {
		keep = defaultKeepEntries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(cfg.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(captureBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}
	return &Journal{db: db, keep: keep, logger: logger}, nil
}

// Record appends a capture and prunes entries beyond the retention limit.
func (j *Journal) Record(file types.SavedFile, pixelHash uint64) error {
	entry := Entry{
		Path:      file.Path,
		Width:     file.Width,
		Height:    file.Height,
		PixelHash: pixelHash,
		SavedAt:   file.SavedAt,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(file.SavedAt.UnixNano()))

	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(captureBucket))
		if err := b.Put(key, value); err != nil {
			return err
		}
		// Keys sort by save time, so pruning walks from the oldest.
		total := 0
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			total++
		}
		excess := total - j.keep
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(captureBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				j.logger.Warn("Skipping corrupt journal entry", zap.Error(err))
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
