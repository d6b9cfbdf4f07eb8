// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package artifact persists trained pipeline blobs in badger, keyed by run
// ID. A "latest" pointer is maintained on every save so serving processes
// can start without knowing a specific run.
package artifact

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tripcast/tripcast/internal/logging"
)

// ErrNotFound is returned when no artifact exists for the requested run.
var ErrNotFound = errors.New("artifact not found")

const (
	artifactKeyPrefix  = "artifact:"
	referenceKeyPrefix = "reference:"
	latestKey          = "artifact-latest"
)

// Store is a badger-backed artifact repository.
type Store struct {
	db *badger.DB
}

// Open opens or creates the store at the given directory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening artifact store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used in tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory artifact store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the blob under the run ID and advances the latest pointer.
func (s *Store) Save(runID string, blob []byte) error {
	if runID == "" {
		return errors.New("empty run ID")
	}
	if len(blob) == 0 {
		return errors.New("empty artifact blob")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(artifactKeyPrefix+runID), blob); err != nil {
			return err
		}
		return txn.Set([]byte(latestKey), []byte(runID))
	})
	if err != nil {
		return fmt.Errorf("saving artifact %s: %w", runID, err)
	}

	logging.Info().Str("run_id", runID).Int("bytes", len(blob)).Msg("Artifact saved")
	return nil
}

// Load returns the blob for the given run ID.
func (s *Store) Load(runID string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(artifactKeyPrefix + runID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: run %s", ErrNotFound, runID)
			}
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Latest returns the most recently saved run ID and its blob.
func (s *Store) Latest() (string, []byte, error) {
	var runID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: no runs saved", ErrNotFound)
			}
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		runID = string(id)
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	blob, err := s.Load(runID)
	if err != nil {
		return "", nil, err
	}
	return runID, blob, nil
}

// SaveReference stores the monitoring reference sample captured for a run.
func (s *Store) SaveReference(runID string, blob []byte) error {
	if runID == "" {
		return errors.New("empty run ID")
	}
	if len(blob) == 0 {
		return errors.New("empty reference blob")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(referenceKeyPrefix+runID), blob)
	})
	if err != nil {
		return fmt.Errorf("saving reference %s: %w", runID, err)
	}
	logging.Info().Str("run_id", runID).Int("bytes", len(blob)).Msg("Reference sample saved")
	return nil
}

// LoadReference returns the reference sample for the given run ID.
func (s *Store) LoadReference(runID string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(referenceKeyPrefix + runID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: reference for run %s", ErrNotFound, runID)
			}
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Runs lists every stored run ID.
func (s *Store) Runs() ([]string, error) {
	var runs []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(artifactKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			runs = append(runs, key[len(artifactKeyPrefix):])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
