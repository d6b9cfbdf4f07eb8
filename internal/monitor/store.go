// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package monitor

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrRecordNotFound is returned when a ride ID has no stored record.
var ErrRecordNotFound = errors.New("monitoring record not found")

const (
	recordKeyPrefix = "monitor:"
	latestReportKey = "monitor-report-latest"
)

// Store persists monitoring records in badger so the live window survives
// restarts and ground truth can be backfilled after the fact.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates the record store at the given directory.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening monitor store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenStoreInMemory opens an ephemeral store, used in tests.
func OpenStoreInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory monitor store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert writes or overwrites a record keyed by ride ID.
func (s *Store) Insert(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.RideID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+rec.RideID), data)
	})
}

// Get returns the record for a ride ID.
func (s *Store) Get(rideID string) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + rideID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRecordNotFound, rideID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateActual backfills ground truth for a stored record.
func (s *Store) UpdateActual(rideID string, actual float64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + rideID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRecordNotFound, rideID)
			}
			return err
		}

		var rec Record
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}

		rec.Actual = &actual
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return txn.Set([]byte(recordKeyPrefix+rideID), data)
	})
}

// All returns every stored record.
func (s *Store) All() ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveLatestReport persists the most recent monitoring report.
func (s *Store) SaveLatestReport(report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(latestReportKey), data)
	})
}

// LatestReport returns the last persisted report, or nil when none exists.
func (s *Store) LatestReport() (*Report, error) {
	var report *Report
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestReportKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			report = &Report{}
			return json.Unmarshal(val, report)
		})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Delete removes a record, e.g. after it ages out of the window.
func (s *Store) Delete(rideID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(recordKeyPrefix + rideID))
	})
}
