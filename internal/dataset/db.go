// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package dataset reads raw monthly trip files and writes scored output
// through DuckDB. DuckDB does the heavy lifting of parquet/CSV parsing;
// domain filtering and duration derivation stay in Go so they are shared
// with the serving paths and testable without a database.
package dataset

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tripcast/tripcast/internal/config"
	"github.com/tripcast/tripcast/internal/logging"
)

// DB wraps a DuckDB connection used for dataset IO.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the DuckDB database described by cfg.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("DuckDB opened")
	return &DB{conn: conn}, nil
}

// OpenInMemory opens an ephemeral database, used in tests.
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// sourceExpr maps a trip file path to the DuckDB table function reading it.
func sourceExpr(path string) (string, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".parquet"):
		return fmt.Sprintf("read_parquet('%s')", escapePath(path)), nil
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".csv.gz"):
		return fmt.Sprintf("read_csv_auto('%s')", escapePath(path)), nil
	default:
		return "", fmt.Errorf("unsupported trip file format: %s", path)
	}
}

// escapePath makes a path safe inside a single-quoted SQL literal.
func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
