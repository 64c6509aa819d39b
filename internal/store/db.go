// Package store persists strategy/tactic configuration overrides and
// a historical OHLCV archive in sqlite (modernc.org/sqlite, pure Go,
// no cgo) — unlike the ledger/trade-log/snapshot files, which stay
// atomically-written JSON, this is queryable historical state that
// benefits from SQL access (range queries, per-pair indices).
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (creating if absent) the sqlite database at path and
// runs schema migrations for every table this package owns.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer discipline

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := initTacticTables(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := initHistoricalTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
