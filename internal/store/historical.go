package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/riverforge/combine-trader/internal/market"
)

// HistoricalStore archives OHLCV candles per pair/granularity for
// longer-than-the-collection-window lookback and offline analysis.
// The live decision cycle never reads from here — the collector
// always pulls a fresh window from the exchange adapter.
type HistoricalStore struct {
	db *sql.DB
}

func NewHistoricalStore(db *sql.DB) *HistoricalStore {
	return &HistoricalStore{db: db}
}

func initHistoricalTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS historical_candles (
			pair TEXT NOT NULL,
			granularity_seconds INTEGER NOT NULL,
			open_time DATETIME NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			PRIMARY KEY (pair, granularity_seconds, open_time)
		)
	`)
	if err != nil {
		return fmt.Errorf("create historical_candles table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_historical_pair_gran ON historical_candles(pair, granularity_seconds)`); err != nil {
		return fmt.Errorf("create historical_candles index: %w", err)
	}
	return nil
}

// Append inserts candles for pair/granularity, replacing any existing
// row at the same (pair, granularity, open_time) — archiving is
// idempotent under replay.
func (s *HistoricalStore) Append(pair string, granularity time.Duration, candles []market.Candle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin historical append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO historical_candles
			(pair, granularity_seconds, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare historical insert: %w", err)
	}
	defer stmt.Close()

	granSeconds := int64(granularity.Seconds())
	for _, c := range candles {
		if _, err := stmt.Exec(pair, granSeconds, c.OpenTime.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("insert candle for %s: %w", pair, err)
		}
	}
	return tx.Commit()
}

// Range returns the archived candles for pair/granularity between
// from and to (inclusive), ordered oldest first.
func (s *HistoricalStore) Range(pair string, granularity time.Duration, from, to time.Time) ([]market.Candle, error) {
	rows, err := s.db.Query(`
		SELECT open_time, open, high, low, close, volume
		FROM historical_candles
		WHERE pair = ? AND granularity_seconds = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC
	`, pair, int64(granularity.Seconds()), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query historical range for %s: %w", pair, err)
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan historical candle for %s: %w", pair, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
