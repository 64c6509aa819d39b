package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/riverforge/combine-trader/internal/combiner"
	"github.com/riverforge/combine-trader/internal/risk"
)

// TacticConfig is a named, storable override bundle: per-regime
// strategy weight overrides plus a risk-sizing override. cmd/server
// reads only the Risk override, which replaces the compiled-in risk
// config as a whole when its Level is set; WeightOverrides are stored
// but not read by the combiner.
type TacticConfig struct {
	WeightOverrides map[combiner.Regime]combiner.Weights `json:"weight_overrides,omitempty"`
	Risk            risk.Config                          `json:"risk,omitempty"`
}

// Tactic is one named, storable configuration bundle.
type Tactic struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	IsDefault   bool      `json:"is_default"`
	Config      string    `json:"config"` // JSON-encoded TacticConfig
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ParseConfig decodes the tactic's stored JSON config.
func (t *Tactic) ParseConfig() (*TacticConfig, error) {
	var cfg TacticConfig
	if err := json.Unmarshal([]byte(t.Config), &cfg); err != nil {
		return nil, fmt.Errorf("parse tactic config: %w", err)
	}
	return &cfg, nil
}

// SetConfig encodes cfg into the tactic's stored JSON config.
func (t *Tactic) SetConfig(cfg *TacticConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode tactic config: %w", err)
	}
	t.Config = string(data)
	return nil
}

// TacticStore is the sqlite-backed CRUD surface for Tactics.
type TacticStore struct {
	db *sql.DB
}

func NewTacticStore(db *sql.DB) *TacticStore {
	return &TacticStore{db: db}
}

func initTacticTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tactics (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT DEFAULT '',
			is_active BOOLEAN DEFAULT 0,
			is_default BOOLEAN DEFAULT 0,
			config TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create tactics table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_tactics_is_active ON tactics(is_active)`); err != nil {
		return fmt.Errorf("create tactics index: %w", err)
	}
	return nil
}

func (s *TacticStore) Create(t *Tactic) error {
	_, err := s.db.Exec(`
		INSERT INTO tactics (id, name, description, is_active, is_default, config)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.Description, t.IsActive, t.IsDefault, t.Config)
	if err != nil {
		return fmt.Errorf("insert tactic %s: %w", t.ID, err)
	}
	return nil
}

func (s *TacticStore) Update(t *Tactic) error {
	_, err := s.db.Exec(`
		UPDATE tactics SET name = ?, description = ?, config = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, t.Name, t.Description, t.Config, t.ID)
	if err != nil {
		return fmt.Errorf("update tactic %s: %w", t.ID, err)
	}
	return nil
}

func (s *TacticStore) Delete(id string) error {
	var isDefault bool
	_ = s.db.QueryRow(`SELECT is_default FROM tactics WHERE id = ?`, id).Scan(&isDefault)
	if isDefault {
		return fmt.Errorf("cannot delete the default tactic")
	}
	_, err := s.db.Exec(`DELETE FROM tactics WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tactic %s: %w", id, err)
	}
	return nil
}

func (s *TacticStore) Get(id string) (*Tactic, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, is_active, is_default, config, created_at, updated_at
		FROM tactics WHERE id = ?
	`, id)
	return scanTactic(row)
}

func (s *TacticStore) GetActive() (*Tactic, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, is_active, is_default, config, created_at, updated_at
		FROM tactics WHERE is_active = 1 LIMIT 1
	`)
	t, err := scanTactic(row)
	if err == sql.ErrNoRows {
		return s.GetDefault()
	}
	return t, err
}

func (s *TacticStore) GetDefault() (*Tactic, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, is_active, is_default, config, created_at, updated_at
		FROM tactics WHERE is_default = 1 LIMIT 1
	`)
	return scanTactic(row)
}

func (s *TacticStore) List() ([]*Tactic, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, is_active, is_default, config, created_at, updated_at
		FROM tactics ORDER BY is_default DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tactics: %w", err)
	}
	defer rows.Close()

	var out []*Tactic
	for rows.Next() {
		t, err := scanTacticRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetActive marks tacticID as the sole active tactic, deactivating
// every other row.
func (s *TacticStore) SetActive(tacticID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set-active: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE tactics SET is_active = 0`); err != nil {
		return fmt.Errorf("clear active tactics: %w", err)
	}
	if _, err := tx.Exec(`UPDATE tactics SET is_active = 1 WHERE id = ?`, tacticID); err != nil {
		return fmt.Errorf("activate tactic %s: %w", tacticID, err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTactic(row *sql.Row) (*Tactic, error) {
	return scanTacticRow(row)
}

func scanTacticRows(rows *sql.Rows) (*Tactic, error) {
	return scanTacticRow(rows)
}

func scanTacticRow(row rowScanner) (*Tactic, error) {
	var t Tactic
	var createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.IsActive, &t.IsDefault, &t.Config, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	t.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
	return &t, nil
}
