package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// Evaluation outcome constants
const (
	OutcomeOK         = "ok"
	OutcomeTriggered  = "triggered"
	OutcomeFetchError = "fetch_error"
)

// Entry is one recorded alert evaluation
type Entry struct {
	ID            int64     `json:"id"`
	AlertID       uint      `json:"alert_id"`
	Symbol        string    `json:"symbol"`
	ObservedPrice string    `json:"observed_price,omitempty"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Store keeps a local log of alert evaluations for operator debugging. It
// lives in a standalone SQLite file next to the service, separate from the
// primary alert database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the evaluation history database
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Evaluation history database initialized at %s", path)
	return store, nil
}

// Close closes the history database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) createTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		CREATE TABLE IF NOT EXISTS alert_evaluations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id INTEGER NOT NULL,
			symbol VARCHAR NOT NULL,
			observed_price VARCHAR,
			outcome VARCHAR NOT NULL,
			detail VARCHAR,
			checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create alert_evaluations table: %w", err)
	}

	s.db.Exec("CREATE INDEX IF NOT EXISTS idx_evaluations_alert_id ON alert_evaluations(alert_id)")
	s.db.Exec("CREATE INDEX IF NOT EXISTS idx_evaluations_checked_at ON alert_evaluations(checked_at DESC)")

	return nil
}

// Record appends an evaluation entry
func (s *Store) Record(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkedAt := entry.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}

	query := `INSERT INTO alert_evaluations (alert_id, symbol, observed_price, outcome, detail, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		entry.AlertID, entry.Symbol, entry.ObservedPrice, entry.Outcome, entry.Detail, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record evaluation: %w", err)
	}
	return nil
}

// ListByAlert returns the newest evaluations for an alert
func (s *Store) ListByAlert(alertID uint, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := `SELECT id, alert_id, symbol, observed_price, outcome, detail, checked_at
		FROM alert_evaluations WHERE alert_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.Query(query, alertID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var observed, detail sql.NullString
		var checkedAt sql.NullTime

		if err := rows.Scan(&e.ID, &e.AlertID, &e.Symbol, &observed, &e.Outcome, &detail, &checkedAt); err != nil {
			return nil, err
		}

		if observed.Valid {
			e.ObservedPrice = observed.String
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		if checkedAt.Valid {
			e.CheckedAt = checkedAt.Time
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountByAlert returns the number of recorded evaluations for an alert
func (s *Store) CountByAlert(alertID uint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM alert_evaluations WHERE alert_id = ?", alertID).Scan(&count)
	return count, err
}
