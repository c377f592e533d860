package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"streamvault-go/internal/coordinator"
)

// HistoryDB keeps a local record of operations this client committed and
// submitted, for display and reconciliation. It is an observer, never an
// authority: the on-chain ledger owns the truth.
type HistoryDB struct {
	db *sql.DB
}

// Entry is a stored operation row.
type Entry struct {
	ID        int64
	Safe      string
	Proposal  uint64
	Kind      string
	Amount    uint64
	Signature string
	Status    string
	CreatedAt time.Time
}

func NewHistoryDB(path string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	h := &HistoryDB{db: db}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		safe TEXT NOT NULL,
		proposal INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		signature TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_operations_safe ON operations(safe);
	`
	_, err := h.db.Exec(schema)
	return err
}

// RecordOperation implements coordinator.History.
func (h *HistoryDB) RecordOperation(rec coordinator.OperationRecord) error {
	_, err := h.db.Exec(
		`INSERT INTO operations (safe, proposal, kind, amount, signature, status) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Safe, rec.Proposal, rec.Kind, rec.Amount, rec.Signature, rec.Status,
	)
	return err
}

// RecentOperations returns the latest entries for a safe, newest first.
func (h *HistoryDB) RecentOperations(safe string, limit int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, safe, proposal, kind, amount, signature, status, created_at
		 FROM operations WHERE safe = ? ORDER BY id DESC LIMIT ?`,
		safe, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Safe, &e.Proposal, &e.Kind, &e.Amount, &e.Signature, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (h *HistoryDB) Close() error {
	return h.db.Close()
}
