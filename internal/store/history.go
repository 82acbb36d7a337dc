package store

import (
	"database/sql"
	"time"
)

// HistoryEntry is one recognized letter, word or shortcut.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryFilter narrows a history listing. Zero values match everything.
type HistoryFilter struct {
	SessionID string
	Kind      string
	Limit     int
}

// DefaultHistoryLimit caps listings that do not set a limit.
const DefaultHistoryLimit = 100

// HistoryRepository records the translation history.
type HistoryRepository struct {
	db *sql.DB
}

// History returns the history repository for this store.
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{db: s.db}
}

// Create inserts a history entry and sets its ID. A zero CreatedAt is set to now.
func (r *HistoryRepository) Create(e *HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO history (session_id, kind, text, created_at) VALUES (?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.Text, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// List returns matching entries, newest first.
func (r *HistoryRepository) List(f HistoryFilter) ([]*HistoryEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, kind, text, created_at FROM history
		 WHERE (? = '' OR session_id = ?) AND (? = '' OR kind = ?)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		f.SessionID, f.SessionID, f.Kind, f.Kind, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Text, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Count returns the number of entries of kind, or of every kind when empty.
func (r *HistoryRepository) Count(kind string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM history WHERE ? = '' OR kind = ?`, kind, kind).Scan(&n)
	return n, err
}

// Clear deletes the whole history.
func (r *HistoryRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM history`)
	return err
}
