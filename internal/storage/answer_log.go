package storage

import (
	"fmt"
	"time"

	"surveys/internal/domain"
)

// defaultAnswerLogLimit caps how many edits are kept per session.
const defaultAnswerLogLimit = 200

// AnswerLogStore records every answer a respondent gives, in order, so a
// session's edits can be audited or replayed. Old entries are pruned per
// session once the limit is exceeded.
type AnswerLogStore struct {
	db    *DB
	limit int
}

// NewAnswerLogStore creates an AnswerLogStore keeping at most limit edits per
// session. A non-positive limit uses the default.
func NewAnswerLogStore(db *DB, limit int) *AnswerLogStore {
	if limit <= 0 {
		limit = defaultAnswerLogLimit
	}
	return &AnswerLogStore{db: db, limit: limit}
}

// AppendEdit stores e and prunes the session's oldest edits if needed.
func (s *AnswerLogStore) AppendEdit(e *domain.AnswerEdit) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Conn().Exec(
		`INSERT INTO answer_log (id, session_id, component_id, value_json, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM answer_log WHERE session_id = ?))`,
		e.ID, e.SessionID, e.ComponentID, e.ValueJSON, e.CreatedAt, e.SessionID,
	)
	if err != nil {
		return fmt.Errorf("insert answer edit: %w", err)
	}
	return s.pruneIfNeeded(e.SessionID)
}

// ListEdits returns a session's edits, oldest first.
func (s *AnswerLogStore) ListEdits(sessionID string) ([]domain.AnswerEdit, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, session_id, component_id, value_json, created_at
		 FROM answer_log WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load answer log: %w", err)
	}
	defer rows.Close()

	var edits []domain.AnswerEdit
	for rows.Next() {
		var e domain.AnswerEdit
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ComponentID, &e.ValueJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer edit: %w", err)
		}
		edits = append(edits, e)
	}
	return edits, rows.Err()
}

// ClearSession removes all edits for a session.
func (s *AnswerLogStore) ClearSession(sessionID string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM answer_log WHERE session_id = ?`, sessionID)
	return err
}

// pruneIfNeeded removes the oldest edits when a session exceeds the limit.
func (s *AnswerLogStore) pruneIfNeeded(sessionID string) error {
	var count int
	if err := s.db.Conn().QueryRow(`SELECT COUNT(*) FROM answer_log WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		return fmt.Errorf("count answer log: %w", err)
	}
	if count <= s.limit {
		return nil
	}

	// Collect ids first and close rows before writing (single connection)
	rows, err := s.db.Conn().Query(
		`SELECT id FROM answer_log WHERE session_id = ? ORDER BY seq ASC LIMIT ?`,
		sessionID, count-s.limit,
	)
	if err != nil {
		return fmt.Errorf("select answer log overflow: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.Conn().Exec(`DELETE FROM answer_log WHERE id = ?`, id); err != nil {
			return fmt.Errorf("prune answer log: %w", err)
		}
	}
	return nil
}
