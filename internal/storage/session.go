package storage

import (
	"fmt"
	"time"

	"surveys/internal/domain"
)

// SessionStore implements domain.SessionStore using SQLite.
//
// Timestamps are written in UTC so the stale-draft sweeps can compare them
// directly in SQL.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateSession(ss *domain.Session) error {
	now := time.Now().UTC()
	ss.CreatedAt = now
	ss.UpdatedAt = now
	if ss.Status == "" {
		ss.Status = domain.SessionInProgress
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO sessions (id, survey_id, state_json, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ss.ID, ss.SurveyID, ss.StateJSON, ss.Status, ss.CreatedAt, ss.UpdatedAt,
	)
	return err
}

func (s *SessionStore) GetSession(id string) (*domain.Session, error) {
	ss := &domain.Session{}
	err := s.db.conn.QueryRow(
		`SELECT id, survey_id, state_json, status, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&ss.ID, &ss.SurveyID, &ss.StateJSON, &ss.Status, &ss.CreatedAt, &ss.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return ss, nil
}

func (s *SessionStore) ListSessions(surveyID string) ([]domain.Session, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, survey_id, state_json, status, created_at, updated_at FROM sessions WHERE survey_id = ? ORDER BY updated_at DESC`,
		surveyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var ss domain.Session
		if err := rows.Scan(&ss.ID, &ss.SurveyID, &ss.StateJSON, &ss.Status, &ss.CreatedAt, &ss.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

func (s *SessionStore) UpdateSession(ss *domain.Session) error {
	ss.UpdatedAt = time.Now().UTC()
	res, err := s.db.conn.Exec(
		`UPDATE sessions SET state_json = ?, status = ?, updated_at = ? WHERE id = ?`,
		ss.StateJSON, ss.Status, ss.UpdatedAt, ss.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update session %s: not found", ss.ID)
	}
	return nil
}

func (s *SessionStore) DeleteSession(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// MarkStaleAbandoned flags in-progress drafts untouched since before. The
// flagged rows get a fresh updated_at, so DeleteAbandoned leaves them alone
// for one more retention window.
func (s *SessionStore) MarkStaleAbandoned(before time.Time) (int, error) {
	res, err := s.db.conn.Exec(
		`UPDATE sessions SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		domain.SessionAbandoned, time.Now().UTC(), domain.SessionInProgress, before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteAbandoned removes abandoned drafts last touched before the cutoff,
// together with their answer log.
func (s *SessionStore) DeleteAbandoned(before time.Time) (int, error) {
	cutoff := before.UTC()
	if _, err := s.db.conn.Exec(
		`DELETE FROM answer_log WHERE session_id IN (SELECT id FROM sessions WHERE status = ? AND updated_at < ?)`,
		domain.SessionAbandoned, cutoff,
	); err != nil {
		return 0, fmt.Errorf("delete abandoned answer log: %w", err)
	}
	res, err := s.db.conn.Exec(
		`DELETE FROM sessions WHERE status = ? AND updated_at < ?`,
		domain.SessionAbandoned, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete abandoned sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
