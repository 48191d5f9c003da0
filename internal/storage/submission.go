package storage

import (
	"encoding/json"
	"fmt"

	"surveys/internal/domain"
)

// SubmissionStore implements domain.SubmissionStore using SQLite.
type SubmissionStore struct {
	db *DB
}

func NewSubmissionStore(db *DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) CreateSubmission(sub *domain.Submission) error {
	data, err := sub.ResponsesJSON()
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO submissions (id, survey_id, session_id, responses_json, completed_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.SurveyID, sub.SessionID, data, sub.CompletedAt.UTC(),
	)
	return err
}

func (s *SubmissionStore) GetSubmission(id string) (*domain.Submission, error) {
	sub := &domain.Submission{}
	var data string
	err := s.db.conn.QueryRow(
		`SELECT id, survey_id, session_id, responses_json, completed_at FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.SurveyID, &sub.SessionID, &data, &sub.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &sub.Responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return sub, nil
}

func (s *SubmissionStore) ListSubmissions(surveyID string) ([]domain.Submission, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, survey_id, session_id, responses_json, completed_at FROM submissions WHERE survey_id = ? ORDER BY completed_at ASC`,
		surveyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		var sub domain.Submission
		var data string
		if err := rows.Scan(&sub.ID, &sub.SurveyID, &sub.SessionID, &data, &sub.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &sub.Responses); err != nil {
			return nil, fmt.Errorf("decode responses of %s: %w", sub.ID, err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
