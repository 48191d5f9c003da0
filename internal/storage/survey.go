package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"surveys/internal/domain"
)

// SurveyStore implements domain.SurveyStore using SQLite. Pages and settings
// are stored as JSON so the builder's schema can grow without migrations.
type SurveyStore struct {
	db *DB
}

func NewSurveyStore(db *DB) *SurveyStore {
	return &SurveyStore{db: db}
}

func (s *SurveyStore) CreateSurvey(sv *domain.Survey) error {
	pages, settings, err := encodeSurvey(sv)
	if err != nil {
		return err
	}
	now := time.Now()
	sv.CreatedAt = now
	sv.UpdatedAt = now
	_, err = s.db.conn.Exec(
		`INSERT INTO surveys (id, title, description, pages_json, settings_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.Title, sv.Description, pages, settings, sv.CreatedAt, sv.UpdatedAt,
	)
	return err
}

func (s *SurveyStore) GetSurvey(id string) (*domain.Survey, error) {
	sv := &domain.Survey{}
	var pages, settings string
	err := s.db.conn.QueryRow(
		`SELECT id, title, description, pages_json, settings_json, created_at, updated_at FROM surveys WHERE id = ?`, id,
	).Scan(&sv.ID, &sv.Title, &sv.Description, &pages, &settings, &sv.CreatedAt, &sv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	if err := decodeSurvey(sv, pages, settings); err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *SurveyStore) ListSurveys() ([]domain.Survey, error) {
	rows, err := s.db.conn.Query(`SELECT id, title, description, pages_json, settings_json, created_at, updated_at FROM surveys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var surveys []domain.Survey
	for rows.Next() {
		var sv domain.Survey
		var pages, settings string
		if err := rows.Scan(&sv.ID, &sv.Title, &sv.Description, &pages, &settings, &sv.CreatedAt, &sv.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decodeSurvey(&sv, pages, settings); err != nil {
			return nil, err
		}
		surveys = append(surveys, sv)
	}
	return surveys, rows.Err()
}

func (s *SurveyStore) UpdateSurvey(sv *domain.Survey) error {
	pages, settings, err := encodeSurvey(sv)
	if err != nil {
		return err
	}
	sv.UpdatedAt = time.Now()
	_, err = s.db.conn.Exec(
		`UPDATE surveys SET title = ?, description = ?, pages_json = ?, settings_json = ?, updated_at = ? WHERE id = ?`,
		sv.Title, sv.Description, pages, settings, sv.UpdatedAt, sv.ID,
	)
	return err
}

// DeleteSurvey removes a survey together with its sessions, their answer
// log and its submissions.
func (s *SurveyStore) DeleteSurvey(id string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin delete survey: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM answer_log WHERE session_id IN (SELECT id FROM sessions WHERE survey_id = ?)`,
		`DELETE FROM sessions WHERE survey_id = ?`,
		`DELETE FROM submissions WHERE survey_id = ?`,
		`DELETE FROM surveys WHERE id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete survey %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func encodeSurvey(sv *domain.Survey) (pages, settings string, err error) {
	pb, err := json.Marshal(sv.Pages)
	if err != nil {
		return "", "", fmt.Errorf("encode pages: %w", err)
	}
	sb, err := json.Marshal(sv.Settings)
	if err != nil {
		return "", "", fmt.Errorf("encode settings: %w", err)
	}
	return string(pb), string(sb), nil
}

func decodeSurvey(sv *domain.Survey, pages, settings string) error {
	if err := json.Unmarshal([]byte(pages), &sv.Pages); err != nil {
		return fmt.Errorf("decode pages of %s: %w", sv.ID, err)
	}
	if err := json.Unmarshal([]byte(settings), &sv.Settings); err != nil {
		return fmt.Errorf("decode settings of %s: %w", sv.ID, err)
	}
	return nil
}
