package service

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"surveys/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Settings persistence
// ─────────────────────────────────────────────────────────────
//
// Operator-tunable values that outlive a restart, stored as key-value rows
// in app_settings. Environment configuration supplies the defaults; a
// stored value overrides it.

// SettingsService persists runtime settings.
type SettingsService struct {
	db *storage.DB
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(db *storage.DB) *SettingsService {
	return &SettingsService{db: db}
}

const (
	settingDraftRetentionHours = "draft_retention_hours"
	minDraftRetention          = time.Hour
)

// DraftRetention returns how long an untouched draft is kept, or def when
// nothing valid is stored.
func (s *SettingsService) DraftRetention(def time.Duration) time.Duration {
	if s == nil || s.db == nil {
		return def
	}
	var raw string
	if err := s.db.Conn().QueryRow(`SELECT value FROM app_settings WHERE key = ?`, settingDraftRetentionHours).Scan(&raw); err != nil {
		return def
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	d := time.Duration(hours) * time.Hour
	if d < minDraftRetention {
		return def
	}
	return d
}

// SetDraftRetention persists the draft retention window, rounded down to
// whole hours.
func (s *SettingsService) SetDraftRetention(d time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("settings: no db")
	}
	if d < minDraftRetention {
		return fmt.Errorf("settings: draft retention must be at least %s", minDraftRetention)
	}
	return upsertSetting(s.db.Conn(), settingDraftRetentionHours, strconv.Itoa(int(d/time.Hour)))
}

func upsertSetting(conn *sql.DB, key, value string) error {
	_, err := conn.Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
