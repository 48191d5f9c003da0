package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"surveys/internal/domain"
	"surveys/internal/logic"
)

// ErrInvalidSurvey wraps every validation failure returned by SurveyService.
var ErrInvalidSurvey = errors.New("invalid survey")

// ─────────────────────────────────────────────────────────────
// Survey Service — definition CRUD and import
// ─────────────────────────────────────────────────────────────

// SurveyService manages survey definitions. Every definition is checked
// with logic.Validate before it is stored, so sessions never start on a
// survey whose rules reference pages or questions that do not exist.
type SurveyService struct {
	store   domain.SurveyStore
	emitter EventEmitter
}

// NewSurveyService creates a SurveyService.
func NewSurveyService(store domain.SurveyStore, emitter EventEmitter) *SurveyService {
	return &SurveyService{store: store, emitter: emitter}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidSurvey, err)
}

// Create validates and stores a new survey, assigning an id if it has none.
func (s *SurveyService) Create(ctx context.Context, sv *domain.Survey) error {
	if sv.ID == "" {
		sv.ID = uuid.New().String()
	}
	if sv.Title == "" {
		return invalid(errors.New("title is required"))
	}
	if err := logic.Validate(sv.Pages); err != nil {
		return invalid(err)
	}
	if err := s.store.CreateSurvey(sv); err != nil {
		return fmt.Errorf("create survey: %w", err)
	}
	s.emitter.Emit(ctx, "survey:created", map[string]string{"surveyId": sv.ID})
	return nil
}

func (s *SurveyService) Get(id string) (*domain.Survey, error) {
	return s.store.GetSurvey(id)
}

func (s *SurveyService) List() ([]domain.Survey, error) {
	return s.store.ListSurveys()
}

// Update validates and replaces a stored survey. Sessions already running
// keep the definition they started with.
func (s *SurveyService) Update(ctx context.Context, sv *domain.Survey) error {
	if err := logic.Validate(sv.Pages); err != nil {
		return invalid(err)
	}
	if err := s.store.UpdateSurvey(sv); err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	s.emitter.Emit(ctx, "survey:updated", map[string]string{"surveyId": sv.ID})
	return nil
}

func (s *SurveyService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteSurvey(id); err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	s.emitter.Emit(ctx, "survey:deleted", map[string]string{"surveyId": id})
	return nil
}

// Validate reports every authoring problem in sv without storing it.
func (s *SurveyService) Validate(sv *domain.Survey) []*logic.Problem {
	return logic.Problems(logic.Validate(sv.Pages))
}

// Decode parses builder JSON into a survey, applying default settings for
// anything the document leaves out.
func Decode(data []byte) (*domain.Survey, error) {
	sv := &domain.Survey{Settings: domain.DefaultSettings()}
	if err := json.Unmarshal(data, sv); err != nil {
		return nil, invalid(fmt.Errorf("decode: %w", err))
	}
	for i := range sv.Pages {
		if sv.Pages[i].Position == 0 {
			sv.Pages[i].Position = i
		}
	}
	return sv, nil
}

// Import creates or replaces a survey from builder JSON. A document without
// an id is always created fresh.
func (s *SurveyService) Import(ctx context.Context, data []byte) (*domain.Survey, error) {
	sv, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return s.upsert(ctx, sv)
}

func (s *SurveyService) upsert(ctx context.Context, sv *domain.Survey) (*domain.Survey, error) {
	if sv.ID != "" {
		if existing, err := s.store.GetSurvey(sv.ID); err == nil {
			sv.CreatedAt = existing.CreatedAt
			if err := s.Update(ctx, sv); err != nil {
				return nil, err
			}
			return sv, nil
		}
	}
	if err := s.Create(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}

// ImportFile reads and imports a survey definition file. A document without
// an id takes the file name, so re-importing the same file replaces it.
func (s *SurveyService) ImportFile(ctx context.Context, path string) (*domain.Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sv, err := Decode(data)
	if err == nil {
		if sv.ID == "" {
			sv.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		sv, err = s.upsert(ctx, sv)
	}
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return sv, nil
}
