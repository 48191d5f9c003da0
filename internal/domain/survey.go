package domain

import (
	"encoding/json"
	"time"
)

// Operator is the comparison a Condition applies to a single answer.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// Action is what a satisfied Condition does.
type Action string

const (
	ActionShow      Action = "show"
	ActionHide      Action = "hide"
	ActionSkipTo    Action = "skip_to"
	ActionEndSurvey Action = "end_survey"
)

// Condition is a predicate over one answer. Target is a component id for
// show/hide and a page id for skip_to.
type Condition struct {
	ID       string   `json:"id"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	Action   Action   `json:"action"`
	Target   string   `json:"target,omitempty"`
}

// SkipRule branches to TargetPageID when Condition evaluates truthy.
// Condition is an expression over `responses`, e.g. responses.Q1 === 'yes'.
type SkipRule struct {
	ID           string `json:"id"`
	Condition    string `json:"condition"`
	TargetPageID string `json:"targetPageId"`
}

// Logic holds a page's branching and visibility rules. Order is significant.
type Logic struct {
	Conditions []Condition `json:"conditions"`
	SkipRules  []SkipRule  `json:"skipLogic"`
}

// Component is a single form field. Only ID and Required matter to the flow
// engine; the rest is carried through for the renderer.
type Component struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Label    string         `json:"label"`
	Required bool           `json:"required"`
	Position int            `json:"position"`
	PageID   string         `json:"pageId"`
	Props    map[string]any `json:"props,omitempty"`
}

// Page is an ordered group of components with its own logic.
type Page struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Position    int         `json:"position"`
	Components  []Component `json:"components"`
	Logic       *Logic      `json:"logic,omitempty"`
}

// Conditions returns the page's conditions, or nil when it has no logic.
func (p *Page) Conditions() []Condition {
	if p.Logic == nil {
		return nil
	}
	return p.Logic.Conditions
}

// SkipRules returns the page's skip rules, or nil when it has no logic.
func (p *Page) SkipRules() []SkipRule {
	if p.Logic == nil {
		return nil
	}
	return p.Logic.SkipRules
}

// SurveySettings are the respondent-facing switches of a survey.
type SurveySettings struct {
	AllowBack     bool `json:"allowBack"`
	ShowProgress  bool `json:"showProgress"`
	TimeLimit     int  `json:"timeLimit,omitempty"`     // seconds per session, 0 = none
	ResponseLimit int  `json:"responseLimit,omitempty"` // submissions accepted, 0 = unlimited
}

// DefaultSettings mirrors what the builder assumes when a field is omitted.
func DefaultSettings() SurveySettings {
	return SurveySettings{AllowBack: true, ShowProgress: true}
}

// UnmarshalJSON applies DefaultSettings to fields missing from data.
func (s *SurveySettings) UnmarshalJSON(data []byte) error {
	type plain SurveySettings
	p := plain(DefaultSettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = SurveySettings(p)
	return nil
}

// Survey is a complete definition as produced by the builder.
type Survey struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Pages       []Page         `json:"pages"`
	Settings    SurveySettings `json:"settings"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Component looks up a component by id across all pages.
func (s *Survey) Component(id string) (*Component, bool) {
	for i := range s.Pages {
		for j := range s.Pages[i].Components {
			if s.Pages[i].Components[j].ID == id {
				return &s.Pages[i].Components[j], true
			}
		}
	}
	return nil, false
}

type SurveyStore interface {
	CreateSurvey(s *Survey) error
	GetSurvey(id string) (*Survey, error)
	ListSurveys() ([]Survey, error)
	UpdateSurvey(s *Survey) error
	DeleteSurvey(id string) error
}
