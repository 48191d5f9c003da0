package domain

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// Session is a respondent's walk through a survey. StateJSON holds the
// engine's exported state so a draft can be resumed later.
type Session struct {
	ID        string        `json:"id"`
	SurveyID  string        `json:"surveyId"`
	StateJSON string        `json:"stateJson"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type SessionStore interface {
	CreateSession(s *Session) error
	GetSession(id string) (*Session, error)
	ListSessions(surveyID string) ([]Session, error)
	UpdateSession(s *Session) error
	DeleteSession(id string) error
	MarkStaleAbandoned(before time.Time) (int, error)
	DeleteAbandoned(before time.Time) (int, error)
}

// Submission is a completed response set handed to downstream consumers.
type Submission struct {
	ID          string    `json:"id"`
	SurveyID    string    `json:"surveyId"`
	SessionID   string    `json:"sessionId"`
	Responses   Responses `json:"responses"`
	CompletedAt time.Time `json:"completedAt"`
}

// ResponsesJSON encodes the responses for storage.
func (s *Submission) ResponsesJSON() (string, error) {
	data, err := json.Marshal(s.Responses)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type SubmissionStore interface {
	CreateSubmission(s *Submission) error
	GetSubmission(id string) (*Submission, error)
	ListSubmissions(surveyID string) ([]Submission, error)
}

// AnswerEdit is one recorded UpdateResponse call for a session.
type AnswerEdit struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	ComponentID string    `json:"componentId"`
	ValueJSON   string    `json:"valueJson"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AnswerLogStore interface {
	AppendEdit(e *AnswerEdit) error
	ListEdits(sessionID string) ([]AnswerEdit, error)
	ClearSession(sessionID string) error
}
