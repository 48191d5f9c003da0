package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"surveys/internal/domain"
	"surveys/internal/export"
	"surveys/internal/logic"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is busy")
	ErrSessionClosed   = errors.New("session is no longer in progress")
	ErrSessionExpired  = errors.New("session time limit exceeded")
	ErrNotReady        = errors.New("required questions unanswered")
	ErrPageNotFound    = errors.New("page not found")
	ErrAtFirstPage     = errors.New("already on the first page")
	ErrBackDisabled    = errors.New("survey does not allow going back")
	ErrResponseLimit   = errors.New("survey response limit reached")
)

// SubmissionExporter copies a completed submission to downstream sinks.
// *export.Pipeline implements it.
type SubmissionExporter interface {
	Run(ctx context.Context, sv *domain.Survey, sub *domain.Submission) (*export.Result, error)
}

// ─────────────────────────────────────────────────────────────
// Session Service — respondents walking through surveys
// ─────────────────────────────────────────────────────────────

// SessionService drives one logic.Engine per respondent session. Engines
// live in memory while a session is active and are rebuilt from the stored
// draft on demand, so a session survives a restart.
//
// Every mutation is persisted as a draft before it returns. When the
// engine reports completion (an end_survey condition fires, or "next" is
// requested with nowhere left to go) the session is closed, a Submission is
// stored and handed to the exporter, and survey:completed is emitted.
type SessionService struct {
	surveys     domain.SurveyStore
	sessions    domain.SessionStore
	submissions domain.SubmissionStore
	answers     domain.AnswerLogStore
	exporter    SubmissionExporter
	emitter     EventEmitter
	logger      *log.Logger
	now         func() time.Time

	guard sessionGuard
	mu    sync.Mutex
	live  map[string]*liveSession
}

// liveSession is an in-memory session. Only the goroutine holding the
// session's guard may touch it.
type liveSession struct {
	session   *domain.Session
	survey    *domain.Survey
	engine    *logic.Engine
	completed *logic.Completion  // set by the engine observer, cleared once the session is closed
	stored    *domain.Submission // submission already written for a pending completion
}

// SessionDeps groups the stores a SessionService needs. Answers and
// Exporter are optional.
type SessionDeps struct {
	Surveys     domain.SurveyStore
	Sessions    domain.SessionStore
	Submissions domain.SubmissionStore
	Answers     domain.AnswerLogStore
	Exporter    SubmissionExporter
	Emitter     EventEmitter
	Logger      *log.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(deps SessionDeps) *SessionService {
	s := &SessionService{
		surveys:     deps.Surveys,
		sessions:    deps.Sessions,
		submissions: deps.Submissions,
		answers:     deps.Answers,
		exporter:    deps.Exporter,
		emitter:     deps.Emitter,
		logger:      deps.Logger,
		now:         time.Now,
		live:        map[string]*liveSession{},
	}
	if s.emitter == nil {
		s.emitter = LogEmitter{}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// SetClock overrides time.Now. Tests only.
func (s *SessionService) SetClock(now func() time.Time) { s.now = now }

// ── Lifecycle ──────────────────────────────────────────────

// Start opens a new session on the first page of a survey.
func (s *SessionService) Start(ctx context.Context, surveyID string) (*domain.SessionView, error) {
	sv, err := s.surveys.GetSurvey(surveyID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if limit := sv.Settings.ResponseLimit; limit > 0 {
		subs, err := s.submissions.ListSubmissions(surveyID)
		if err != nil {
			return nil, fmt.Errorf("count submissions: %w", err)
		}
		if len(subs) >= limit {
			return nil, ErrResponseLimit
		}
	}

	ls := &liveSession{
		session: &domain.Session{ID: uuid.New().String(), SurveyID: sv.ID, Status: domain.SessionInProgress},
		survey:  sv,
	}
	s.attachEngine(ls)
	state, err := s.encodeState(ls)
	if err != nil {
		return nil, err
	}
	ls.session.StateJSON = state
	if err := s.sessions.CreateSession(ls.session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	s.live[ls.session.ID] = ls
	s.mu.Unlock()

	s.logger.Printf("[SESSION] %s started on survey %s", ls.session.ID, sv.ID)
	s.emitter.Emit(ctx, "session:started", map[string]string{"sessionId": ls.session.ID, "surveyId": sv.ID})
	return s.view(ls), nil
}

// Resume loads a stored draft back into memory and returns where the
// respondent left off.
func (s *SessionService) Resume(ctx context.Context, sessionID string) (*domain.SessionView, error) {
	return s.read(ctx, sessionID)
}

// View returns the session's current position without changing it.
func (s *SessionService) View(ctx context.Context, sessionID string) (*domain.SessionView, error) {
	return s.read(ctx, sessionID)
}

// Abandon closes a session without a submission.
func (s *SessionService) Abandon(ctx context.Context, sessionID string) error {
	v, err := s.mutate(ctx, sessionID, "abandon", func(ls *liveSession) error {
		ls.session.Status = domain.SessionAbandoned
		return nil
	})
	if err != nil {
		return err
	}
	s.evict(sessionID)
	if v.Status == domain.SessionCompleted {
		// a pending completion was stored instead
		return nil
	}
	s.emitter.Emit(ctx, "session:abandoned", map[string]string{"sessionId": sessionID})
	return nil
}

// ── Answers & navigation ───────────────────────────────────

// Answer records a response. If an end_survey condition becomes true the
// session completes as part of this call.
func (s *SessionService) Answer(ctx context.Context, sessionID, componentID string, value any) (*domain.SessionView, error) {
	return s.mutate(ctx, sessionID, "answer", func(ls *liveSession) error {
		if _, ok := ls.survey.Component(componentID); !ok {
			return fmt.Errorf("answer: unknown component %q", componentID)
		}
		ls.engine.UpdateResponse(componentID, value)
		s.logAnswer(ls.session.ID, componentID, value)
		return nil
	})
}

// Next advances past the current page. Visible required questions must be
// answered first; with nowhere left to go the session is submitted.
func (s *SessionService) Next(ctx context.Context, sessionID string) (*domain.SessionView, error) {
	return s.mutate(ctx, sessionID, "next", func(ls *liveSession) error {
		e := ls.engine
		if !e.CanNavigateToNextPage() {
			return fmt.Errorf("%w: %s", ErrNotReady, strings.Join(e.MissingRequired(), ", "))
		}
		id, ok := e.NextPageID()
		if !ok {
			page := ""
			if p := e.CurrentPage(); p != nil {
				page = p.ID
			}
			ls.completed = &logic.Completion{Responses: e.Responses(), CompletedAt: s.now(), PageID: page}
			return nil
		}
		if !e.NavigateToPage(id) {
			return fmt.Errorf("next: %w: %q", ErrPageNotFound, id)
		}
		return nil
	})
}

// Previous returns to the page the respondent came from.
func (s *SessionService) Previous(ctx context.Context, sessionID string) (*domain.SessionView, error) {
	return s.mutate(ctx, sessionID, "previous", func(ls *liveSession) error {
		if !ls.survey.Settings.AllowBack {
			return ErrBackDisabled
		}
		if !ls.engine.NavigateToPreviousPage() {
			return ErrAtFirstPage
		}
		return nil
	})
}

// GoTo jumps straight to a page, bypassing gating.
func (s *SessionService) GoTo(ctx context.Context, sessionID, pageID string) (*domain.SessionView, error) {
	return s.mutate(ctx, sessionID, "go_to", func(ls *liveSession) error {
		if !ls.engine.NavigateToPage(pageID) {
			return fmt.Errorf("go to %q: %w", pageID, ErrPageNotFound)
		}
		return nil
	})
}

// SaveDraft persists the session and returns the exported engine state.
func (s *SessionService) SaveDraft(ctx context.Context, sessionID string) (*logic.State, error) {
	var state logic.State
	_, err := s.mutate(ctx, sessionID, "save_draft", func(ls *liveSession) error {
		state = ls.engine.ExportState()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Edits returns the recorded answer history of a session.
func (s *SessionService) Edits(sessionID string) ([]domain.AnswerEdit, error) {
	if s.answers == nil {
		return nil, nil
	}
	return s.answers.ListEdits(sessionID)
}

// ── Sweeping ───────────────────────────────────────────────

// SweepResult summarises one stale-draft sweep.
type SweepResult struct {
	Abandoned int `json:"abandoned"`
	Deleted   int `json:"deleted"`
	Evicted   int `json:"evicted"`
}

// Sweep abandons drafts untouched since before, deletes drafts that were
// already abandoned before then, and drops their in-memory engines.
func (s *SessionService) Sweep(ctx context.Context, before time.Time) (SweepResult, error) {
	var res SweepResult

	s.mu.Lock()
	for id, ls := range s.live {
		// Sessions mid-request are skipped; the next sweep gets them.
		release, err := s.guard.acquire(id, "sweep")
		if err != nil {
			continue
		}
		if ls.session.Status != domain.SessionInProgress || ls.session.UpdatedAt.Before(before) {
			delete(s.live, id)
			res.Evicted++
		}
		release()
	}
	s.mu.Unlock()

	n, err := s.sessions.MarkStaleAbandoned(before)
	if err != nil {
		return res, err
	}
	res.Abandoned = n
	n, err = s.sessions.DeleteAbandoned(before)
	if err != nil {
		return res, err
	}
	res.Deleted = n

	if res.Abandoned+res.Deleted > 0 {
		s.emitter.Emit(ctx, "sessions:swept", res)
	}
	return res, nil
}

// WaitIdle blocks until in-flight requests finish or ctx is cancelled.
func (s *SessionService) WaitIdle(ctx context.Context) {
	s.guard.wait(ctx)
}

// ── Internals ──────────────────────────────────────────────

// read loads a session and returns its view under the guard.
func (s *SessionService) read(ctx context.Context, sessionID string) (*domain.SessionView, error) {
	release, err := s.guard.acquire(sessionID, "view")
	if err != nil {
		return nil, err
	}
	defer release()
	ls, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(ls), nil
}

// mutate runs fn against an in-progress session, completes it if fn (or
// the engine) signalled completion, and persists the result. A completion
// that could not be stored is retried by the next mutation instead of fn.
func (s *SessionService) mutate(ctx context.Context, sessionID, op string, fn func(*liveSession) error) (*domain.SessionView, error) {
	release, err := s.guard.acquire(sessionID, op)
	if err != nil {
		return nil, err
	}
	defer release()

	ls, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	if ls.session.Status != domain.SessionInProgress {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, ls.session.Status)
	}
	if limit := ls.survey.Settings.TimeLimit; limit > 0 {
		if s.now().Sub(ls.session.CreatedAt) > time.Duration(limit)*time.Second {
			ls.session.Status = domain.SessionAbandoned
			if err := s.persist(ls); err != nil {
				s.logger.Printf("[SESSION] %s: persist expired session: %v", sessionID, err)
			}
			return nil, ErrSessionExpired
		}
	}

	if ls.completed == nil {
		if err := fn(ls); err != nil {
			return nil, err
		}
	} else {
		s.logger.Printf("[SESSION] %s: retrying completion before %s", sessionID, op)
	}
	if ls.completed != nil {
		if err := s.complete(ctx, ls, *ls.completed); err != nil {
			return nil, err
		}
		ls.completed = nil
		ls.stored = nil
	} else if err := s.persist(ls); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, "session:updated", map[string]any{
		"sessionId": ls.session.ID,
		"pageIndex": ls.engine.CurrentPageIndex(),
	})
	return s.view(ls), nil
}

// load returns the cached session or rebuilds it from storage. Callers
// hold the session guard.
func (s *SessionService) load(sessionID string) (*liveSession, error) {
	s.mu.Lock()
	ls, ok := s.live[sessionID]
	s.mu.Unlock()
	if ok {
		return ls, nil
	}

	stored, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sv, err := s.surveys.GetSurvey(stored.SurveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey for session %s: %w", sessionID, err)
	}
	ls = &liveSession{session: stored, survey: sv}
	s.attachEngine(ls)
	if stored.StateJSON != "" {
		var state logic.State
		if err := json.Unmarshal([]byte(stored.StateJSON), &state); err != nil {
			return nil, fmt.Errorf("decode draft %s: %w", sessionID, err)
		}
		ls.engine.ImportState(state)
	}

	s.mu.Lock()
	s.live[sessionID] = ls
	s.mu.Unlock()
	s.logger.Printf("[SESSION] %s resumed at page %d", sessionID, ls.engine.CurrentPageIndex())
	return ls, nil
}

func (s *SessionService) attachEngine(ls *liveSession) {
	ls.engine = logic.New(ls.survey.Pages, nil, logic.WithLogger(s.logger), logic.WithClock(s.now))
	ls.engine.OnComplete(func(c logic.Completion) {
		ls.completed = &c
	})
}

func (s *SessionService) evict(sessionID string) {
	s.mu.Lock()
	delete(s.live, sessionID)
	s.mu.Unlock()
}

func (s *SessionService) encodeState(ls *liveSession) (string, error) {
	data, err := json.Marshal(ls.engine.ExportState())
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return string(data), nil
}

func (s *SessionService) persist(ls *liveSession) error {
	state, err := s.encodeState(ls)
	if err != nil {
		return err
	}
	ls.session.StateJSON = state
	if err := s.sessions.UpdateSession(ls.session); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// complete stores the submission, then closes the session and exports it.
// The session stays in progress until both writes succeed, and a stored
// submission is not written twice when closing is retried. Export
// failures are logged; the submission is already safe in storage.
func (s *SessionService) complete(ctx context.Context, ls *liveSession, c logic.Completion) error {
	sub := ls.stored
	if sub == nil {
		sub = &domain.Submission{
			ID:          uuid.New().String(),
			SurveyID:    ls.survey.ID,
			SessionID:   ls.session.ID,
			Responses:   c.Responses,
			CompletedAt: c.CompletedAt,
		}
		if err := s.submissions.CreateSubmission(sub); err != nil {
			return fmt.Errorf("store submission: %w", err)
		}
		ls.stored = sub
	}

	ls.session.Status = domain.SessionCompleted
	if err := s.persist(ls); err != nil {
		ls.session.Status = domain.SessionInProgress
		return err
	}
	s.logger.Printf("[SESSION] %s completed (submission %s)", ls.session.ID, sub.ID)

	if s.exporter != nil {
		exportCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := s.exporter.Run(exportCtx, ls.survey, sub); err != nil {
			s.logger.Printf("[SESSION] %s: export failed: %v", ls.session.ID, err)
		}
	}

	s.emitter.Emit(ctx, "survey:completed", map[string]string{
		"sessionId":    ls.session.ID,
		"surveyId":     ls.survey.ID,
		"submissionId": sub.ID,
		"pageId":       c.PageID,
		"conditionId":  c.ConditionID,
	})
	return nil
}

func (s *SessionService) logAnswer(sessionID, componentID string, value any) {
	if s.answers == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		data = []byte("null")
	}
	edit := &domain.AnswerEdit{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		ComponentID: componentID,
		ValueJSON:   string(data),
	}
	if err := s.answers.AppendEdit(edit); err != nil {
		s.logger.Printf("[SESSION] %s: answer log: %v", sessionID, err)
	}
}

func (s *SessionService) view(ls *liveSession) *domain.SessionView {
	e := ls.engine
	v := &domain.SessionView{
		SessionID:    ls.session.ID,
		SurveyID:     ls.survey.ID,
		Status:       ls.session.Status,
		Page:         e.CurrentPage(),
		PageIndex:    e.CurrentPageIndex(),
		PageCount:    len(ls.survey.Pages),
		Progress:     e.Progress(),
		ShowProgress: ls.survey.Settings.ShowProgress,
		Complete:     e.IsSurveyComplete(),
		Responses:    e.Responses(),
	}
	if v.Page != nil {
		v.Components = e.VisibleComponents(v.Page.ID)
		v.MissingRequired = e.MissingRequired()
		v.CanNext = len(v.MissingRequired) == 0
	}
	v.NextPageID, v.HasNext = e.NextPageID()
	v.CanGoBack = ls.survey.Settings.AllowBack && (len(e.History()) > 0 || e.CurrentPageIndex() > 0)
	return v
}
