package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"surveys/internal/domain"
	"surveys/internal/export"
	"surveys/internal/service"
	"surveys/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────

type harness struct {
	db       *storage.DB
	surveys  *service.SurveyService
	sessions *service.SessionService
	emitter  *service.MockEmitter
	exporter *recordingExporter
	deps     service.SessionDeps
}

type recordingExporter struct {
	mu    sync.Mutex
	subs  []*domain.Submission
	enter chan struct{} // signalled on entry when non-nil
	hold  chan struct{} // blocks Run until closed when non-nil
}

func (r *recordingExporter) Run(ctx context.Context, _ *domain.Survey, sub *domain.Submission) (*export.Result, error) {
	if r.enter != nil {
		r.enter <- struct{}{}
	}
	if r.hold != nil {
		<-r.hold
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return &export.Result{SubmissionID: sub.ID}, nil
}

func (r *recordingExporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "surveys.db"), filepath.Join(dir, "definitions"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{db: db, emitter: &service.MockEmitter{}, exporter: &recordingExporter{}}
	h.surveys = service.NewSurveyService(storage.NewSurveyStore(db), h.emitter)
	h.deps = service.SessionDeps{
		Surveys:     storage.NewSurveyStore(db),
		Sessions:    storage.NewSessionStore(db),
		Submissions: storage.NewSubmissionStore(db),
		Answers:     storage.NewAnswerLogStore(db, 0),
		Exporter:    h.exporter,
		Emitter:     h.emitter,
	}
	h.sessions = service.NewSessionService(h.deps)
	return h
}

// feedback: p1 asks for a name, p2 may end the survey early, p3 is optional.
func feedbackSurvey(settings domain.SurveySettings) *domain.Survey {
	return &domain.Survey{
		ID:    "feedback",
		Title: "Feedback",
		Pages: []domain.Page{
			{ID: "p1", Components: []domain.Component{{ID: "name", Type: "text-input", Required: true}}},
			{ID: "p2", Components: []domain.Component{{ID: "rating", Type: "scale"}}, Logic: &domain.Logic{
				Conditions: []domain.Condition{{ID: "bail", Field: "rating", Operator: domain.OpEquals, Value: "stop", Action: domain.ActionEndSurvey}},
			}},
			{ID: "p3", Components: []domain.Component{{ID: "comment", Type: "textarea"}}},
		},
		Settings: settings,
	}
}

func (h *harness) create(t *testing.T, sv *domain.Survey) {
	t.Helper()
	if err := h.surveys.Create(context.Background(), sv); err != nil {
		t.Fatalf("create survey: %v", err)
	}
}

// mustView fails the test on error; use as mustView(t)(h.sessions.Next(ctx, id)).
func mustView(t *testing.T) func(*domain.SessionView, error) *domain.SessionView {
	return func(v *domain.SessionView, err error) *domain.SessionView {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v
	}
}

// ─────────────────────────────────────────────────────────────
// Flow
// ─────────────────────────────────────────────────────────────

func TestSessionService_CompletesOnLastNext(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	v := mustView(t)(h.sessions.Start(ctx, "feedback"))
	if v.Page.ID != "p1" || v.CanNext || v.Progress != 0 || v.PageCount != 3 {
		t.Fatalf("unexpected start view %+v", v)
	}
	id := v.SessionID

	if _, err := h.sessions.Next(ctx, id); !errors.Is(err, service.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	mustView(t)(h.sessions.Answer(ctx, id, "name", "Ada"))
	v = mustView(t)(h.sessions.Next(ctx, id))
	if v.Page.ID != "p2" || v.Progress != 33 || !v.CanGoBack {
		t.Fatalf("unexpected view on p2 %+v", v)
	}
	mustView(t)(h.sessions.Answer(ctx, id, "rating", 4))
	v = mustView(t)(h.sessions.Next(ctx, id))
	if v.Page.ID != "p3" || !v.Complete || v.HasNext {
		t.Fatalf("expected last page with nowhere to go, got %+v", v)
	}

	v = mustView(t)(h.sessions.Next(ctx, id))
	if v.Status != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", v.Status)
	}

	subs, err := h.deps.Submissions.ListSubmissions("feedback")
	if err != nil || len(subs) != 1 {
		t.Fatalf("expected one submission, got %v %v", subs, err)
	}
	if subs[0].Responses["name"] != "Ada" || subs[0].SessionID != id {
		t.Errorf("unexpected submission %+v", subs[0])
	}
	if h.exporter.count() != 1 {
		t.Errorf("expected exporter called once, got %d", h.exporter.count())
	}
	if got := h.emitter.Named("survey:completed"); len(got) != 1 {
		t.Fatalf("expected one survey:completed event, got %d", len(got))
	}

	if _, err := h.sessions.Answer(ctx, id, "comment", "late"); !errors.Is(err, service.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed after completion, got %v", err)
	}
}

func TestSessionService_EndSurveyCondition(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	mustView(t)(h.sessions.Answer(ctx, id, "name", "Ada"))
	mustView(t)(h.sessions.Next(ctx, id))

	v := mustView(t)(h.sessions.Answer(ctx, id, "rating", "stop"))
	if v.Status != domain.SessionCompleted {
		t.Fatalf("expected end_survey to complete the session, got %s", v.Status)
	}
	events := h.emitter.Named("survey:completed")
	if len(events) != 1 {
		t.Fatalf("expected one completion event, got %d", len(events))
	}
	data := events[0].Data.(map[string]string)
	if data["conditionId"] != "bail" || data["pageId"] != "p2" {
		t.Errorf("unexpected completion payload %v", data)
	}
}

// flakySubmissions fails CreateSubmission while failing is set.
type flakySubmissions struct {
	domain.SubmissionStore
	failing bool
}

func (f *flakySubmissions) CreateSubmission(sub *domain.Submission) error {
	if f.failing {
		return errors.New("disk full")
	}
	return f.SubmissionStore.CreateSubmission(sub)
}

func TestSessionService_CompletionRetriedAfterStoreFailure(t *testing.T) {
	h := newHarness(t)
	subs := &flakySubmissions{SubmissionStore: h.deps.Submissions, failing: true}
	h.deps.Submissions = subs
	h.sessions = service.NewSessionService(h.deps)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	mustView(t)(h.sessions.Answer(ctx, id, "name", "Ada"))
	mustView(t)(h.sessions.Next(ctx, id))

	if _, err := h.sessions.Answer(ctx, id, "rating", "stop"); err == nil {
		t.Fatal("expected error when the submission cannot be stored")
	}
	stored, err := storage.NewSessionStore(h.db).GetSession(id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.Status != domain.SessionInProgress {
		t.Fatalf("expected session to stay in progress, got %s", stored.Status)
	}
	if list, _ := h.deps.Submissions.ListSubmissions("feedback"); len(list) != 0 {
		t.Fatalf("expected no submissions yet, got %d", len(list))
	}
	if len(h.emitter.Named("survey:completed")) != 0 {
		t.Error("expected no completion event before the submission is stored")
	}

	subs.failing = false
	v := mustView(t)(h.sessions.Next(ctx, id))
	if v.Status != domain.SessionCompleted {
		t.Fatalf("expected retry to complete the session, got %s", v.Status)
	}
	list, err := h.deps.Submissions.ListSubmissions("feedback")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one submission after retry, got %d %v", len(list), err)
	}
	if list[0].Responses["rating"] != "stop" || list[0].Responses["name"] != "Ada" {
		t.Errorf("expected answers kept, got %v", list[0].Responses)
	}
	if h.exporter.count() != 1 {
		t.Errorf("expected one export, got %d", h.exporter.count())
	}
}

func TestSessionService_UnknownComponent(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	if _, err := h.sessions.Answer(ctx, id, "nope", 1); err == nil {
		t.Fatal("expected error answering unknown component")
	}
}

func TestSessionService_GoTo(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	v := mustView(t)(h.sessions.GoTo(ctx, id, "p3"))
	if v.PageIndex != 2 {
		t.Fatalf("expected page index 2, got %d", v.PageIndex)
	}
	if _, err := h.sessions.GoTo(ctx, id, "p9"); !errors.Is(err, service.ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
	v = mustView(t)(h.sessions.Previous(ctx, id))
	if v.Page.ID != "p1" {
		t.Errorf("expected back to p1 via history, got %s", v.Page.ID)
	}
}

// ─────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────

func TestSessionService_BackDisabled(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.SurveySettings{AllowBack: false}))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	mustView(t)(h.sessions.Answer(ctx, id, "name", "Ada"))
	v := mustView(t)(h.sessions.Next(ctx, id))
	if v.CanGoBack {
		t.Error("expected CanGoBack false when the survey forbids it")
	}
	if _, err := h.sessions.Previous(ctx, id); !errors.Is(err, service.ErrBackDisabled) {
		t.Errorf("expected ErrBackDisabled, got %v", err)
	}
}

func TestSessionService_AtFirstPage(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	if _, err := h.sessions.Previous(ctx, id); !errors.Is(err, service.ErrAtFirstPage) {
		t.Errorf("expected ErrAtFirstPage, got %v", err)
	}
}

func TestSessionService_ResponseLimit(t *testing.T) {
	h := newHarness(t)
	settings := domain.DefaultSettings()
	settings.ResponseLimit = 1
	h.create(t, feedbackSurvey(settings))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	mustView(t)(h.sessions.Answer(ctx, id, "name", "Ada"))
	mustView(t)(h.sessions.Next(ctx, id))
	mustView(t)(h.sessions.Answer(ctx, id, "rating", "stop"))

	if _, err := h.sessions.Start(ctx, "feedback"); !errors.Is(err, service.ErrResponseLimit) {
		t.Fatalf("expected ErrResponseLimit, got %v", err)
	}
}

func TestSessionService_TimeLimit(t *testing.T) {
	h := newHarness(t)
	settings := domain.DefaultSettings()
	settings.TimeLimit = 60
	h.create(t, feedbackSurvey(settings))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	h.sessions.SetClock(func() time.Time { return time.Now().Add(2 * time.Minute) })

	if _, err := h.sessions.Answer(ctx, id, "name", "Ada"); !errors.Is(err, service.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	stored, err := h.deps.Sessions.GetSession(id)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.SessionAbandoned {
		t.Errorf("expected expired session abandoned, got %s", stored.Status)
	}
}

// ─────────────────────────────────────────────────────────────
// Drafts
// ─────────────────────────────────────────────────────────────

func TestSessionService_ResumeAfterRestart(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	mustView(t)(h.sessions.Answer(ctx, id, "name", "Ada"))
	mustView(t)(h.sessions.Next(ctx, id))
	state, err := h.sessions.SaveDraft(ctx, id)
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if state.CurrentPageIndex != 1 || len(state.History) != 1 {
		t.Fatalf("unexpected draft state %+v", state)
	}

	restarted := service.NewSessionService(h.deps)
	v := mustView(t)(restarted.Resume(ctx, id))
	if v.Page.ID != "p2" || v.Responses["name"] != "Ada" {
		t.Fatalf("unexpected resumed view %+v", v)
	}
	v = mustView(t)(restarted.Previous(ctx, id))
	if v.Page.ID != "p1" {
		t.Errorf("expected history to survive the restart, got %s", v.Page.ID)
	}

	edits, err := restarted.Edits(id)
	if err != nil || len(edits) != 1 || edits[0].ComponentID != "name" || edits[0].ValueJSON != `"Ada"` {
		t.Errorf("unexpected answer log %+v %v", edits, err)
	}
}

func TestSessionService_ResumeUnknown(t *testing.T) {
	h := newHarness(t)
	if _, err := h.sessions.Resume(context.Background(), "ghost"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionService_Abandon(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	if err := h.sessions.Abandon(ctx, id); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	v := mustView(t)(h.sessions.View(ctx, id))
	if v.Status != domain.SessionAbandoned {
		t.Errorf("expected abandoned, got %s", v.Status)
	}
	if _, err := h.sessions.Next(ctx, id); !errors.Is(err, service.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionService_Sweep(t *testing.T) {
	h := newHarness(t)
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID

	res, err := h.sessions.Sweep(ctx, time.Now().Add(-time.Hour))
	if err != nil || res.Abandoned+res.Deleted+res.Evicted != 0 {
		t.Fatalf("expected fresh draft untouched, got %+v %v", res, err)
	}

	res, err = h.sessions.Sweep(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Abandoned != 1 || res.Deleted != 1 || res.Evicted != 1 {
		t.Fatalf("unexpected sweep result %+v", res)
	}
	if _, err := h.sessions.View(ctx, id); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("expected swept session gone, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Concurrency
// ─────────────────────────────────────────────────────────────

func TestSessionService_BusyWhileExporting(t *testing.T) {
	h := newHarness(t)
	h.exporter.enter = make(chan struct{})
	h.exporter.hold = make(chan struct{})
	h.create(t, feedbackSurvey(domain.DefaultSettings()))
	ctx := context.Background()

	id := mustView(t)(h.sessions.Start(ctx, "feedback")).SessionID
	mustView(t)(h.sessions.Answer(ctx, id, "name", "Ada"))
	mustView(t)(h.sessions.Next(ctx, id))

	done := make(chan error, 1)
	go func() {
		_, err := h.sessions.Answer(ctx, id, "rating", "stop")
		done <- err
	}()

	select {
	case <-h.exporter.enter:
	case <-time.After(time.Second):
		t.Fatal("exporter never called")
	}
	if _, err := h.sessions.View(ctx, id); !errors.Is(err, service.ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy during export, got %v", err)
	}
	close(h.exporter.hold)

	if err := <-done; err != nil {
		t.Fatalf("answer: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	h.sessions.WaitIdle(waitCtx)
	if waitCtx.Err() != nil {
		t.Error("WaitIdle did not return")
	}
}
