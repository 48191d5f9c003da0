package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"surveys/internal/domain"
	"surveys/internal/service"
	"surveys/internal/storage"

	"github.com/mark3labs/mcp-go/mcp"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "surveys.db"), filepath.Join(dir, "definitions"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	emitter := &service.MockEmitter{}
	surveys := service.NewSurveyService(storage.NewSurveyStore(db), emitter)
	sessions := service.NewSessionService(service.SessionDeps{
		Surveys:     storage.NewSurveyStore(db),
		Sessions:    storage.NewSessionStore(db),
		Submissions: storage.NewSubmissionStore(db),
		Answers:     storage.NewAnswerLogStore(db, 0),
		Emitter:     emitter,
	})
	settings := service.NewSettingsService(db)
	return New(Deps{
		Notifier: NewNotifier(),
		Surveys:  surveys,
		Sessions: sessions,
		Settings: settings,
		Janitor:  service.NewDraftJanitor(sessions, settings, 0, ""),
	})
}

// newCallToolRequest builds a tool call request with arguments.
func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

// decodeView unpacks a handler's view result; use as decodeView(t)(s.handleX(ctx, req)).
func decodeView(t *testing.T) func(*mcp.CallToolResult, error) domain.SessionView {
	return func(res *mcp.CallToolResult, err error) domain.SessionView {
		t.Helper()
		if err != nil {
			t.Fatalf("tool error: %v", err)
		}
		if res.IsError {
			t.Fatalf("tool reported error: %s", resultText(t, res))
		}
		var v domain.SessionView
		if err := json.Unmarshal([]byte(resultText(t, res)), &v); err != nil {
			t.Fatalf("decode view: %v", err)
		}
		return v
	}
}

const definition = `{
	"id": "pets",
	"title": "Pets",
	"pages": [
		{"id": "p1", "components": [
			{"id": "has_pet", "type": "yes-no", "required": true},
			{"id": "pet_name", "type": "text-input"}
		], "logic": {
			"conditions": [{"id": "c1", "field": "has_pet", "operator": "equals", "value": false, "action": "hide", "target": "pet_name"}],
			"skipLogic": [{"id": "s1", "condition": "responses.has_pet === false", "targetPageId": "p3"}]
		}},
		{"id": "p2", "components": [{"id": "age", "type": "number"}]},
		{"id": "p3", "components": [{"id": "comment", "type": "textarea"}]}
	]
}`

// ─────────────────────────────────────────────────────────────
// Tools
// ─────────────────────────────────────────────────────────────

func TestTools_RespondentFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleImportSurvey(ctx, newCallToolRequest("import_survey", map[string]any{"definition": definition}))
	if err != nil || res.IsError {
		t.Fatalf("import: %v %v", err, res)
	}

	v := decodeView(t)(s.handleStartSession(ctx, newCallToolRequest("start_session", map[string]any{"surveyId": "pets"})))
	if v.Page.ID != "p1" || len(v.Components) != 2 {
		t.Fatalf("unexpected start view %+v", v)
	}

	res, err = s.handleNextPage(ctx, newCallToolRequest("next_page", map[string]any{"sessionId": v.SessionID}))
	if err != nil || !res.IsError {
		t.Fatalf("expected tool error for unanswered question, got %v %v", err, res)
	}

	v = decodeView(t)(s.handleAnswer(ctx, newCallToolRequest("answer", map[string]any{
		"sessionId": v.SessionID, "componentId": "has_pet", "value": "false",
	})))
	if len(v.Components) != 1 || v.Components[0].ID != "has_pet" {
		t.Fatalf("expected pet_name hidden, got %+v", v.Components)
	}
	if v.NextPageID != "p3" {
		t.Errorf("expected skip to p3, got %q", v.NextPageID)
	}

	v = decodeView(t)(s.handleNextPage(ctx, newCallToolRequest("next_page", map[string]any{"sessionId": v.SessionID})))
	if v.Page.ID != "p3" {
		t.Fatalf("expected p3, got %s", v.Page.ID)
	}
	v = decodeView(t)(s.handlePreviousPage(ctx, newCallToolRequest("previous_page", map[string]any{"sessionId": v.SessionID})))
	if v.Page.ID != "p1" {
		t.Fatalf("expected back to p1 across the skip, got %s", v.Page.ID)
	}
}

func TestTools_ValidateSurvey(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleValidateSurvey(context.Background(), newCallToolRequest("validate_survey", map[string]any{
		"definition": `{"title":"x","pages":[{"id":"p1","logic":{"skipLogic":[{"id":"r","condition":"responses.q ==","targetPageId":"p1"}]}}]}`,
	}))
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Valid    bool     `json:"valid"`
		Problems []string `json:"problems"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Valid || len(out.Problems) == 0 {
		t.Errorf("expected problems, got %+v", out)
	}
}

func TestTools_DeleteNeedsConfirm(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.handleImportSurvey(ctx, newCallToolRequest("import_survey", map[string]any{"definition": definition})); err != nil {
		t.Fatal(err)
	}

	res, err := s.handleDeleteSurvey(ctx, newCallToolRequest("delete_survey", map[string]any{"surveyId": "pets"}))
	if err != nil || !res.IsError {
		t.Fatalf("expected refusal without confirm, got %v %v", err, res)
	}
	res, err = s.handleDeleteSurvey(ctx, newCallToolRequest("delete_survey", map[string]any{"surveyId": "pets", "confirm": true}))
	if err != nil || res.IsError {
		t.Fatalf("delete: %v %v", err, res)
	}
	if _, err := s.surveys.Get("pets"); err == nil {
		t.Error("expected survey gone")
	}
}

func TestTools_SetDraftRetention(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSetDraftRetention(ctx, newCallToolRequest("set_draft_retention", map[string]any{"hours": 0.5}))
	if err != nil || !res.IsError {
		t.Fatalf("expected rejection below one hour, got %v %v", err, res)
	}
	res, err = s.handleSetDraftRetention(ctx, newCallToolRequest("set_draft_retention", map[string]any{"hours": 48.0}))
	if err != nil || res.IsError {
		t.Fatalf("set: %v %v", err, res)
	}
	if res, err := s.handleSweepDrafts(ctx, newCallToolRequest("sweep_drafts", nil)); err != nil || res.IsError {
		t.Fatalf("sweep: %v %v", err, res)
	}
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

func TestSurveyIDFromURI(t *testing.T) {
	tests := map[string]string{
		"surveys://survey/abc-123":   "abc-123",
		"surveys://survey/abc/pages": "",
		"surveys://surveys":          "",
		"notes://survey/abc":         "",
	}
	for uri, want := range tests {
		if got := surveyIDFromURI(uri); got != want {
			t.Errorf("%s: expected %q, got %q", uri, want, got)
		}
	}
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", 42.0},
		{"true", true},
		{`["a","b"]`, []any{"a", "b"}},
		{`"42"`, "42"},
		{"hello world", "hello world"},
	}
	for _, tt := range tests {
		if got := decodeValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: expected %#v, got %#v", tt.in, tt.want, got)
		}
	}
}

func TestToParams(t *testing.T) {
	got, err := toParams(map[string]string{"sessionId": "s"})
	if err != nil || got["sessionId"] != "s" {
		t.Errorf("expected flattened object, got %v %v", got, err)
	}
	got, err = toParams("plain")
	if err != nil || got["data"] != "plain" {
		t.Errorf("expected wrapped scalar, got %v %v", got, err)
	}
}

func TestFlowResult_KnownErrorsBecomeToolErrors(t *testing.T) {
	res, err := flowResult(nil, service.ErrNotReady)
	if err != nil || !res.IsError {
		t.Errorf("expected tool error, got %v %v", res, err)
	}
	if _, err := flowResult(nil, context.Canceled); err == nil {
		t.Error("expected unknown error to propagate")
	}
}
