package export_test

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"surveys/internal/domain"
	"surveys/internal/export"
	"surveys/internal/secret"
)

func sampleSurvey() *domain.Survey {
	return &domain.Survey{
		ID: "sv",
		Pages: []domain.Page{
			{ID: "p1", Components: []domain.Component{
				{ID: "name", Type: "text-input"},
				{ID: "score", Type: "nps"},
			}},
			{ID: "p2", Components: []domain.Component{
				{ID: "likes", Type: "multiselect"},
				{ID: "ok", Type: "yes-no"},
			}},
		},
	}
}

func sampleSubmission() *domain.Submission {
	return &domain.Submission{
		ID:          "sub-1",
		SurveyID:    "sv",
		SessionID:   "sess-1",
		CompletedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Responses:   domain.Responses{"name": "Ada", "score": "9", "likes": "tea", "ok": "yes"},
	}
}

// ─────────────────────────────────────────────────────────────
// Schema & records
// ─────────────────────────────────────────────────────────────

func TestSchemaFor(t *testing.T) {
	s := export.SchemaFor(sampleSurvey())
	want := []string{"submission_id", "session_id", "survey_id", "completed_at", "name", "score", "likes", "ok"}
	if got := s.FieldNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected fields %v", got)
	}
	for name, typ := range map[string]string{"name": "text", "score": "number", "likes": "list", "ok": "boolean", "completed_at": "datetime"} {
		if f, _ := s.Field(name); f.Type != typ {
			t.Errorf("%s: expected %s, got %s", name, typ, f.Type)
		}
	}
}

func TestRecordFor_Coerces(t *testing.T) {
	sub := sampleSubmission()
	delete(sub.Responses, "name")
	r := export.RecordFor(export.SchemaFor(sampleSurvey()), sub)

	if r.Data["score"] != 9.0 {
		t.Errorf("expected numeric score, got %#v", r.Data["score"])
	}
	if r.Data["ok"] != true {
		t.Errorf("expected boolean ok, got %#v", r.Data["ok"])
	}
	if !reflect.DeepEqual(r.Data["likes"], []any{"tea"}) {
		t.Errorf("expected single answer wrapped as list, got %#v", r.Data["likes"])
	}
	if v, ok := r.Data["name"]; !ok || v != nil {
		t.Errorf("expected unanswered column present as nil, got %#v", v)
	}
	if r.Data["session_id"] != "sess-1" {
		t.Errorf("missing metadata: %v", r.Data)
	}
}

func TestRecordFor_UncoercibleTypedAnswersAreNull(t *testing.T) {
	sub := sampleSubmission()
	sub.Responses["score"] = "about nine"
	sub.Responses["ok"] = "maybe"
	r := export.RecordFor(export.SchemaFor(sampleSurvey()), sub)

	for _, name := range []string{"score", "ok"} {
		if v, ok := r.Data[name]; !ok || v != nil {
			t.Errorf("%s: expected NULL for uncoercible answer, got %#v", name, v)
		}
	}
	if r.Data["name"] != "Ada" {
		t.Errorf("expected text column untouched, got %#v", r.Data["name"])
	}
}

// ─────────────────────────────────────────────────────────────
// Transforms
// ─────────────────────────────────────────────────────────────

func TestBuildTransformers(t *testing.T) {
	ts, err := export.BuildTransformers([]export.TransformConfig{
		{Type: "select", Config: map[string]any{"fields": []any{"a", "b", "c"}}},
		{Type: "rename", Config: map[string]any{"mapping": map[string]any{"a": "alpha"}}},
		{Type: "drop_empty"},
	})
	if err != nil {
		t.Fatal(err)
	}
	r, keep := export.ApplyTransformers(export.Record{Data: map[string]any{"a": 1, "b": "", "c": nil, "d": 4}}, ts)
	if !keep {
		t.Fatal("expected record kept")
	}
	if !reflect.DeepEqual(r.Data, map[string]any{"alpha": 1}) {
		t.Errorf("unexpected data %v", r.Data)
	}

	if _, err := export.BuildTransformers([]export.TransformConfig{{Type: "explode"}}); err == nil {
		t.Error("expected error for unknown transform")
	}
	if _, err := export.BuildTransformers([]export.TransformConfig{{Type: "rename"}}); err == nil {
		t.Error("expected error for rename without mapping")
	}
}

// ─────────────────────────────────────────────────────────────
// Pipeline
// ─────────────────────────────────────────────────────────────

type failingSink struct{}

func (failingSink) Name() string { return "broken" }
func (failingSink) Write(context.Context, *export.Schema, []export.Record) (int, error) {
	return 0, errors.New("disk on fire")
}
func (failingSink) Close() error { return nil }

func TestPipeline_WritesEverySink(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sink.db")
	jsonPath := filepath.Join(dir, "out", "responses.jsonl")
	ctx := context.Background()

	p, err := export.NewPipeline(ctx, &export.Config{
		Transforms: []export.TransformConfig{
			{Type: "rename", Config: map[string]any{"mapping": map[string]any{"score": "nps_score"}}},
		},
		Sinks: []export.SinkConfig{
			{Type: "database", Connection: &domain.SinkConnection{Driver: domain.SinkDriverSQLite, Host: dbPath, Table: "answers"}},
			{Type: "jsonl", Path: jsonPath},
		},
	}, secret.NewMemoryStore())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Sinks = append(p.Sinks, failingSink{})
	defer p.Close()

	res, err := p.Run(ctx, sampleSurvey(), sampleSubmission())
	if err == nil {
		t.Fatal("expected the failing sink to surface an error")
	}
	if res.Written["sqlite:answers"] != 1 || res.Written["jsonl:responses.jsonl"] != 1 {
		t.Fatalf("expected both real sinks written, got %v", res.Written)
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected one sink error, got %v", res.Errors)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var score float64
	if err := db.QueryRow(`SELECT nps_score FROM answers WHERE submission_id = 'sub-1'`).Scan(&score); err != nil {
		t.Fatalf("query sink: %v", err)
	}
	if score != 9 {
		t.Errorf("expected 9, got %v", score)
	}

	f, err := os.Open(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("expected one jsonl line")
	}
	var row map[string]any
	if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
		t.Fatal(err)
	}
	if row["name"] != "Ada" || row["nps_score"] != 9.0 {
		t.Errorf("unexpected jsonl row %v", row)
	}
}

func TestPipeline_UnknownSink(t *testing.T) {
	_, err := export.NewPipeline(context.Background(), &export.Config{Sinks: []export.SinkConfig{{Type: "carrier-pigeon"}}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSinkTypes(t *testing.T) {
	if got := export.SinkTypes(); !reflect.DeepEqual(got, []string{"database", "jsonl"}) {
		t.Errorf("unexpected sink types %v", got)
	}
}
