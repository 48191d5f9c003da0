package export

import (
	"strconv"
	"strings"

	"surveys/internal/domain"
)

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format between a completed submission and the
// sinks. Every submission becomes exactly one Record.

// Field describes a single column in the export.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean" | "list" | "datetime"
}

// Schema describes the shape of a survey's records.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Record is a single row of data flowing through the pipeline.
type Record struct {
	Data map[string]any `json:"data"`
}

// Metadata columns present on every record.
const (
	FieldSubmissionID = "submission_id"
	FieldSessionID    = "session_id"
	FieldSurveyID     = "survey_id"
	FieldCompletedAt  = "completed_at"
)

// SchemaFor derives the export schema of a survey: the metadata columns
// followed by one column per component in page order.
func SchemaFor(sv *domain.Survey) *Schema {
	fields := []Field{
		{Name: FieldSubmissionID, Type: "text"},
		{Name: FieldSessionID, Type: "text"},
		{Name: FieldSurveyID, Type: "text"},
		{Name: FieldCompletedAt, Type: "datetime"},
	}
	seen := map[string]bool{}
	for _, p := range sv.Pages {
		for _, c := range p.Components {
			if c.ID == "" || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			fields = append(fields, Field{Name: c.ID, Type: fieldType(c.Type)})
		}
	}
	return &Schema{Fields: fields}
}

// fieldType maps a builder component type to an export column type.
func fieldType(componentType string) string {
	switch componentType {
	case "scale", "slider", "nps", "likert", "semantic-differential":
		return "number"
	case "yes-no":
		return "boolean"
	case "multiselect", "checkbox", "ranking", "matrix", "image-choice":
		return "list"
	default:
		return "text"
	}
}

// RecordFor flattens a submission into a record shaped by schema. Answers
// are coerced to their column type. A number or boolean column whose
// answer cannot be coerced is written as NULL, since typed SQL columns
// reject the raw text.
func RecordFor(schema *Schema, sub *domain.Submission) Record {
	data := map[string]any{
		FieldSubmissionID: sub.ID,
		FieldSessionID:    sub.SessionID,
		FieldSurveyID:     sub.SurveyID,
		FieldCompletedAt:  sub.CompletedAt.UTC(),
	}
	for _, f := range schema.Fields {
		if _, meta := data[f.Name]; meta {
			continue
		}
		v, ok := sub.Responses[f.Name]
		if !ok {
			data[f.Name] = nil
			continue
		}
		data[f.Name] = coerce(v, f.Type)
	}
	return Record{Data: data}
}

func coerce(v any, typ string) any {
	if v == nil {
		return nil
	}
	switch typ {
	case "number":
		switch n := v.(type) {
		case float64, int, int64:
			return n
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
		return nil
	case "boolean":
		switch b := v.(type) {
		case bool:
			return b
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "yes", "1":
				return true
			case "false", "no", "0":
				return false
			}
		}
		return nil
	case "list":
		if s, ok := v.(string); ok {
			return []any{s}
		}
	}
	return v
}
