package export

import (
	"fmt"
	"sort"
)

// ── Transformer ────────────────────────────────────────────
// Transformers reshape a record between the submission and the sinks.
// Each takes a record and returns a (possibly modified) record and whether
// to keep it.

// Transformer processes a single record.
// Returns (transformed record, keep). If keep is false, the record is dropped.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// TransformConfig is a declarative transform definition.
type TransformConfig struct {
	Type   string         `json:"type"` // "rename" | "select" | "drop_empty"
	Config map[string]any `json:"config,omitempty"`
}

// ── Built-in Transforms ────────────────────────────────────

// RenameTransform renames fields in a record.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	for old, renamed := range t.Mapping {
		if v, ok := r.Data[old]; ok {
			r.Data[renamed] = v
			delete(r.Data, old)
		}
	}
	return r, true
}

// SelectTransform keeps only the specified fields.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool) {
	filtered := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r.Data[f]; ok {
			filtered[f] = v
		}
	}
	r.Data = filtered
	return r, true
}

// DropEmptyTransform removes fields whose value is nil or "". Respondents
// skip whole pages, so most records are sparse.
type DropEmptyTransform struct{}

func (DropEmptyTransform) Transform(r Record) (Record, bool) {
	for k, v := range r.Data {
		if v == nil {
			delete(r.Data, k)
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			delete(r.Data, k)
		}
	}
	return r, true
}

// ── Helpers ────────────────────────────────────────────────

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	for _, t := range ts {
		var keep bool
		r, keep = t.Transform(r)
		if !keep {
			return r, false
		}
	}
	return r, true
}

// BuildTransformers converts declarative configs into Transformers.
func BuildTransformers(configs []TransformConfig) ([]Transformer, error) {
	var ts []Transformer
	for i, tc := range configs {
		switch tc.Type {
		case "rename":
			mapping, ok := tc.Config["mapping"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("transform %d: rename needs a mapping object", i)
			}
			m := make(map[string]string, len(mapping))
			for k, v := range mapping {
				m[k] = fmt.Sprint(v)
			}
			ts = append(ts, &RenameTransform{Mapping: m})

		case "select":
			fields, ok := tc.Config["fields"].([]any)
			if !ok {
				return nil, fmt.Errorf("transform %d: select needs a fields list", i)
			}
			ff := make([]string, len(fields))
			for j, f := range fields {
				ff[j] = fmt.Sprint(f)
			}
			ts = append(ts, &SelectTransform{Fields: ff})

		case "drop_empty":
			ts = append(ts, DropEmptyTransform{})

		default:
			return nil, fmt.Errorf("transform %d: unknown type %q", i, tc.Type)
		}
	}
	return ts, nil
}

// deriveSchema rebuilds the schema after transforms may have renamed or
// removed fields. Known fields keep their type; new names default to text.
// Field order follows the source schema, with renamed fields appended.
func deriveSchema(r Record, source *Schema, renames map[string]string) *Schema {
	var fields []Field
	seen := map[string]bool{}
	for _, f := range source.Fields {
		if _, ok := r.Data[f.Name]; ok {
			fields = append(fields, f)
			seen[f.Name] = true
		}
	}
	typeOf := map[string]string{}
	for old, renamed := range renames {
		if f, ok := source.Field(old); ok {
			typeOf[renamed] = f.Type
		}
	}
	var extra []string
	for k := range r.Data {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		t := typeOf[k]
		if t == "" {
			t = "text"
		}
		fields = append(fields, Field{Name: k, Type: t})
	}
	return &Schema{Fields: fields}
}
