package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"surveys/internal/domain"
	"surveys/internal/secret"
)

// ── Pipeline ───────────────────────────────────────────────
// Orchestrates: submission → record → transform chain → every sink.

// Config is the on-disk pipeline definition.
type Config struct {
	Transforms []TransformConfig `json:"transforms,omitempty"`
	Sinks      []SinkConfig      `json:"sinks"`
}

// LoadConfig reads a pipeline definition from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse export config: %w", err)
	}
	return &cfg, nil
}

// Result is the outcome of exporting one submission.
type Result struct {
	SubmissionID string         `json:"submissionId"`
	Dropped      bool           `json:"dropped"`
	Written      map[string]int `json:"written"` // sink name → rows
	Duration     time.Duration  `json:"duration"`
	Errors       []string       `json:"errors,omitempty"`
}

// Pipeline copies completed submissions into every configured sink.
type Pipeline struct {
	Transforms []Transformer
	Sinks      []Sink
	Logger     *log.Logger
}

// NewPipeline opens every sink in cfg. On failure the sinks opened so far
// are closed again.
func NewPipeline(ctx context.Context, cfg *Config, secrets secret.SecretStore) (*Pipeline, error) {
	ts, err := BuildTransformers(cfg.Transforms)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Transforms: ts}
	for i, sc := range cfg.Sinks {
		s, err := OpenSink(ctx, sc, secrets)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("sink %d: %w", i, err)
		}
		p.Sinks = append(p.Sinks, s)
	}
	return p, nil
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Run exports one submission. Every sink is attempted even when an earlier
// one fails; the returned error joins all sink failures.
func (p *Pipeline) Run(ctx context.Context, sv *domain.Survey, sub *domain.Submission) (*Result, error) {
	start := time.Now()
	result := &Result{SubmissionID: sub.ID, Written: map[string]int{}}

	schema := SchemaFor(sv)
	rec, keep := ApplyTransformers(RecordFor(schema, sub), p.Transforms)
	if !keep {
		result.Dropped = true
		result.Duration = time.Since(start)
		return result, nil
	}
	out := deriveSchema(rec, schema, p.renames())

	var errs []error
	for _, s := range p.Sinks {
		n, err := s.Write(ctx, out, []Record{rec})
		result.Written[s.Name()] = n
		if err != nil {
			p.logf("[EXPORT] submission %s → %s failed: %v", sub.ID, s.Name(), err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", s.Name(), err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	result.Duration = time.Since(start)
	if len(errs) == 0 {
		p.logf("[EXPORT] submission %s written to %d sink(s) in %s", sub.ID, len(p.Sinks), result.Duration)
	}
	return result, errors.Join(errs...)
}

func (p *Pipeline) renames() map[string]string {
	out := map[string]string{}
	for _, t := range p.Transforms {
		if rt, ok := t.(*RenameTransform); ok {
			for k, v := range rt.Mapping {
				out[k] = v
			}
		}
	}
	return out
}

// Close closes every sink.
func (p *Pipeline) Close() error {
	var errs []error
	for _, s := range p.Sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
