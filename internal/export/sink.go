package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"surveys/internal/dbclient"
	"surveys/internal/domain"
	"surveys/internal/secret"
)

// ── Sink ───────────────────────────────────────────────────
// A Sink copies exported records into a target system.

// Sink writes records to a target system.
type Sink interface {
	Name() string
	Write(ctx context.Context, schema *Schema, records []Record) (int, error)
	Close() error
}

// SinkConfig is a declarative sink definition.
type SinkConfig struct {
	Type       string                 `json:"type"` // "database" | "jsonl"
	Name       string                 `json:"name,omitempty"`
	Connection *domain.SinkConnection `json:"connection,omitempty"`
	Path       string                 `json:"path,omitempty"`
}

// SinkFactory opens a sink from its config. Secrets resolve passwords.
type SinkFactory func(ctx context.Context, cfg SinkConfig, secrets secret.SecretStore) (Sink, error)

// ── Sink Registry ──────────────────────────────────────────

var (
	registryMu sync.RWMutex
	registry   = map[string]SinkFactory{}
)

// RegisterSink registers a sink factory under typ.
func RegisterSink(typ string, f SinkFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = f
}

// OpenSink opens a sink of a registered type.
func OpenSink(ctx context.Context, cfg SinkConfig, secrets secret.SecretStore) (Sink, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sink type: %q", cfg.Type)
	}
	return f(ctx, cfg, secrets)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func init() {
	RegisterSink("database", openDatabaseSink)
	RegisterSink("jsonl", openJSONLSink)
}

// ── Database Sink ──────────────────────────────────────────
// Writes one row per record into a MySQL, Postgres or SQLite table, or one
// document into a MongoDB collection.

// DatabaseSink implements Sink over a dbclient.Connector.
type DatabaseSink struct {
	name  string
	table string
	conn  dbclient.Connector
}

// NewDatabaseSink wraps an open connector.
func NewDatabaseSink(name, table string, conn dbclient.Connector) *DatabaseSink {
	return &DatabaseSink{name: name, table: table, conn: conn}
}

func openDatabaseSink(ctx context.Context, cfg SinkConfig, secrets secret.SecretStore) (Sink, error) {
	if cfg.Connection == nil {
		return nil, fmt.Errorf("database sink: connection required")
	}
	var password string
	if cfg.Connection.PasswordKey != "" && secrets != nil {
		v, err := secrets.Get(cfg.Connection.PasswordKey)
		if err != nil {
			return nil, fmt.Errorf("database sink: read password: %w", err)
		}
		password = string(v)
	}
	conn, err := dbclient.NewConnector(ctx, cfg.Connection, password)
	if err != nil {
		return nil, fmt.Errorf("database sink: %w", err)
	}
	table := cfg.Connection.Table
	if table == "" {
		table = "survey_responses"
	}
	name := cfg.Name
	if name == "" {
		name = string(cfg.Connection.Driver) + ":" + table
	}
	return NewDatabaseSink(name, table, conn), nil
}

func (s *DatabaseSink) Name() string { return s.name }

func (s *DatabaseSink) Write(ctx context.Context, schema *Schema, records []Record) (int, error) {
	cols := make([]dbclient.Column, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = dbclient.Column{Name: f.Name, Type: f.Type}
	}
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = r.Data
	}
	return s.conn.InsertRows(ctx, s.table, cols, rows)
}

func (s *DatabaseSink) Close() error { return s.conn.Close() }

// ── JSONL Sink ─────────────────────────────────────────────
// Appends one JSON object per record to a file.

// JSONLSink implements Sink for a newline-delimited JSON file.
type JSONLSink struct {
	mu   sync.Mutex
	name string
	f    *os.File
}

func openJSONLSink(_ context.Context, cfg SinkConfig, _ secret.SecretStore) (Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("jsonl sink: path required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("jsonl sink: create directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonl sink: %w", err)
	}
	name := cfg.Name
	if name == "" {
		name = "jsonl:" + filepath.Base(cfg.Path)
	}
	return &JSONLSink{name: name, f: f}, nil
}

func (s *JSONLSink) Name() string { return s.name }

func (s *JSONLSink) Write(ctx context.Context, schema *Schema, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.f)
	written := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		row := make(map[string]any, len(schema.Fields))
		for _, name := range schema.FieldNames() {
			row[name] = r.Data[name]
		}
		if err := enc.Encode(row); err != nil {
			return written, fmt.Errorf("encode record: %w", err)
		}
		written++
	}
	return written, nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
