package dbclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dialect captures the per-driver differences the shared SQL connector needs.
type dialect struct {
	driverName  string
	quote       func(ident string) string
	placeholder func(n int) string // n is 1-based
	types       map[string]string  // column type -> SQL type
	textType    string
}

func (d dialect) columnType(t string) string {
	if st, ok := d.types[t]; ok {
		return st
	}
	return d.textType
}

func quoteDouble(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	dialect dialect
	db      *sql.DB
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(d dialect, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driverName, err)
	}
	// Submissions trickle in one at a time; keep the pool small
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{dialect: d, db: db}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) InsertRows(ctx context.Context, table string, columns []Column, rows []map[string]any) (int, error) {
	if table == "" {
		return 0, fmt.Errorf("insert rows: table name required")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("insert rows: no columns for %s", table)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.ensureTable(ctx, table, columns); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		names[i] = c.dialect.quote(col.Name)
		marks[i] = c.dialect.placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.dialect.quote(table), strings.Join(names, ", "), strings.Join(marks, ", "))

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		args := make([]any, len(columns))
		for j, col := range columns {
			args[j] = formatValue(row[col.Name])
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

// ensureTable creates table when missing and adds any columns it lacks.
func (c *sqlConnector) ensureTable(ctx context.Context, table string, columns []Column) error {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = c.dialect.quote(col.Name) + " " + c.dialect.columnType(col.Type)
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.dialect.quote(table), strings.Join(defs, ", "))
	if _, err := c.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	existing, err := c.existingColumns(ctx, table)
	if err != nil {
		return err
	}
	for _, col := range columns {
		if existing[strings.ToLower(col.Name)] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			c.dialect.quote(table), c.dialect.quote(col.Name), c.dialect.columnType(col.Type))
		if _, err := c.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, col.Name, err)
		}
	}
	return nil
}

// existingColumns reads the column set from an empty result, which works
// the same on every driver.
func (c *sqlConnector) existingColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", c.dialect.quote(table)))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	out := make(map[string]bool, len(cols))
	for _, name := range cols {
		out[strings.ToLower(name)] = true
	}
	return out, nil
}

// formatValue converts a record value into something every driver accepts.
// Lists and objects are stored as JSON text.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int64, int32, time.Time:
		return val
	case []byte:
		return string(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
