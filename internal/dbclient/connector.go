package dbclient

import (
	"context"
	"fmt"

	"surveys/internal/domain"
)

// Column describes one destination column. Type is one of
// "text" | "number" | "boolean" | "list" | "datetime".
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Connector abstracts writing rows into an external database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// InsertRows writes rows into table (a collection for MongoDB), creating
	// the table or any missing columns first. It returns how many rows were
	// written before an error, if any.
	InsertRows(ctx context.Context, table string, columns []Column, rows []map[string]any) (int, error)

	// Close closes the connection.
	Close() error
}

// NewConnector creates a Connector for the given sink connection.
// The password must be provided separately (from the secret store).
func NewConnector(ctx context.Context, conn *domain.SinkConnection, password string) (Connector, error) {
	switch conn.Driver {
	case domain.SinkDriverSQLite:
		return newSQLiteConnector(conn)
	case domain.SinkDriverMySQL:
		return newSQLConnector(mysqlDialect, buildMySQLDSN(conn, password))
	case domain.SinkDriverPostgres:
		return newSQLConnector(postgresDialect, buildPostgresDSN(conn, password))
	case domain.SinkDriverMongoDB:
		return newMongoConnector(ctx, conn, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
