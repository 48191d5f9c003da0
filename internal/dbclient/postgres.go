package dbclient

import (
	"fmt"

	"surveys/internal/domain"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	driverName:  "postgres",
	quote:       quoteDouble,
	placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
	types: map[string]string{
		"number":   "DOUBLE PRECISION",
		"boolean":  "BOOLEAN",
		"datetime": "TIMESTAMPTZ",
	},
	textType: "TEXT",
}

// buildPostgresDSN constructs a Postgres connection string from a SinkConnection.
func buildPostgresDSN(conn *domain.SinkConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		conn.Host, port, conn.Username, password, conn.Database, sslMode,
	)
}
