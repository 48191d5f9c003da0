package dbclient

import (
	"surveys/internal/domain"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	driverName:  "sqlite",
	quote:       quoteDouble,
	placeholder: func(int) string { return "?" },
	types: map[string]string{
		"number":   "REAL",
		"boolean":  "INTEGER",
		"datetime": "DATETIME",
	},
	textType: "TEXT",
}

// newSQLiteConnector creates a connector for an external SQLite file.
// Opens in WAL mode with busy timeout for concurrent access.
func newSQLiteConnector(conn *domain.SinkConnection) (*sqlConnector, error) {
	dsn := conn.Host + "?_journal_mode=WAL&_busy_timeout=5000"
	return newSQLConnector(sqliteDialect, dsn)
}
