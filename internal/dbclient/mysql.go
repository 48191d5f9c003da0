package dbclient

import (
	"fmt"
	"strings"

	"surveys/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	driverName:  "mysql",
	quote:       func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
	placeholder: func(int) string { return "?" },
	types: map[string]string{
		"number":   "DOUBLE",
		"boolean":  "BOOLEAN",
		"datetime": "DATETIME(6)",
	},
	textType: "TEXT",
}

// buildMySQLDSN constructs a MySQL DSN from a SinkConnection.
func buildMySQLDSN(conn *domain.SinkConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		conn.Username, password, conn.Host, port, conn.Database,
	)
	if conn.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}
