package domain

// SinkDriver is the kind of external store completed submissions are copied to.
type SinkDriver string

const (
	SinkDriverMySQL    SinkDriver = "mysql"
	SinkDriverPostgres SinkDriver = "postgres"
	SinkDriverMongoDB  SinkDriver = "mongodb"
	SinkDriverSQLite   SinkDriver = "sqlite"
)

// SinkConnection holds the metadata for connecting to an external database.
// The password is never stored here; it is looked up in the secret store
// under PasswordKey.
type SinkConnection struct {
	Name        string     `json:"name"`
	Driver      SinkDriver `json:"driver"`
	Host        string     `json:"host"`     // hostname, URI (mongo) or file path (sqlite)
	Port        int        `json:"port"`     // 0 picks the driver default
	Database    string     `json:"database"` // db name, empty for sqlite
	Username    string     `json:"username"`
	SSLMode     string     `json:"sslMode"`
	Table       string     `json:"table"`     // table or collection receiving rows
	ExtraJSON   string     `json:"extraJson"` // driver-specific options
	PasswordKey string     `json:"passwordKey,omitempty"`
}
