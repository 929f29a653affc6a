// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Roster   RosterConfig
	Columns  ColumnConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the optional run history database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Run history is off when empty.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether run history should be recorded.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// RosterConfig holds roster processing settings.
type RosterConfig struct {
	// CatalogPath is a YAML file of courses offered for exclusion (default: built-in list)
	CatalogPath string `env:"ROSTER_CATALOG"`

	// RequireNoTutor is the initial state of the "no personal tutor" filter (default: true)
	RequireNoTutor bool `env:"ROSTER_REQUIRE_NO_TUTOR" default:"true"`

	// MaxFileSize is the maximum accepted upload in bytes (default: 20MB)
	MaxFileSize int64 `env:"ROSTER_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the number of rosters processed at once (default: 1)
	MaxConcurrent int `env:"ROSTER_MAX_CONCURRENT" default:"1"`

	// MaxWait is how long a run waits for a free slot (default: 10s)
	MaxWait time.Duration `env:"ROSTER_MAX_WAIT" default:"10s"`

	// SessionTTL is how long an idle result stays available (default: 1h)
	SessionTTL time.Duration `env:"ROSTER_SESSION_TTL" default:"1h"`

	// SweepInterval is how often expired results are dropped (default: 10m)
	SweepInterval time.Duration `env:"ROSTER_SWEEP_INTERVAL" default:"10m"`
}

// ColumnConfig names the source headers of each roster field.
type ColumnConfig struct {
	StudentID     string `env:"ROSTER_COL_STUDENT_ID" default:"StudentID2"`
	FirstName     string `env:"ROSTER_COL_FIRST_NAME" default:"FirstForename2"`
	LastName      string `env:"ROSTER_COL_LAST_NAME" default:"Surname2"`
	CourseTitle   string `env:"ROSTER_COL_COURSE_TITLE" default:"CourseTitle2"`
	CourseLevel   string `env:"ROSTER_COL_COURSE_LEVEL" default:"CourseSession"`
	PersonalTutor string `env:"ROSTER_COL_PERSONAL_TUTOR" default:"Textbox239"`
}

// SecurityConfig holds settings for the HTTP edge.
type SecurityConfig struct {
	// TrustedProxies are CIDRs or IPs whose X-Real-IP / X-Forwarded-For
	// headers are believed (comma-separated)
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys guard the /api routes when set (comma-separated). The pages
	// stay open; they are meant for the local network.
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
