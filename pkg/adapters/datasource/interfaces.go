package datasource

import (
	"context"
	"time"
)

// Querier executes a parametrized read query and returns normalized rows.
// Queries are written with $1, $2, ... placeholders; the implementation
// rebinds them for the underlying driver.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// CatalogQuery describes a metadata query and the result columns that hold
// the column name and its data type.
type CatalogQuery struct {
	SQL        string
	Args       []any
	NameColumn string
	TypeColumn string
}

// Dialect hides the SQL differences between the supported engines.
// Every statement is written once against these hooks.
type Dialect interface {
	// Name is the configuration value selecting this dialect ("mysql", ...).
	Name() string

	// DriverName is the database/sql driver registered for this dialect.
	DriverName() string

	// DSN builds the driver connection string.
	DSN(cfg Config) (string, error)

	// DefaultSchema is the catalog schema used when the config names none.
	DefaultSchema(cfg Config) string

	// Rebind converts $N placeholders to the driver syntax, reordering or
	// duplicating args where the driver only understands positional markers.
	Rebind(query string, args []any) (string, []any)

	// QuoteIdent quotes a validated identifier.
	QuoteIdent(name string) string

	// Paginate renders the row-window clause. limit and offset are
	// placeholders or literals.
	Paginate(limit, offset string) string

	// DateOf truncates a temporal expression to its date.
	DateOf(expr string) string

	// SecondsBetween returns the number of seconds from one temporal
	// expression to another.
	SecondsBetween(from, to string) string

	// Today is the current date.
	Today() string

	// DaysAgo is the timestamp n days before now.
	DaysAgo(n int) string

	// Catalog returns the metadata-catalog query listing a table's columns.
	Catalog(schema, table string) CatalogQuery

	// Describe returns the lighter "describe table" fallback query.
	// table must already be validated.
	Describe(table string) CatalogQuery

	// UnknownColumn reports whether err means a referenced column does not
	// exist. structured is true when the decision came from a driver error
	// code rather than from matching the message text.
	UnknownColumn(err error) (matched bool, structured bool)
}

// Config holds the connection options shared by all dialects.
type Config struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	Schema          string
	SSLMode         string
	Path            string // sqlite file path, ":memory:" allowed
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
	QueryTimeout    time.Duration
}
