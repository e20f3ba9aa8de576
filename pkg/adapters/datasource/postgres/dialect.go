package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
)

// undefinedColumn is SQLSTATE 42703.
const undefinedColumn = "42703"

var undefinedColumnMessage = regexp.MustCompile(`column "[^"]+" does not exist`)

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// Dialect implements datasource.Dialect for PostgreSQL through pgx.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func init() {
	datasource.Register(datasource.DialectInfo{
		Name:        "postgres",
		DisplayName: "PostgreSQL",
	}, Dialect{})
}

func (Dialect) Name() string       { return "postgres" }
func (Dialect) DriverName() string { return "pgx" }

func (Dialect) DSN(cfg datasource.Config) (string, error) {
	if cfg.Host == "" {
		return "", fmt.Errorf("host is required")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("database is required")
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort()
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	u := &url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     datasource.ResolveHostForDocker(cfg.Host) + ":" + strconv.Itoa(port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}, "application_name": {"emistr-mcp"}}.Encode(),
	}
	return u.String(), nil
}

func (Dialect) DefaultSchema(datasource.Config) string { return "public" }

// Rebind is the identity: pgx understands $N natively, including reuse.
func (Dialect) Rebind(query string, args []any) (string, []any) {
	return query, args
}

func (Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) Paginate(limit, offset string) string {
	return fmt.Sprintf("LIMIT %s OFFSET %s", limit, offset)
}

func (Dialect) DateOf(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATE)", expr)
}

func (Dialect) SecondsBetween(from, to string) string {
	return fmt.Sprintf("EXTRACT(EPOCH FROM (%s - %s))", to, from)
}

func (Dialect) Today() string { return "CURRENT_DATE" }

func (Dialect) DaysAgo(n int) string {
	return fmt.Sprintf("(NOW() - INTERVAL '%d days')", n)
}

func (Dialect) Catalog(schema, table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL: `SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position`,
		Args:       []any{schema, table},
		NameColumn: "column_name",
		TypeColumn: "data_type",
	}
}

// Describe reads pg_attribute, which is visible even when
// information_schema hides columns the role has no privilege on.
func (Dialect) Describe(table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL: `SELECT a.attname AS column_name, format_type(a.atttypid, a.atttypmod) AS data_type
			FROM pg_attribute a
			WHERE a.attrelid = to_regclass($1) AND a.attnum > 0 AND NOT a.attisdropped
			ORDER BY a.attnum`,
		Args:       []any{table},
		NameColumn: "column_name",
		TypeColumn: "data_type",
	}
}

func (Dialect) UnknownColumn(err error) (bool, bool) {
	if err == nil {
		return false, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedColumn, true
	}
	return undefinedColumnMessage.MatchString(err.Error()), false
}
