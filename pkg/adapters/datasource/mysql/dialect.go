// Package mysql registers the MySQL / MariaDB dialect, the engine eMISTR
// runs on in production.
package mysql

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
)

// errBadFieldError is ER_BAD_FIELD_ERROR, "Unknown column".
const errBadFieldError = 1054

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// Dialect implements datasource.Dialect for MySQL and MariaDB.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func init() {
	datasource.Register(datasource.DialectInfo{
		Name:        "mysql",
		DisplayName: "MySQL / MariaDB",
	}, Dialect{})
}

func (Dialect) Name() string       { return "mysql" }
func (Dialect) DriverName() string { return "mysql" }

// DSN builds a go-sql-driver DSN. Temporal columns are parsed into
// time.Time and the session uses utf8mb4 so Czech text round-trips.
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

	c := driver.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(datasource.ResolveHostForDocker(cfg.Host), strconv.Itoa(port))
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Loc = time.Local
	c.Timeout = 10 * time.Second
	c.Params = map[string]string{"charset": "utf8mb4"}

	switch cfg.SSLMode {
	case "", "disable":
		c.TLSConfig = "false"
	case "require":
		c.TLSConfig = "skip-verify"
	case "verify-ca", "verify-full":
		c.TLSConfig = "true"
	default:
		return "", fmt.Errorf("unsupported ssl_mode %q for mysql", cfg.SSLMode)
	}

	return c.FormatDSN(), nil
}

// DefaultSchema is the database name: MySQL has no separate schema level.
func (Dialect) DefaultSchema(cfg datasource.Config) string { return cfg.Database }

func (Dialect) Rebind(query string, args []any) (string, []any) {
	return datasource.RebindQuestion(query, args)
}

func (Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) Paginate(limit, offset string) string {
	return fmt.Sprintf("LIMIT %s OFFSET %s", limit, offset)
}

func (Dialect) DateOf(expr string) string {
	return fmt.Sprintf("DATE(%s)", expr)
}

func (Dialect) SecondsBetween(from, to string) string {
	return fmt.Sprintf("TIMESTAMPDIFF(SECOND, %s, %s)", from, to)
}

func (Dialect) Today() string { return "CURDATE()" }

func (Dialect) DaysAgo(n int) string {
	return fmt.Sprintf("DATE_SUB(NOW(), INTERVAL %d DAY)", n)
}

func (Dialect) Catalog(schema, table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL: `SELECT COLUMN_NAME AS column_name, DATA_TYPE AS data_type
			FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = $1 AND TABLE_NAME = $2
			ORDER BY ORDINAL_POSITION`,
		Args:       []any{schema, table},
		NameColumn: "column_name",
		TypeColumn: "data_type",
	}
}

func (d Dialect) Describe(table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL:        "SHOW COLUMNS FROM " + d.QuoteIdent(table),
		NameColumn: "Field",
		TypeColumn: "Type",
	}
}

func (Dialect) UnknownColumn(err error) (bool, bool) {
	if err == nil {
		return false, false
	}
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errBadFieldError, true
	}
	return strings.Contains(err.Error(), "Unknown column"), false
}
