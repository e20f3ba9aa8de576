// Package sqlite registers an SQLite dialect backed by modernc.org/sqlite.
// It serves local demos against an exported copy of the production data
// and the end-to-end tests.
package sqlite

import (
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
)

// Dialect implements datasource.Dialect for SQLite.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func init() {
	datasource.Register(datasource.DialectInfo{
		Name:        "sqlite",
		DisplayName: "SQLite",
	}, Dialect{})
}

func (Dialect) Name() string       { return "sqlite" }
func (Dialect) DriverName() string { return "sqlite" }

// DSN returns the database file path with a busy timeout. Paths already in
// URI form are used as given.
func (Dialect) DSN(cfg datasource.Config) (string, error) {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path, nil
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	return path + "?" + q.Encode(), nil
}

func (Dialect) DefaultSchema(datasource.Config) string { return "main" }

// Rebind expands $N to "?" because SQLite treats $1 as a named parameter.
func (Dialect) Rebind(query string, args []any) (string, []any) {
	return datasource.RebindQuestion(query, args)
}

func (Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) Paginate(limit, offset string) string {
	return fmt.Sprintf("LIMIT %s OFFSET %s", limit, offset)
}

func (Dialect) DateOf(expr string) string {
	return fmt.Sprintf("DATE(%s)", expr)
}

func (Dialect) SecondsBetween(from, to string) string {
	return fmt.Sprintf("((julianday(%s) - julianday(%s)) * 86400.0)", to, from)
}

func (Dialect) Today() string { return "DATE('now')" }

func (Dialect) DaysAgo(n int) string {
	return fmt.Sprintf("DATETIME('now', '-%d days')", n)
}

// Catalog uses the pragma_table_info table-valued function. schema is
// ignored; attached databases are not used.
func (Dialect) Catalog(_, table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL:        `SELECT name AS column_name, type AS data_type FROM pragma_table_info($1) ORDER BY cid`,
		Args:       []any{table},
		NameColumn: "column_name",
		TypeColumn: "data_type",
	}
}

func (d Dialect) Describe(table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL:        "PRAGMA table_info(" + d.QuoteIdent(table) + ")",
		NameColumn: "name",
		TypeColumn: "type",
	}
}

func (Dialect) UnknownColumn(err error) (bool, bool) {
	if err == nil {
		return false, false
	}
	return strings.Contains(err.Error(), "no such column"), false
}
