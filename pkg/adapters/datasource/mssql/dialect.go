package mssql

import (
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
)

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// Dialect implements datasource.Dialect for Microsoft SQL Server.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}

func init() {
	datasource.Register(datasource.DialectInfo{
		Name:        "mssql",
		DisplayName: "Microsoft SQL Server",
	}, Dialect{})
}

func (Dialect) Name() string       { return "mssql" }
func (Dialect) DriverName() string { return "sqlserver" }

// DSN builds a sqlserver:// URL with SQL authentication.
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

	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("app name", "emistr-mcp")
	switch cfg.SSLMode {
	case "disable":
		query.Add("encrypt", "disable")
	case "", "require":
		query.Add("encrypt", "true")
		query.Add("TrustServerCertificate", "true")
	default:
		query.Add("encrypt", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", datasource.ResolveHostForDocker(cfg.Host), port),
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

func (Dialect) DefaultSchema(datasource.Config) string { return "dbo" }

func (Dialect) Rebind(query string, args []any) (string, []any) {
	return datasource.RebindNamed(query, args)
}

func (Dialect) QuoteIdent(name string) string { return quoteName(name) }

func (Dialect) Paginate(limit, offset string) string {
	return fmt.Sprintf("OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", offset, limit)
}

func (Dialect) DateOf(expr string) string {
	return fmt.Sprintf("CAST(%s AS DATE)", expr)
}

func (Dialect) SecondsBetween(from, to string) string {
	return fmt.Sprintf("DATEDIFF(SECOND, %s, %s)", from, to)
}

func (Dialect) Today() string { return "CAST(GETDATE() AS DATE)" }

func (Dialect) DaysAgo(n int) string {
	return fmt.Sprintf("DATEADD(DAY, -%d, GETDATE())", n)
}

func (Dialect) Catalog(schema, table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL: `SELECT COLUMN_NAME AS column_name, DATA_TYPE AS data_type
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = $1 AND TABLE_NAME = $2
			ORDER BY ORDINAL_POSITION`,
		Args:       []any{schema, table},
		NameColumn: "column_name",
		TypeColumn: "data_type",
	}
}

// Describe reads sys.columns directly, which needs only VIEW DEFINITION on
// the table rather than catalog-wide visibility.
func (Dialect) Describe(table string) datasource.CatalogQuery {
	return datasource.CatalogQuery{
		SQL: `SELECT c.name AS column_name, t.name AS data_type
			FROM sys.columns c
			JOIN sys.types t ON t.user_type_id = c.user_type_id
			WHERE c.object_id = OBJECT_ID($1)
			ORDER BY c.column_id`,
		Args:       []any{table},
		NameColumn: "column_name",
		TypeColumn: "data_type",
	}
}

func (Dialect) UnknownColumn(err error) (bool, bool) {
	return isInvalidColumn(err)
}
