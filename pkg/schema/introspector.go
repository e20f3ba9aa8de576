// Package schema discovers which optional columns the connected eMISTR
// database actually has. eMISTR installations differ by version, so queries
// consult the Introspector before (or after) touching optional columns.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/logging"
)

// identPattern is the whitelist for every table or column name that may be
// interpolated into SQL text.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// preferredTemporal lists the time column names eMISTR uses, in order of
// preference.
var preferredTemporal = []string{"datum", "date", "datumcas", "datetime", "ts", "timestamp"}

// ValidIdentifier reports whether name is safe to interpolate into SQL.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Column is one column of an introspected table.
type Column struct {
	Name string
	Type string
}

// Table is the cached column list of one table, in catalog order.
type Table struct {
	Columns []Column
	byName  map[string]Column
}

func newTable(cols []Column) *Table {
	t := &Table{Columns: cols, byName: make(map[string]Column, len(cols))}
	for _, c := range cols {
		t.byName[strings.ToLower(c.Name)] = c
	}
	return t
}

// Has reports whether the table has the column. Matching is case-insensitive,
// as it is in MySQL and SQL Server.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[strings.ToLower(name)]
	return ok
}

// Introspector caches table metadata for the lifetime of the process.
// Only successful lookups are cached; a failed lookup is retried by the next
// caller.
type Introspector struct {
	dialect datasource.Dialect
	schema  string
	logger  *zap.Logger

	mu     sync.RWMutex
	tables map[string]*Table
	group  singleflight.Group
}

// NewIntrospector creates an Introspector for the tables of one schema.
func NewIntrospector(dialect datasource.Dialect, schemaName string, logger *zap.Logger) *Introspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introspector{
		dialect: dialect,
		schema:  schemaName,
		logger:  logger.Named("schema"),
		tables:  make(map[string]*Table),
	}
}

// Lookup returns the columns of table. ok is false when neither the catalog
// nor the describe fallback could be read; the caller must then assume
// optional columns are missing. A nil Introspector knows nothing.
func (i *Introspector) Lookup(ctx context.Context, q datasource.Querier, table string) (*Table, bool) {
	if i == nil {
		return nil, false
	}
	if !ValidIdentifier(table) {
		i.logger.Warn("Refusing to introspect table with invalid name", zap.String("table", table))
		return nil, false
	}

	i.mu.RLock()
	t, ok := i.tables[table]
	i.mu.RUnlock()
	if ok {
		return t, true
	}

	v, err, _ := i.group.Do(table, func() (any, error) {
		i.mu.RLock()
		cached, ok := i.tables[table]
		i.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := i.load(ctx, q, table)
		if err != nil {
			return nil, err
		}

		i.mu.Lock()
		i.tables[table] = loaded
		i.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		i.logger.Warn("Schema introspection failed",
			zap.String("table", table),
			zap.String("error", logging.SanitizeError(err)))
		return nil, false
	}
	return v.(*Table), true
}

// ColumnsPresent returns the subset of candidates that exist in table, keyed
// by the candidate spelling.
func (i *Introspector) ColumnsPresent(ctx context.Context, q datasource.Querier, table string, candidates ...string) map[string]bool {
	present := make(map[string]bool, len(candidates))
	t, ok := i.Lookup(ctx, q, table)
	if !ok {
		return present
	}
	for _, c := range candidates {
		if t.Has(c) {
			present[c] = true
		}
	}
	return present
}

// TemporalColumn picks the column that timestamps rows of table: a known
// eMISTR name when present, otherwise the first date or time typed column.
func (i *Introspector) TemporalColumn(ctx context.Context, q datasource.Querier, table string) (string, bool) {
	t, ok := i.Lookup(ctx, q, table)
	if !ok {
		return "", false
	}
	for _, name := range preferredTemporal {
		if c, ok := t.byName[name]; ok {
			return c.Name, true
		}
	}
	for _, c := range t.Columns {
		if datasource.IsTemporalType(c.Type) {
			return c.Name, true
		}
	}
	return "", false
}

// Reset drops every cached table.
func (i *Introspector) Reset() {
	i.mu.Lock()
	i.tables = make(map[string]*Table)
	i.mu.Unlock()
}

func (i *Introspector) load(ctx context.Context, q datasource.Querier, table string) (*Table, error) {
	cols, catErr := i.run(ctx, q, i.dialect.Catalog(i.schema, table))
	if catErr == nil && len(cols) > 0 {
		return newTable(cols), nil
	}
	if catErr != nil {
		i.logger.Debug("Catalog query failed, trying describe",
			zap.String("table", table),
			zap.String("error", logging.SanitizeError(catErr)))
	}

	cols, err := i.run(ctx, q, i.dialect.Describe(table))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns found for %s", table)
	}
	return newTable(cols), nil
}

func (i *Introspector) run(ctx context.Context, q datasource.Querier, cq datasource.CatalogQuery) ([]Column, error) {
	rows, err := q.Query(ctx, cq.SQL, cq.Args...)
	if err != nil {
		return nil, err
	}

	cols := make([]Column, 0, len(rows))
	for _, row := range rows {
		name, _ := row.Value(cq.NameColumn).(string)
		if !ValidIdentifier(name) {
			i.logger.Warn("Skipping column with invalid name", zap.String("column", name))
			continue
		}
		typ, _ := row.Value(cq.TypeColumn).(string)
		cols = append(cols, Column{Name: name, Type: typ})
	}
	return cols, nil
}
