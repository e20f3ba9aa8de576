// Package query composes the parametrized read queries of the eMISTR tools.
//
// A Statement is written once with "?" markers in its predicates. Markers
// are numbered ($1, $2, ...) in the order predicates are added, pagination
// comes last, and the dialect rebinds the final text for its driver.
// Columns tagged with a fallback tier are replaced by a literal default in
// the reduced variants tried after an unknown-column failure.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
)

// Column is one select-list entry.
type Column struct {
	// Expr is the SQL expression, e.g. "m.vydano_mnozstvi".
	Expr string
	// Alias is the result key. Empty means the expression is selected as is.
	Alias string
	// Tier > 0 marks an optional column. Candidate k replaces every column
	// with 0 < Tier <= k by Default.
	Tier int
	// Default is the literal selected in place of a dropped column.
	Default string
	// Table and Name identify the underlying column for proactive checks.
	Table string
	Name  string
}

// Col is a required column.
func Col(expr string) Column {
	return Column{Expr: expr}
}

// As is a required column with an alias.
func As(expr, alias string) Column {
	return Column{Expr: expr, Alias: alias}
}

// Optional is a column that may be missing from older eMISTR schemas. It is
// replaced by def from fallback tier onwards.
func Optional(tier int, expr, alias, def string) Column {
	return Column{Expr: expr, Alias: alias, Tier: tier, Default: def}
}

// On records the physical column so the Runner can check it before
// executing.
func (c Column) On(table, name string) Column {
	c.Table, c.Name = table, name
	return c
}

// Candidate is one executable variant of a Statement.
type Candidate struct {
	Tier int
	SQL  string
	Args []any
	// Requires lists the optional columns this variant still selects.
	Requires []Column
}

// Statement is a SELECT under construction.
type Statement struct {
	name    string
	dialect datasource.Dialect

	columns []Column
	from    string
	where   []string
	args    []any
	groupBy string
	orderBy string

	limit     int
	hasLimit  bool
	offset    int
	hasOffset bool
}

// New starts a statement. name identifies it in logs and errors.
func New(dialect datasource.Dialect, name string) *Statement {
	return &Statement{name: name, dialect: dialect}
}

func (s *Statement) Name() string { return s.name }

func (s *Statement) Dialect() datasource.Dialect { return s.dialect }

func (s *Statement) Select(cols ...Column) *Statement {
	s.columns = append(s.columns, cols...)
	return s
}

// From sets the FROM clause including joins.
func (s *Statement) From(from string) *Statement {
	s.from = from
	return s
}

// Where appends one predicate bound to exactly one argument. Every "?" in
// clause refers to that argument.
func (s *Statement) Where(clause string, arg any) *Statement {
	s.args = append(s.args, arg)
	s.where = append(s.where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(s.args))))
	return s
}

// WhereExpr appends a predicate that takes no argument.
func (s *Statement) WhereExpr(clause string) *Statement {
	s.where = append(s.where, clause)
	return s
}

func (s *Statement) GroupBy(expr string) *Statement {
	s.groupBy = expr
	return s
}

func (s *Statement) OrderBy(expr string) *Statement {
	s.orderBy = expr
	return s
}

// Limit bounds the row count. It is bound after every predicate argument.
func (s *Statement) Limit(n int) *Statement {
	s.limit, s.hasLimit = n, true
	return s
}

// Offset skips rows. It is only emitted together with a limit.
func (s *Statement) Offset(n int) *Statement {
	s.offset, s.hasOffset = n, true
	return s
}

// MaxTier is the number of fallback variants after the primary one.
func (s *Statement) MaxTier() int {
	top := 0
	for _, c := range s.columns {
		if c.Tier > top {
			top = c.Tier
		}
	}
	return top
}

// Candidates returns the primary query followed by its reduced variants.
func (s *Statement) Candidates() ([]Candidate, error) {
	if s.hasLimit && s.limit <= 0 {
		return nil, apperrors.Validation("limit musí být kladné číslo")
	}
	if s.hasOffset && s.offset < 0 {
		return nil, apperrors.Validation("offset nesmí být záporný")
	}
	if len(s.columns) == 0 || s.from == "" {
		return nil, apperrors.Internal(fmt.Errorf("statement %s has no select list or source", s.name))
	}

	maxTier := s.MaxTier()
	out := make([]Candidate, 0, maxTier+1)
	for tier := 0; tier <= maxTier; tier++ {
		sql, args, requires := s.build(tier)
		out = append(out, Candidate{Tier: tier, SQL: sql, Args: args, Requires: requires})
	}
	return out, nil
}

func (s *Statement) build(tier int) (string, []any, []Column) {
	var b strings.Builder
	var requires []Column

	b.WriteString("SELECT ")
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		switch {
		case c.Tier > 0 && c.Tier <= tier:
			b.WriteString(c.Default)
			b.WriteString(" AS ")
			b.WriteString(c.Alias)
		case c.Alias != "":
			b.WriteString(c.Expr)
			b.WriteString(" AS ")
			b.WriteString(c.Alias)
		default:
			b.WriteString(c.Expr)
		}
		if c.Tier > tier {
			requires = append(requires, c)
		}
	}

	b.WriteString(" FROM ")
	b.WriteString(s.from)

	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.where, " AND "))
	}
	if s.groupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(s.groupBy)
	}
	if s.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.orderBy)
	}

	args := make([]any, len(s.args), len(s.args)+2)
	copy(args, s.args)
	if s.hasLimit {
		args = append(args, s.limit)
		limit := "$" + strconv.Itoa(len(args))
		offset := "0"
		if s.hasOffset {
			args = append(args, s.offset)
			offset = "$" + strconv.Itoa(len(args))
		}
		b.WriteString(" ")
		b.WriteString(s.dialect.Paginate(limit, offset))
	}

	return b.String(), args, requires
}
