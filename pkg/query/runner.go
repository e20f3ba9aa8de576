package query

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/logging"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
)

// Runner executes a Statement, falling back to reduced variants when the
// database rejects an optional column.
type Runner struct {
	introspector *schema.Introspector
	logger       *zap.Logger
}

// NewRunner creates a Runner. introspector may be nil, in which case missing
// columns are only detected from the database error.
func NewRunner(introspector *schema.Introspector, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{introspector: introspector, logger: logger.Named("query")}
}

// Run tries the candidates of stmt in order and returns the rows of the first
// one that succeeds. Unknown-column failures move on to the next variant;
// when every variant fails that way the first error is returned as
// apperrors.ErrSchemaMismatch. Any other failure is apperrors.ErrDatabase.
func (r *Runner) Run(ctx context.Context, q datasource.Querier, stmt *Statement) ([]datasource.Row, error) {
	candidates, err := stmt.Candidates()
	if err != nil {
		return nil, err
	}

	dialect := stmt.Dialect()
	var firstErr error
	for i, c := range candidates {
		last := i == len(candidates)-1
		if !last && r.knownMissing(ctx, q, c) {
			r.logger.Debug("Skipping query variant, optional column missing from schema",
				zap.String("statement", stmt.Name()),
				zap.Int("tier", c.Tier))
			continue
		}

		rows, err := q.Query(ctx, c.SQL, c.Args...)
		if err == nil {
			if c.Tier > 0 {
				r.logger.Info("Query succeeded with reduced column set",
					zap.String("statement", stmt.Name()),
					zap.Int("tier", c.Tier))
			}
			return rows, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Database(err)
		}

		matched, structured := dialect.UnknownColumn(err)
		if !matched {
			return nil, apperrors.Database(err)
		}
		if firstErr == nil {
			firstErr = err
		}

		detection := "error code"
		if !structured {
			detection = "string pattern"
		}
		r.logger.Warn("Query referenced a missing column, trying fallback",
			zap.String("statement", stmt.Name()),
			zap.Int("tier", c.Tier),
			zap.String("detected_by", detection),
			zap.String("query", logging.SanitizeQuery(c.SQL)),
			zap.String("error", logging.SanitizeError(err)))
	}

	return nil, apperrors.SchemaMismatch(stmt.Name(), firstErr)
}

// knownMissing reports whether introspection positively shows that a column
// required by c is absent. Unknown schema never skips a variant.
func (r *Runner) knownMissing(ctx context.Context, q datasource.Querier, c Candidate) bool {
	if r.introspector == nil {
		return false
	}
	for _, col := range c.Requires {
		if col.Table == "" || col.Name == "" {
			continue
		}
		table, ok := r.introspector.Lookup(ctx, q, col.Table)
		if !ok {
			continue
		}
		if !table.Has(col.Name) {
			return true
		}
	}
	return false
}
