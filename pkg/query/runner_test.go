package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
)

// scriptedQuerier fails every query that mentions one of the missing
// expressions with an unknown-column error and records what ran.
type scriptedQuerier struct {
	missing  []string
	err      error
	catalog  []datasource.Row
	executed []string
}

func (s *scriptedQuerier) Query(_ context.Context, query string, _ ...any) ([]datasource.Row, error) {
	if strings.Contains(query, "information_schema") {
		return s.catalog, nil
	}
	s.executed = append(s.executed, query)
	if s.err != nil {
		return nil, s.err
	}
	for _, m := range s.missing {
		if strings.Contains(query, m) {
			return nil, &driver.MySQLError{Number: 1054, Message: fmt.Sprintf("Unknown column '%s' in 'field list'", m)}
		}
	}
	return []datasource.Row{datasource.RowOf("id", int64(1))}, nil
}

func materialsStatement() *Statement {
	return New(mysql.Dialect{}, "orders.materials").
		Select(
			As("m.id", "id"),
			Optional(1, "m.vydano_mnozstvi", "vydano_mnozstvi", "0").On("material", "vydano_mnozstvi"),
			Optional(2, "mat.cena_nakup", "cena_nakup", "0").On("sklad_material", "cena_nakup"),
		).
		From("material m LEFT JOIN sklad_material mat ON m.material_id = mat.id").
		Where("m.order_id = ?", int64(7))
}

func TestRunner_PrimarySucceeds(t *testing.T) {
	q := &scriptedQuerier{}
	rows, err := NewRunner(nil, zaptest.NewLogger(t)).Run(context.Background(), q, materialsStatement())

	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, q.executed, 1)
}

func TestRunner_FallsBackOnUnknownColumn(t *testing.T) {
	q := &scriptedQuerier{missing: []string{"m.vydano_mnozstvi"}}
	rows, err := NewRunner(nil, zaptest.NewLogger(t)).Run(context.Background(), q, materialsStatement())

	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.Len(t, q.executed, 2)
	assert.Contains(t, q.executed[1], "0 AS vydano_mnozstvi")
	assert.Contains(t, q.executed[1], "mat.cena_nakup AS cena_nakup")
}

func TestRunner_SecondFallbackTier(t *testing.T) {
	q := &scriptedQuerier{missing: []string{"m.vydano_mnozstvi", "mat.cena_nakup"}}
	_, err := NewRunner(nil, zaptest.NewLogger(t)).Run(context.Background(), q, materialsStatement())

	require.NoError(t, err)
	require.Len(t, q.executed, 3)
	assert.Contains(t, q.executed[2], "0 AS cena_nakup")
}

func TestRunner_ExhaustedTiersIsSchemaMismatch(t *testing.T) {
	q := &scriptedQuerier{missing: []string{"m.order_id"}}
	_, err := NewRunner(nil, zaptest.NewLogger(t)).Run(context.Background(), q, materialsStatement())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
	assert.Len(t, q.executed, 3)

	var myErr *driver.MySQLError
	require.ErrorAs(t, err, &myErr)
	assert.Equal(t, uint16(1054), myErr.Number)
}

func TestRunner_OtherErrorsAreDatabaseErrors(t *testing.T) {
	q := &scriptedQuerier{err: errors.New("driver: bad connection")}
	_, err := NewRunner(nil, zaptest.NewLogger(t)).Run(context.Background(), q, materialsStatement())

	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.Len(t, q.executed, 1)
}

func TestRunner_ValidationBeforeExecution(t *testing.T) {
	q := &scriptedQuerier{}
	_, err := NewRunner(nil, zaptest.NewLogger(t)).Run(context.Background(), q, materialsStatement().Limit(0))

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, q.executed)
}

func TestRunner_ProactivelySkipsKnownMissingColumns(t *testing.T) {
	q := &scriptedQuerier{
		catalog: []datasource.Row{
			datasource.RowOf("column_name", "id", "data_type", "int"),
			datasource.RowOf("column_name", "order_id", "data_type", "int"),
		},
	}
	introspector := schema.NewIntrospector(mysql.Dialect{}, "emistr", zaptest.NewLogger(t))

	_, err := NewRunner(introspector, zaptest.NewLogger(t)).Run(context.Background(), q, materialsStatement())

	require.NoError(t, err)
	require.Len(t, q.executed, 1)
	assert.Contains(t, q.executed[0], "0 AS vydano_mnozstvi")
	assert.Contains(t, q.executed[0], "0 AS cena_nakup")
}
