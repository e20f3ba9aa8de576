package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type driverError struct{ number int }

func (e *driverError) Error() string { return fmt.Sprintf("driver error %d", e.number) }

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"validation", Validation("limit must be positive"), "validation_error"},
		{"not found", NotFound("Zakázka nenalezena"), "entity_not_found"},
		{"schema mismatch", SchemaMismatch("order_materials", errors.New("Unknown column")), "schema_mismatch"},
		{"database", Database(errors.New("connection refused")), "database_error"},
		{"internal", Internal(errors.New("boom")), "internal_error"},
		{"plain error", errors.New("boom"), "internal_error"},
		{"wrapped validation", fmt.Errorf("parse: %w", Validation("bad")), "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := &driverError{number: 1054}
	err := SchemaMismatch("order_materials", fmt.Errorf("query failed: %w", cause))

	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	assert.False(t, errors.Is(err, ErrDatabase))

	var target *driverError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, 1054, target.number)
}

func TestDatabase_KeepsClassifiedErrors(t *testing.T) {
	nf := NotFound("Zaměstnanec nenalezen")
	assert.Same(t, nf, Database(nf))

	err := Database(context.DeadlineExceeded)
	assert.True(t, errors.Is(err, ErrDatabase))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Nil(t, Database(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Zakázka nenalezena", UserMessage(NotFound("Zakázka nenalezena")))
	assert.Equal(t, "limit musí být kladné číslo", UserMessage(Validation("limit musí být kladné číslo")))
	assert.Empty(t, UserMessage(Database(errors.New("password=secret rejected"))))
	assert.Empty(t, UserMessage(errors.New("raw")))
}
