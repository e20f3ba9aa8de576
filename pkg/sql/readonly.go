// Package sql guards the statements and arguments that reach the database.
package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed")

	// ErrNotReadOnly indicates the statement does not start with a read keyword.
	ErrNotReadOnly = errors.New("only read statements are allowed")
)

// readKeywords are the statement openers the server ever issues: queries
// and the catalog lookups of the supported dialects.
var readKeywords = []string{"SELECT", "WITH", "SHOW", "PRAGMA"}

// modifyingCTEPattern matches CTEs that contain data-modifying operations.
// Example: WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE|MERGE)\b`)

// EnsureReadOnly rejects anything but a single read statement. A trailing
// semicolon is tolerated.
func EnsureReadOnly(query string) error {
	normalized := stripTrailingSemicolon(strings.TrimSpace(query))
	if normalized == "" {
		return fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}
	if hasSemicolonOutsideStrings(normalized) {
		return ErrMultipleStatements
	}

	first := strings.ToUpper(strings.Fields(normalized)[0])
	if first == "WITH" && modifyingCTEPattern.MatchString(normalized) {
		return fmt.Errorf("%w: data-modifying CTE", ErrNotReadOnly)
	}
	for _, kw := range readKeywords {
		if first == kw {
			return nil
		}
	}
	return fmt.Errorf("%w: statement starts with %s", ErrNotReadOnly, first)
}

// hasSemicolonOutsideStrings reports a semicolon outside quoted literals and
// identifiers.
func hasSemicolonOutsideStrings(query string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBacktick
	)

	state := stateNormal
	prev := rune(0)

	for _, ch := range query {
		switch state {
		case stateNormal:
			switch ch {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '`':
				state = stateBacktick
			}
		case stateSingleQuote:
			// '' re-enters the literal on the next quote.
			if ch == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' && prev != '\\' {
				state = stateNormal
			}
		case stateBacktick:
			if ch == '`' {
				state = stateNormal
			}
		}
		prev = ch
	}

	return false
}

func stripTrailingSemicolon(query string) string {
	query = strings.TrimRight(query, " \t\n\r")
	if strings.HasSuffix(query, ";") {
		query = strings.TrimRight(strings.TrimSuffix(query, ";"), " \t\n\r")
	}
	return query
}
