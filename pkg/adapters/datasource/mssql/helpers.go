package mssql

import (
	"errors"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"
)

// errInvalidColumnName is SQL Server error 207, "Invalid column name".
const errInvalidColumnName = 207

// quoteName returns a bracket-quoted identifier, escaping ] as ]].
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// isInvalidColumn inspects a driver error for error 207.
// The message check covers errors that lost their type on the way up.
func isInvalidColumn(err error) (matched bool, structured bool) {
	if err == nil {
		return false, false
	}
	var msErr mssqldb.Error
	if errors.As(err, &msErr) {
		return msErr.Number == errInvalidColumnName, true
	}
	return strings.Contains(err.Error(), "Invalid column name"), false
}
