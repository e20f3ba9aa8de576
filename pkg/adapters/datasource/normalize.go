package datasource

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05.999999999"
)

// textTimeLayouts are the string forms drivers return for temporal columns
// when they do not parse them into time.Time themselves.
var textTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	dateLayout,
}

// BaseType reduces a driver type name such as "decimal(10,2)" or
// "timestamp without time zone" to an upper-case base name.
func BaseType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func isDecimalType(base string) bool {
	switch base {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY", "NEWDECIMAL":
		return true
	}
	return false
}

func isDateType(base string) bool {
	return base == "DATE"
}

// IsTemporalType reports whether a catalog or driver type name denotes a
// date or timestamp column.
func IsTemporalType(dbType string) bool {
	base := BaseType(dbType)
	switch {
	case base == "DATE", base == "SMALLDATETIME":
		return true
	case strings.HasPrefix(base, "DATETIME"), strings.HasPrefix(base, "TIMESTAMP"):
		return true
	}
	return false
}

func hasZone(base string) bool {
	return strings.Contains(base, "WITH TIME ZONE") || base == "TIMESTAMPTZ" || base == "DATETIMEOFFSET"
}

// NormalizeValue converts a scanned driver value into a transport-safe
// primitive: temporal values become ISO-8601 strings, fixed-point decimals
// become float64 and byte slices become UTF-8 text. Unknown types pass
// through unchanged.
func NormalizeValue(dbType string, v any) (any, error) {
	base := BaseType(dbType)

	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return formatTime(base, val), nil
	case []byte:
		return NormalizeValue(dbType, string(val))
	case string:
		if isDecimalType(base) {
			return decimalToFloat(val)
		}
		if IsTemporalType(base) {
			if t, ok := parseTextTime(val); ok {
				return formatTime(base, t), nil
			}
		}
		return strings.ToValidUTF8(val, "\uFFFD"), nil
	case decimal.Decimal:
		f, _ := val.Float64()
		return f, nil
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite float %v", val)
		}
		return f, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite float %v", val)
		}
		return val, nil
	case int64:
		if isDecimalType(base) {
			return float64(val), nil
		}
		return val, nil
	case fmt.Stringer:
		if isDecimalType(base) {
			return decimalToFloat(val.String())
		}
		return v, nil
	default:
		return v, nil
	}
}

func formatTime(base string, t time.Time) string {
	if isDateType(base) {
		return t.Format(dateLayout)
	}
	if hasZone(base) {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(dateTimeLayout)
}

func parseTextTime(s string) (time.Time, bool) {
	for _, layout := range textTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func decimalToFloat(s string) (any, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}
