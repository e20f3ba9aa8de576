package datasource

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// RebindQuestion rewrites $N placeholders to "?" markers. Because "?" is
// positional, args are re-emitted in marker order, so a placeholder that
// appears several times gets its argument repeated.
func RebindQuestion(query string, args []any) (string, []any) {
	out := make([]any, 0, len(args))
	rebound := replacePlaceholders(query, func(n int, raw string) string {
		if n > len(args) {
			return raw
		}
		out = append(out, args[n-1])
		return "?"
	})
	return rebound, out
}

// RebindNamed rewrites $N placeholders to "@pN" named parameters and wraps
// each argument in sql.Named.
func RebindNamed(query string, args []any) (string, []any) {
	rebound := replacePlaceholders(query, func(n int, _ string) string {
		return "@p" + strconv.Itoa(n)
	})
	named := make([]any, len(args))
	for i, arg := range args {
		named[i] = sql.Named(fmt.Sprintf("p%d", i+1), arg)
	}
	return rebound, named
}

// replacePlaceholders substitutes every $N that is SQL, not text: quoted
// strings and identifiers ('..', "..", `..`, [..]) and comments are copied
// through untouched. A doubled quote inside a literal escapes it.
func replacePlaceholders(query string, fn func(n int, raw string) string) string {
	var b strings.Builder
	b.Grow(len(query))

	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := quotedEnd(query, i)
			b.WriteString(query[i:end])
			i = end
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			b.WriteString(query[i : i+end])
			i += end
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+4])
			i += end + 4
		case c == '$':
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(query[i+1 : j])
			if j == i+1 || err != nil || n < 1 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteString(fn(n, query[i:j]))
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// quotedEnd returns the index just past the quoted section opened at start,
// or len(query) when it is never closed.
func quotedEnd(query string, start int) int {
	closer := query[start]
	if closer == '[' {
		closer = ']'
	}
	for i := start + 1; i < len(query); i++ {
		if query[i] != closer {
			continue
		}
		if i+1 < len(query) && query[i+1] == closer && closer != ']' {
			i++
			continue
		}
		return i + 1
	}
	return len(query)
}
