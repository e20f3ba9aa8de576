package datasource

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is an ordered mapping from column name to a normalized scalar value.
// A Row is never modified after construction; With and Project return copies.
type Row struct {
	m *orderedmap.OrderedMap[string, any]
}

// MakeRow builds a Row from parallel key and value slices.
// Later duplicates of a key overwrite the earlier value but keep its position.
func MakeRow(keys []string, values []any) Row {
	m := orderedmap.New[string, any](len(keys))
	for i, k := range keys {
		var v any
		if i < len(values) {
			v = values[i]
		}
		m.Set(k, v)
	}
	return Row{m: m}
}

// RowOf builds a Row from alternating key/value arguments.
// Panics on an odd argument count or a non-string key.
func RowOf(kv ...any) Row {
	if len(kv)%2 != 0 {
		panic("datasource.RowOf: odd number of arguments")
	}
	m := orderedmap.New[string, any](len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("datasource.RowOf: key %v is not a string", kv[i]))
		}
		m.Set(k, kv[i+1])
	}
	return Row{m: m}
}

// Get returns the value stored under key and whether the key exists.
func (r Row) Get(key string) (any, bool) {
	if r.m == nil {
		return nil, false
	}
	return r.m.Get(key)
}

// Value returns the value stored under key, or nil.
func (r Row) Value(key string) any {
	v, _ := r.Get(key)
	return v
}

// Has reports whether the row carries key, regardless of its value.
func (r Row) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

func (r Row) Len() int {
	if r.m == nil {
		return 0
	}
	return r.m.Len()
}

// Keys returns the column names in query order.
func (r Row) Keys() []string {
	if r.m == nil {
		return nil
	}
	keys := make([]string, 0, r.m.Len())
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for each column in order until fn returns false.
func (r Row) Range(fn func(key string, value any) bool) {
	if r.m == nil {
		return
	}
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// With returns a copy of the row with key set to value.
// An existing key keeps its position; a new key is appended.
func (r Row) With(key string, value any) Row {
	out := r.clone(1)
	out.m.Set(key, value)
	return out
}

// Transform returns a copy where each value is replaced by fn(key, value).
// Keys and their order are unchanged.
func (r Row) Transform(fn func(key string, value any) any) Row {
	m := orderedmap.New[string, any](r.Len())
	r.Range(func(k string, v any) bool {
		m.Set(k, fn(k, v))
		return true
	})
	return Row{m: m}
}

// Project returns a copy holding only the requested columns that exist,
// in the requested order.
func (r Row) Project(columns []string) Row {
	m := orderedmap.New[string, any](len(columns))
	for _, c := range columns {
		if v, ok := r.Get(c); ok {
			m.Set(c, v)
		}
	}
	return Row{m: m}
}

// Map returns an unordered copy, mostly useful in tests.
func (r Row) Map() map[string]any {
	out := make(map[string]any, r.Len())
	r.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out
}

// MarshalJSON writes the columns in query order.
func (r Row) MarshalJSON() ([]byte, error) {
	if r.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.m)
}

func (r Row) clone(extra int) Row {
	m := orderedmap.New[string, any](r.Len() + extra)
	r.Range(func(k string, v any) bool {
		m.Set(k, v)
		return true
	})
	return Row{m: m}
}
