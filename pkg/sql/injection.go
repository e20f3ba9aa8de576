package sql

import (
	"fmt"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes an argument value that looks like SQL.
type InjectionCheckResult struct {
	ParamName   string // argument name, with an index for list elements
	Fingerprint string // libinjection fingerprint
}

// CheckParameterForInjection runs libinjection over a string value.
// Non-string values return nil.
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
		return &InjectionCheckResult{ParamName: paramName, Fingerprint: string(fingerprint)}
	}
	return nil
}

// ScreenArguments checks every string argument of a tool call, including
// the elements of list arguments. Results are ordered by argument name.
// Arguments are always bound as parameters, so a hit is a signal to log,
// not a vulnerability.
func ScreenArguments(args map[string]any) []*InjectionCheckResult {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []*InjectionCheckResult
	for _, name := range names {
		switch v := args[name].(type) {
		case []any:
			for i, item := range v {
				if r := CheckParameterForInjection(fmt.Sprintf("%s[%d]", name, i), item); r != nil {
					results = append(results, r)
				}
			}
		default:
			if r := CheckParameterForInjection(name, v); r != nil {
				results = append(results, r)
			}
		}
	}
	return results
}
