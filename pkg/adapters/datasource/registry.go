package datasource

import (
	"sort"
	"sync"
)

// DialectInfo describes a registered dialect.
type DialectInfo struct {
	Name        string `json:"name"`         // "mysql", "postgres", "mssql", "sqlite"
	DisplayName string `json:"display_name"` // "MySQL / MariaDB"
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Dialect)
	infos      = make(map[string]DialectInfo)
)

// Register is called by each dialect package's init() function.
func Register(info DialectInfo, d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Name] = d
	infos[info.Name] = info
}

// GetDialect returns the dialect registered under name, or nil.
func GetDialect(name string) Dialect {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// RegisteredDialects returns the registered dialects sorted by name.
func RegisteredDialects() []DialectInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DialectInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// IsRegistered checks if a dialect is available.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
