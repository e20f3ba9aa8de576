package services

import "slices"

// ParamType is the JSON schema type advertised for a tool argument.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
)

// ParamSpec describes one tool argument.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// OperationSpec describes one tool.
type OperationSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// Param returns the named argument spec.
func (o OperationSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range o.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Operation names.
const (
	OpGetOrders            = "get_orders"
	OpGetOrderDetail       = "get_order_detail"
	OpSearchOrders         = "search_orders"
	OpGetWorkers           = "get_workers"
	OpGetWorkerDetail      = "get_worker_detail"
	OpGetMaterials         = "get_materials"
	OpGetMaterialMovements = "get_material_movements"
	OpGetOperations        = "get_operations"
	OpGetMachines          = "get_machines"
	OpGetProductionStats   = "get_production_stats"
)

// Default page sizes that differ from the configured one.
const (
	DefaultSearchLimit    = 20
	DefaultMovementsLimit = 100
)

// limitParam leaves the default open; Catalog fills it in from Limits.
func limitParam(description string) ParamSpec {
	return ParamSpec{Name: "limit", Type: ParamInteger, Description: description}
}

// defaultLimit is the page size ParseOptions applies when the caller sends
// no limit.
func (l Limits) defaultLimit(op string) int {
	def := l.DefaultPageSize
	switch op {
	case OpSearchOrders:
		def = DefaultSearchLimit
	case OpGetMaterialMovements:
		def = DefaultMovementsLimit
	}
	return min(def, l.MaxQueryResults)
}

// Catalog returns the tool catalog with the limit defaults that l produces.
// It is the single source of truth for the MCP tool schemas, the /mcp/tools
// listing and argument parsing.
func Catalog(l Limits) []OperationSpec {
	l = l.withDefaults()
	out := make([]OperationSpec, len(operations))
	for i, op := range operations {
		op.Params = slices.Clone(op.Params)
		for j := range op.Params {
			if op.Params[j].Name == "limit" {
				op.Params[j].Default = l.defaultLimit(op.Name)
			}
		}
		out[i] = op
	}
	return out
}

// Operations is the catalog under DefaultLimits.
var Operations = Catalog(DefaultLimits)

var operations = []OperationSpec{
	{
		Name:        OpGetOrders,
		Description: "Získá seznam zakázek.",
		Params: []ParamSpec{
			{Name: "status", Type: ParamString, Description: "Filtr podle statusu: 'ANO' (aktivní), 'NE' (neaktivní)"},
			{Name: "customer_id", Type: ParamInteger, Description: "ID zákazníka"},
			{Name: "date_from", Type: ParamString, Description: "Datum od (YYYY-MM-DD)"},
			{Name: "date_to", Type: ParamString, Description: "Datum do (YYYY-MM-DD)"},
			limitParam("Maximální počet zakázek k vrácení"),
			{Name: "offset", Type: ParamInteger, Description: "Počet zakázek k přeskočení", Default: 0},
			{Name: "columns", Type: ParamArray, Description: "Sloupce, které se mají vrátit"},
		},
	},
	{
		Name:        OpGetOrderDetail,
		Description: "Získá detail zakázky včetně operací a materiálu.",
		Params: []ParamSpec{
			{Name: "order_id", Type: ParamString, Description: "ID zakázky (c_order.id)"},
			{Name: "order_code", Type: ParamString, Description: "Kód zakázky (c_order.code) - alternativa k order_id"},
		},
	},
	{
		Name:        OpSearchOrders,
		Description: "Fulltextové vyhledávání v zakázkách podle názvu, kódu, čísla objednávky nebo poznámek.",
		Params: []ParamSpec{
			{Name: "search_term", Type: ParamString, Description: "Hledaný text", Required: true},
			limitParam("Maximální počet výsledků"),
		},
	},
	{
		Name:        OpGetWorkers,
		Description: "Získá seznam zaměstnanců s možností filtrování.",
		Params: []ParamSpec{
			{Name: "status", Type: ParamString, Description: "Filtr podle statusu"},
			{Name: "group_name", Type: ParamString, Description: "Filtr podle skupiny"},
			limitParam("Maximální počet výsledků"),
		},
	},
	{
		Name:        OpGetWorkerDetail,
		Description: "Detail zaměstnance včetně statistik výkonu.",
		Params: []ParamSpec{
			{Name: "worker_id", Type: ParamInteger, Description: "ID zaměstnance", Required: true},
		},
	},
	{
		Name:        OpGetMaterials,
		Description: "Seznam materiálů na skladu.",
		Params: []ParamSpec{
			{Name: "sklad_id", Type: ParamInteger, Description: "ID skladu"},
			{Name: "low_stock_only", Type: ParamBoolean, Description: "Zobrazit pouze materiály s nízkou zásobou", Default: false},
			limitParam("Maximální počet výsledků"),
		},
	},
	{
		Name:        OpGetMaterialMovements,
		Description: "Pohyby materiálu (příjmy/výdeje).",
		Params: []ParamSpec{
			{Name: "material_id", Type: ParamInteger, Description: "ID materiálu"},
			{Name: "date_from", Type: ParamString, Description: "Datum od"},
			{Name: "date_to", Type: ParamString, Description: "Datum do"},
			limitParam("Maximální počet výsledků"),
		},
	},
	{
		Name:        OpGetOperations,
		Description: "Seznam operací (pracovní postupy).",
		Params: []ParamSpec{
			{Name: "operation_group", Type: ParamString, Description: "Filtr podle skupiny operací"},
			limitParam("Maximální počet výsledků"),
		},
	},
	{
		Name:        OpGetMachines,
		Description: "Seznam strojů a jejich aktuální stav.",
		Params: []ParamSpec{
			{Name: "status_filter", Type: ParamString, Description: "Filtr podle stavu stroje"},
			limitParam("Maximální počet výsledků"),
		},
	},
	{
		Name:        OpGetProductionStats,
		Description: "Statistiky výroby za období.",
		Params: []ParamSpec{
			{Name: "date_from", Type: ParamString, Description: "Datum od", Required: true},
			{Name: "date_to", Type: ParamString, Description: "Datum do", Required: true},
		},
	},
}

var operationsByName = func() map[string]OperationSpec {
	m := make(map[string]OperationSpec, len(Operations))
	for _, op := range Operations {
		m[op.Name] = op
	}
	return m
}()

// LookupOperation finds a tool by name.
func LookupOperation(name string) (OperationSpec, bool) {
	op, ok := operationsByName[name]
	return op, ok
}
