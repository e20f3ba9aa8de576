package services

import (
	"sort"
	"strings"
	"time"

	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/jsonutil"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/repositories"
)

// Limits bound the page sizes callers may request.
type Limits struct {
	MaxQueryResults int
	DefaultPageSize int
}

// DefaultLimits match the configuration defaults.
var DefaultLimits = Limits{MaxQueryResults: 1000, DefaultPageSize: 50}

func (l Limits) withDefaults() Limits {
	if l.MaxQueryResults <= 0 {
		l.MaxQueryResults = DefaultLimits.MaxQueryResults
	}
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = DefaultLimits.DefaultPageSize
	}
	if l.DefaultPageSize > l.MaxQueryResults {
		l.DefaultPageSize = l.MaxQueryResults
	}
	return l
}

// Request is a validated tool invocation.
type Request struct {
	Operation string
	// Options is the models.*Options value of the operation.
	Options any
	// Filters echoes the applied filters back to the client.
	Filters map[string]any
	// Columns is the optional response projection of get_orders.
	Columns []string
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05"}

// ParseOptions validates the raw argument map of a tool call and converts it
// to the operation's options struct. It never touches the database.
func ParseOptions(name string, args map[string]any, limits Limits) (*Request, error) {
	op, ok := LookupOperation(name)
	if !ok {
		return nil, apperrors.Validation("Neznámý tool: %s", name)
	}
	if err := checkArgumentNames(op, args); err != nil {
		return nil, err
	}

	r := &argReader{args: args, limits: limits.withDefaults(), filters: map[string]any{}}
	req := &Request{Operation: name}

	switch name {
	case OpGetOrders:
		req.Options = models.OrderListOptions{
			Status:     r.str("status"),
			CustomerID: r.id("customer_id"),
			DateFrom:   r.date("date_from"),
			DateTo:     r.date("date_to"),
			Limit:      r.limit(r.limits.defaultLimit(name)),
			Offset:     r.offset(),
		}
		req.Columns = r.strings("columns")
	case OpGetOrderDetail:
		opts := models.OrderDetailOptions{OrderID: r.id("order_id"), OrderCode: r.str("order_code")}
		if r.err == nil && opts.OrderID == nil && opts.OrderCode == nil {
			r.fail(repositories.MsgOrderIdentifierRequired)
		}
		req.Options = opts
	case OpSearchOrders:
		term := r.required("search_term")
		req.Options = models.OrderSearchOptions{SearchTerm: term, Limit: r.limit(r.limits.defaultLimit(name))}
	case OpGetWorkers:
		req.Options = models.WorkerListOptions{
			Status:    r.str("status"),
			GroupName: r.str("group_name"),
			Limit:     r.limit(r.limits.defaultLimit(name)),
		}
	case OpGetWorkerDetail:
		id := r.id("worker_id")
		if r.err == nil && id == nil {
			r.fail("Musíte zadat worker_id")
		}
		opts := models.WorkerDetailOptions{}
		if id != nil {
			opts.WorkerID = *id
		}
		req.Options = opts
	case OpGetMaterials:
		req.Options = models.MaterialListOptions{
			WarehouseID:  r.id("sklad_id"),
			LowStockOnly: r.boolean("low_stock_only"),
			Limit:        r.limit(r.limits.defaultLimit(name)),
		}
	case OpGetMaterialMovements:
		req.Options = models.MaterialMovementOptions{
			MaterialID: r.id("material_id"),
			DateFrom:   r.date("date_from"),
			DateTo:     r.date("date_to"),
			Limit:      r.limit(r.limits.defaultLimit(name)),
		}
	case OpGetOperations:
		req.Options = models.OperationListOptions{
			OperationGroup: r.str("operation_group"),
			Limit:          r.limit(r.limits.defaultLimit(name)),
		}
	case OpGetMachines:
		req.Options = models.MachineListOptions{
			StatusFilter: r.str("status_filter"),
			Limit:        r.limit(r.limits.defaultLimit(name)),
		}
	case OpGetProductionStats:
		from := r.requiredDate("date_from")
		to := r.requiredDate("date_to")
		if r.err == nil && from > to {
			r.fail("date_from nesmí být po date_to")
		}
		req.Options = models.ProductionStatsOptions{DateFrom: from, DateTo: to}
	}

	if r.err != nil {
		return nil, r.err
	}
	req.Filters = r.filters
	return req, nil
}

func checkArgumentNames(op OperationSpec, args map[string]any) error {
	var unknown []string
	for name := range args {
		if _, ok := op.Param(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return apperrors.Validation("Neznámé parametry pro %s: %s", op.Name, strings.Join(unknown, ", "))
}

// argReader coerces arguments and keeps the first validation error.
// Optional filters it reads are recorded in filters.
type argReader struct {
	args    map[string]any
	limits  Limits
	filters map[string]any
	err     error
}

func (r *argReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = apperrors.Validation(format, args...)
	}
}

// value returns a present argument. null and blank strings count as absent.
func (r *argReader) value(name string) (any, bool) {
	v, ok := r.args[name]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (r *argReader) str(name string) *string {
	v, ok := r.value(name)
	if !ok {
		return nil
	}
	s, ok := jsonutil.FlexibleString(v)
	if !ok {
		r.fail("Parametr %s musí být text", name)
		return nil
	}
	s = strings.TrimSpace(s)
	r.filters[name] = s
	return &s
}

func (r *argReader) required(name string) string {
	s := r.str(name)
	if s == nil {
		r.fail("Musíte zadat %s", name)
		return ""
	}
	return *s
}

// id reads an identifier. Zero and negative ids count as absent.
func (r *argReader) id(name string) *int64 {
	v, ok := r.value(name)
	if !ok {
		return nil
	}
	n, err := jsonutil.FlexibleInt(v)
	if err != nil {
		r.fail("Parametr %s musí být celé číslo", name)
		return nil
	}
	if n <= 0 {
		return nil
	}
	r.filters[name] = n
	return &n
}

func (r *argReader) boolean(name string) bool {
	v, ok := r.value(name)
	if !ok {
		return false
	}
	b, err := jsonutil.FlexibleBool(v)
	if err != nil {
		r.fail("Parametr %s musí být true nebo false", name)
		return false
	}
	if b {
		r.filters[name] = true
	}
	return b
}

func (r *argReader) date(name string) *string {
	v, ok := r.value(name)
	if !ok {
		return nil
	}
	s, _ := jsonutil.FlexibleString(v)
	s = strings.TrimSpace(s)
	if !validDate(s) {
		r.fail("Parametr %s musí být datum ve formátu YYYY-MM-DD", name)
		return nil
	}
	r.filters[name] = s
	return &s
}

func (r *argReader) requiredDate(name string) string {
	d := r.date(name)
	if d == nil {
		r.fail("Musíte zadat %s", name)
		return ""
	}
	return *d
}

func validDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// limit reads the page size. Values above the configured maximum are capped.
func (r *argReader) limit(def int) int {
	v, ok := r.value("limit")
	if !ok {
		return def
	}
	n, err := jsonutil.FlexibleInt(v)
	if err != nil {
		r.fail("Parametr limit musí být celé číslo")
		return def
	}
	if n <= 0 {
		r.fail("limit musí být kladné číslo")
		return def
	}
	if n > int64(r.limits.MaxQueryResults) {
		return r.limits.MaxQueryResults
	}
	return int(n)
}

func (r *argReader) offset() int {
	v, ok := r.value("offset")
	if !ok {
		return 0
	}
	n, err := jsonutil.FlexibleInt(v)
	if err != nil {
		r.fail("Parametr offset musí být celé číslo")
		return 0
	}
	if n < 0 {
		r.fail("offset nesmí být záporný")
		return 0
	}
	return int(n)
}

func (r *argReader) strings(name string) []string {
	v, ok := r.value(name)
	if !ok {
		return nil
	}
	out, err := jsonutil.FlexibleStrings(v)
	if err != nil {
		r.fail("Parametr %s musí být seznam názvů sloupců", name)
		return nil
	}
	return out
}
