package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/envelope"
	"github.com/ekaya-inc/emistr-mcp/pkg/services"
)

// Caller runs one operation and reports the error behind an error envelope.
// *services.Dispatcher satisfies it.
type Caller interface {
	Call(ctx context.Context, name string, args map[string]any) (envelope.Envelope, error)
}

// APIHandler exposes the operations as plain GET endpoints. Query
// parameters become tool arguments; the body is the same envelope the MCP
// tools return.
type APIHandler struct {
	caller Caller
	logger *zap.Logger
}

// NewAPIHandler creates a REST adapter over caller.
func NewAPIHandler(caller Caller, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{caller: caller, logger: logger}
}

// RegisterRoutes registers the /api routes on the given mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orders", h.operation(services.OpGetOrders))
	mux.HandleFunc("GET /api/orders/search", h.operation(services.OpSearchOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.orderDetail)
	mux.HandleFunc("GET /api/workers", h.operation(services.OpGetWorkers))
	mux.HandleFunc("GET /api/workers/{id}", h.workerDetail)
	mux.HandleFunc("GET /api/materials", h.operation(services.OpGetMaterials))
	mux.HandleFunc("GET /api/materials/movements", h.operation(services.OpGetMaterialMovements))
	mux.HandleFunc("GET /api/operations", h.operation(services.OpGetOperations))
	mux.HandleFunc("GET /api/machines", h.operation(services.OpGetMachines))
	mux.HandleFunc("GET /api/production/stats", h.operation(services.OpGetProductionStats))
}

func (h *APIHandler) operation(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respond(w, r, name, queryArgs(r))
	}
}

// orderDetail accepts either the numeric order id or the order code.
func (h *APIHandler) orderDetail(w http.ResponseWriter, r *http.Request) {
	args := queryArgs(r)
	id := r.PathValue("id")
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		args["order_id"] = id
	} else {
		args["order_code"] = id
	}
	h.respond(w, r, services.OpGetOrderDetail, args)
}

func (h *APIHandler) workerDetail(w http.ResponseWriter, r *http.Request) {
	args := queryArgs(r)
	args["worker_id"] = r.PathValue("id")
	h.respond(w, r, services.OpGetWorkerDetail, args)
}

func (h *APIHandler) respond(w http.ResponseWriter, r *http.Request, name string, args map[string]any) {
	env, err := h.caller.Call(r.Context(), name, args)
	if err := WriteJSON(w, statusFor(err), env); err != nil {
		h.logger.Error("Failed to encode API response",
			zap.String("operation", name),
			zap.Error(err))
	}
}

// queryArgs turns query parameters into tool arguments. Repeated parameters
// become lists.
func queryArgs(r *http.Request) map[string]any {
	q := r.URL.Query()
	args := make(map[string]any, len(q))
	for k, values := range q {
		if len(values) == 1 {
			args[k] = values[0]
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		args[k] = list
	}
	return args
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDatabase):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
