package handlers

import (
	"net/http"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/mcp"
	"github.com/ekaya-inc/emistr-mcp/pkg/mcp/tools"
	"github.com/ekaya-inc/emistr-mcp/pkg/middleware"
	"github.com/ekaya-inc/emistr-mcp/pkg/services"
)

// MCPHandler handles MCP protocol requests over HTTP.
type MCPHandler struct {
	httpServer *server.StreamableHTTPServer
	catalog    []services.OperationSpec
	logger     *zap.Logger
}

// ToolListResponse is the plain catalog returned by GET /mcp/tools.
type ToolListResponse struct {
	Tools []mcpgo.Tool `json:"tools"`
}

// NewMCPHandler creates a new MCP handler from an MCP server. catalog is
// the operation list served by GET /mcp/tools and should be the one the
// server's tools were registered from.
func NewMCPHandler(mcpServer *mcp.Server, catalog []services.OperationSpec, logger *zap.Logger) *MCPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MCPHandler{
		httpServer: mcpServer.NewStreamableHTTPServer(),
		catalog:    catalog,
		logger:     logger,
	}
}

// RegisterRoutes registers the MCP endpoint and the plain tool listing.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux) {
	// Method check is outermost so non-POST requests are rejected before
	// the body is read for logging.
	loggedHandler := middleware.MCPRequestLogger(h.logger)(h.httpServer)
	mux.Handle("/mcp", h.requirePOST(loggedHandler))
	mux.HandleFunc("GET /mcp/tools", h.ListTools)
}

// ListTools handles GET /mcp/tools for clients that do not speak JSON-RPC.
func (h *MCPHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	response := ToolListResponse{Tools: make([]mcpgo.Tool, 0, len(h.catalog))}
	for _, op := range h.catalog {
		response.Tools = append(response.Tools, tools.NewOperationTool(op))
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode tool list", zap.Error(err))
	}
}

// requirePOST returns 405 Method Not Allowed for non-POST requests.
// MCP over HTTP Streaming requires POST for JSON-RPC requests.
func (h *MCPHandler) requirePOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
