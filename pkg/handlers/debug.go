package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/anonymizer"
)

// AnonymizationDebugResponse is returned by GET /debug/anonymization.
// Each map goes from pseudonym to source id.
type AnonymizationDebugResponse struct {
	Enabled   bool              `json:"enabled"`
	Customers map[string]string `json:"customers"`
	Workers   map[string]string `json:"workers"`
}

// DebugHandler exposes the pseudonym cache. It reveals source ids, so it is
// only mounted outside production.
type DebugHandler struct {
	anon   *anonymizer.Anonymizer
	logger *zap.Logger
}

func NewDebugHandler(anon *anonymizer.Anonymizer, logger *zap.Logger) *DebugHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebugHandler{anon: anon, logger: logger}
}

// RegisterRoutes registers the debug routes on the given mux.
func (h *DebugHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/anonymization", h.Mapping)
	mux.HandleFunc("DELETE /debug/anonymization", h.Clear)
}

// Mapping handles GET /debug/anonymization.
func (h *DebugHandler) Mapping(w http.ResponseWriter, r *http.Request) {
	mapping := h.anon.Mapping()
	response := AnonymizationDebugResponse{
		Enabled:   h.anon.Enabled(),
		Customers: mapping["customers"],
		Workers:   mapping["workers"],
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode anonymization mapping", zap.Error(err))
	}
}

// Clear handles DELETE /debug/anonymization by dropping both identity caches.
func (h *DebugHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.anon.ClearCache()
	h.logger.Info("Anonymization cache cleared", zap.String("remote_addr", r.RemoteAddr))
	w.WriteHeader(http.StatusNoContent)
}
