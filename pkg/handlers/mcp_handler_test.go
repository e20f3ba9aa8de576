package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/envelope"
	"github.com/ekaya-inc/emistr-mcp/pkg/mcp"
	"github.com/ekaya-inc/emistr-mcp/pkg/mcp/tools"
	"github.com/ekaya-inc/emistr-mcp/pkg/services"
)

type staticInvoker struct{ env envelope.Envelope }

func (s staticInvoker) Invoke(context.Context, string, map[string]any) envelope.Envelope {
	return s.env
}

func newTestMCPMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := zap.NewNop()
	mcpServer := mcp.NewServer("1.0.0", logger)
	tools.RegisterHealthTool(mcpServer.MCP(), "1.0.0", nil, nil)
	tools.RegisterEmistrTools(mcpServer.MCP(), services.Operations, staticInvoker{env: envelope.Envelope{Status: envelope.StatusSuccess, Message: "Nalezeno 0 zakázek"}})

	mux := http.NewServeMux()
	NewMCPHandler(mcpServer, services.Operations, logger).RegisterRoutes(mux)
	return mux
}

func TestNewMCPHandler(t *testing.T) {
	logger := zap.NewNop()
	mcpServer := mcp.NewServer("1.0.0", logger)

	handler := NewMCPHandler(mcpServer, services.Operations, logger)

	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
	if handler.httpServer == nil {
		t.Fatal("expected non-nil http server")
	}
	if handler.logger != logger {
		t.Error("expected logger to be set")
	}
}

func TestMCPHandler_ToolsList(t *testing.T) {
	mux := newTestMCPMux(t)

	body := `{"jsonrpc":"2.0","method":"tools/list","id":1}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("/mcp: expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v (body: %s)", err, rec.Body.String())
	}
	if len(response.Result.Tools) != len(services.Operations)+1 {
		t.Errorf("expected %d tools, got %d", len(services.Operations)+1, len(response.Result.Tools))
	}
}

func TestMCPHandler_ToolsCall(t *testing.T) {
	mux := newTestMCPMux(t)

	body := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"get_orders","arguments":{}},"id":1}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Nalezeno 0 zakázek") {
		t.Errorf("expected envelope message in response, got %s", rec.Body.String())
	}
}

func TestMCPHandler_RejectsNonPOST(t *testing.T) {
	mux := newTestMCPMux(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/mcp", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s /mcp: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "POST" {
			t.Errorf("%s /mcp: expected Allow: POST, got %q", method, allow)
		}
	}
}

func TestMCPHandler_ListToolsPlain(t *testing.T) {
	mux := newTestMCPMux(t)

	req := httptest.NewRequest(http.MethodGet, "/mcp/tools", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Tools) != len(services.Operations) {
		t.Fatalf("expected %d tools, got %d", len(services.Operations), len(response.Tools))
	}
	for i, tool := range response.Tools {
		if tool.Name != services.Operations[i].Name {
			t.Errorf("tool %d: expected %s, got %s", i, services.Operations[i].Name, tool.Name)
		}
		if tool.InputSchema["type"] != "object" {
			t.Errorf("tool %s: expected object input schema", tool.Name)
		}
	}
}
