package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/logging"
)

// Pinger checks database reachability. *datasource.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResult struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The status is "degraded" when the database does not answer a ping; the
// reason goes to the log, not to the client.
func RegisterHealthTool(s *server.MCPServer, version string, db Pinger, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version, Database: "ok"}
		if db == nil {
			res.Database = "not_configured"
		} else if err := db.Ping(ctx); err != nil {
			res.Status = "degraded"
			res.Database = "unreachable"
			logger.Warn("Health check failed", zap.String("error", logging.SanitizeError(err)))
		}

		result, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
