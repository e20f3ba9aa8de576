package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/emistr-mcp/pkg/envelope"
	"github.com/ekaya-inc/emistr-mcp/pkg/services"
)

// Invoker runs one eMISTR operation. *services.Dispatcher satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) envelope.Envelope
}

// RegisterEmistrTools adds one read-only tool per catalog operation. Every
// call returns the response envelope as JSON text; error envelopes are
// flagged with IsError.
func RegisterEmistrTools(s *server.MCPServer, catalog []services.OperationSpec, invoker Invoker) {
	for _, op := range catalog {
		s.AddTool(NewOperationTool(op), operationHandler(op.Name, invoker))
	}
}

// NewOperationTool builds the MCP tool schema of a catalog operation.
func NewOperationTool(op services.OperationSpec) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(op.Description),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	for _, p := range op.Params {
		propOpts := []mcp.PropertyOption{mcp.Description(paramDescription(p))}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case services.ParamInteger:
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case services.ParamBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		case services.ParamArray:
			propOpts = append(propOpts, mcp.Items(map[string]any{"type": "string"}))
			opts = append(opts, mcp.WithArray(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(op.Name, opts...)
}

func paramDescription(p services.ParamSpec) string {
	if p.Default == nil {
		return p.Description
	}
	return fmt.Sprintf("%s (výchozí: %v)", p.Description, p.Default)
}

func operationHandler(name string, invoker Invoker) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)

		env := invoker.Invoke(ctx, name, args)

		body, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s response: %w", name, err)
		}
		result := mcp.NewToolResultText(string(body))
		result.IsError = env.Status == envelope.StatusError
		return result, nil
	}
}
