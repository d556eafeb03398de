package toolsvc

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/croftbay/pgscout/internal/toolreg"
)

const (
	ServerName    = "pgscout"
	ServerVersion = "0.1.0"
)

// NewMCPServer exposes every registry entry as an MCP tool. The tool list the
// protocol reports is generated from the same descriptors the local registry
// resolves, byte for byte.
func NewMCPServer(reg *toolreg.Registry) *server.MCPServer {
	srv := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
	)

	for _, desc := range reg.List() {
		tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, desc.SchemaJSON())
		name := desc.Name
		srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := reg.Invoke(ctx, name, req.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(EncodeError(err)), nil
			}
			return mcp.NewToolResultText(result), nil
		})
	}

	return srv
}
