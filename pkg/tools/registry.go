package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wienmaps/buildingsmcp/pkg/buildings"
	"github.com/wienmaps/buildingsmcp/pkg/version"
)

// Registry binds the tool definitions to one loader instance.
type Registry struct {
	logger *slog.Logger
	loader *buildings.Loader
}

// NewRegistry creates a tool registry for the given loader.
func NewRegistry(logger *slog.Logger, loader *buildings.Loader) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, loader: loader}
}

// ToolDefinition pairs a tool with its handler.
type ToolDefinition struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{Tool: GetVersionTool(), Handler: r.HandleGetVersion},
		{Tool: LoadBuildingsTool(), Handler: r.HandleLoadBuildings},
		{Tool: CacheInfoTool(), Handler: r.HandleCacheInfo},
		{Tool: ClearCacheTool(), Handler: r.HandleClearCache},
	}
}

// Register adds all tools to the MCP server.
func (r *Registry) Register(s *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		s.AddTool(def.Tool, def.Handler)
	}
}

// GetVersionTool returns the version tool definition.
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get version information for this building loader service"),
	)
}

// HandleGetVersion implements the get_version tool.
func (r *Registry) HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(version.Info())
	if err != nil {
		return mcp.NewToolResultError("Failed to serialize version info"), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
