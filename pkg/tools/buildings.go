// Package tools provides the MCP tool implementations exposing the
// building loader.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wienmaps/buildingsmcp/pkg/buildings"
	"github.com/wienmaps/buildingsmcp/pkg/geo"
	"github.com/wienmaps/buildingsmcp/pkg/geojson"
	"github.com/wienmaps/buildingsmcp/pkg/monitoring"
)

// LoadBuildingsTool returns the tool definition for loading a viewport.
func LoadBuildingsTool() mcp.Tool {
	return mcp.NewTool("load_buildings",
		mcp.WithDescription("Load building footprints for a settled map viewport. "+
			"The viewport is buffered for prefetch, served from cache when possible, "+
			"and merged into the accumulated building set."),
		mcp.WithNumber("north",
			mcp.Required(),
			mcp.Description("Northern edge latitude of the viewport"),
		),
		mcp.WithNumber("south",
			mcp.Required(),
			mcp.Description("Southern edge latitude of the viewport"),
		),
		mcp.WithNumber("east",
			mcp.Required(),
			mcp.Description("Eastern edge longitude of the viewport"),
		),
		mcp.WithNumber("west",
			mcp.Required(),
			mcp.Description("Western edge longitude of the viewport"),
		),
	)
}

// CacheInfoTool returns the tool definition for inspecting cache state.
func CacheInfoTool() mcp.Tool {
	return mcp.NewTool("building_cache_info",
		mcp.WithDescription("Report the bounds cache size and the number of accumulated buildings"),
	)
}

// ClearCacheTool returns the tool definition for the full reset.
func ClearCacheTool() mcp.Tool {
	return mcp.NewTool("clear_building_cache",
		mcp.WithDescription("Clear the bounds cache and reset the accumulated building set"),
	)
}

// loadBuildingsResult is the load_buildings response payload.
type loadBuildingsResult struct {
	Buildings *geojson.FeatureCollection `json:"buildings"`
	Loading   bool                       `json:"loading"`
	Error     string                     `json:"error,omitempty"`
	CacheInfo buildings.CacheInfo        `json:"cache_info"`
}

// HandleLoadBuildings implements the load_buildings tool against the
// given loader.
func (r *Registry) HandleLoadBuildings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "load_buildings")
	start := time.Now()

	bounds := geo.Bounds{
		North: mcp.ParseFloat64(req, "north", 0),
		South: mcp.ParseFloat64(req, "south", 0),
		East:  mcp.ParseFloat64(req, "east", 0),
		West:  mcp.ParseFloat64(req, "west", 0),
	}
	if err := bounds.Validate(); err != nil {
		monitoring.RecordToolRequest("load_buildings", time.Since(start), false)
		return mcp.NewToolResultError(fmt.Sprintf("Invalid viewport bounds: %v", err)), nil
	}

	if err := r.loader.LoadBuildings(ctx, bounds); err != nil {
		logger.Error("viewport load failed", "error", err)
	}

	result := loadBuildingsResult{
		Buildings: r.loader.Snapshot(),
		Loading:   r.loader.Loading(),
		Error:     r.loader.LastError(),
		CacheInfo: r.loader.CacheInfo(),
	}

	payload, err := json.Marshal(result)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		monitoring.RecordToolRequest("load_buildings", time.Since(start), false)
		return mcp.NewToolResultError("Failed to serialize building data"), nil
	}

	monitoring.RecordToolRequest("load_buildings", time.Since(start), result.Error == "")
	logger.Info("viewport served",
		"buildings", len(result.Buildings.Features),
		"cache_size", result.CacheInfo.Size,
	)
	return mcp.NewToolResultText(string(payload)), nil
}

// HandleCacheInfo implements the building_cache_info tool.
func (r *Registry) HandleCacheInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()

	payload, err := json.Marshal(r.loader.CacheInfo())
	if err != nil {
		monitoring.RecordToolRequest("building_cache_info", time.Since(start), false)
		return mcp.NewToolResultError("Failed to serialize cache info"), nil
	}

	monitoring.RecordToolRequest("building_cache_info", time.Since(start), true)
	return mcp.NewToolResultText(string(payload)), nil
}

// HandleClearCache implements the clear_building_cache tool.
func (r *Registry) HandleClearCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()

	r.loader.ClearCache()

	payload, err := json.Marshal(map[string]any{
		"cleared":    true,
		"cache_info": r.loader.CacheInfo(),
	})
	if err != nil {
		monitoring.RecordToolRequest("clear_building_cache", time.Since(start), false)
		return mcp.NewToolResultError("Failed to serialize result"), nil
	}

	monitoring.RecordToolRequest("clear_building_cache", time.Since(start), true)
	r.logger.Info("cache cleared via tool")
	return mcp.NewToolResultText(string(payload)), nil
}
