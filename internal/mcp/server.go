// Package mcp exposes the graph analytics as Model Context Protocol tools.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/kektorgraph/pkg/engine"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

func NewMCPServer(eng *engine.Engine) *mcp.Server {
	service := NewService(eng)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "KektorGraph",
		Version: Version,
	}, nil)

	// AddTool infers the input and output schemas from the argument structs.

	mcp.AddTool(s, &mcp.Tool{
		Name:        "graph_query",
		Description: "List entities and relationships matching a predicate over their properties.",
	}, service.GraphQuery)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_graph",
		Description: "Full-text search over entity labels and text properties, best matches first.",
	}, service.SearchGraph)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "compute_centrality",
		Description: "Rank entities by centrality measures (degree, betweenness, pagerank...) to find the important nodes of the graph.",
	}, service.ComputeCentrality)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_paths",
		Description: "Discover how entities of one type connect to entities of another type, cheapest paths first.",
	}, service.FindPaths)

	return s
}
