package server

import (
	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string   `json:"error"`
	Code  string   `json:"code"`
	Names []string `json:"names,omitempty"`
}

// CursorResponse is returned by POST /query and POST /search.
type CursorResponse struct {
	CursorID string `json:"cursor_id"`
}

// BatchResponse is returned by POST /cursors/{id}/next.
type BatchResponse struct {
	Rows []graphvalue.Row `json:"rows"`
	Done bool             `json:"done"`
}

// CentralityRequest is the body of POST /analytics/centrality.
type CentralityRequest struct {
	Config   centrality.Config  `json:"config" yaml:"config"`
	Subgraph subgraph.FilterSet `json:"subgraph" yaml:"subgraph"`
}

// PathsRequest is the body of POST /analytics/paths.
type PathsRequest struct {
	Config pathfinding.Config `json:"config" yaml:"config"`
}

type statsResponse struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	OpenCursors   int `json:"open_cursors"`
}
