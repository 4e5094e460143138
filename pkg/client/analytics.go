package client

import (
	"context"

	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

// CentralityRequest is the payload of POST /analytics/centrality.
type CentralityRequest struct {
	Config   centrality.Config  `json:"config"`
	Subgraph subgraph.FilterSet `json:"subgraph"`
}

// PathsRequest is the payload of POST /analytics/paths.
type PathsRequest struct {
	Config pathfinding.Config `json:"config"`
}

// ComputeCentrality runs a centrality task on the server and returns its
// results. The configuration is validated locally against the measures
// before anything is sent.
//
// Cancelling ctx abandons the wait only: the server finishes the task and
// its result stays available under the task id.
func (c *Client) ComputeCentrality(ctx context.Context, cfg centrality.Config, fs subgraph.FilterSet) (*centrality.Results, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var res centrality.Results
	if err := c.runTask(ctx, "/analytics/centrality", CentralityRequest{Config: cfg, Subgraph: fs}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FindPaths runs a filtered find-paths task on the server.
//
// Cancelling ctx abandons the wait only: the server finishes the task and
// its result stays available under the task id.
func (c *Client) FindPaths(ctx context.Context, cfg pathfinding.Config) (*pathfinding.Results, error) {
	var res pathfinding.Results
	if err := c.runTask(ctx, "/analytics/paths", PathsRequest{Config: cfg}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
