package mcp

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

type Service struct {
	engine *engine.Engine
}

func NewService(eng *engine.Engine) *Service {
	return &Service{engine: eng}
}

// --- Tool Handlers ---

func (s *Service) GraphQuery(ctx context.Context, req *mcp.CallToolRequest, args GraphQueryArgs) (*mcp.CallToolResult, GraphQueryResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 50
	}
	id, err := s.engine.SubmitQuery(ctx, engine.QueryRequest{
		Query:     args.Query,
		TypeNames: args.TypeNames,
		Bindings:  args.Bindings,
		Limit:     limit,
	})
	if err != nil {
		return nil, GraphQueryResult{}, err
	}
	rows, err := s.drain(id)
	if err != nil {
		return nil, GraphQueryResult{}, err
	}

	objects := make([]GraphObject, 0, len(rows))
	for _, row := range rows {
		objects = append(objects, describeObject(row[0]))
	}
	return nil, GraphQueryResult{Objects: objects}, nil
}

func (s *Service) SearchGraph(ctx context.Context, req *mcp.CallToolRequest, args SearchGraphArgs) (*mcp.CallToolResult, GraphQueryResult, error) {
	var target engine.SearchTarget
	if args.Target != "" {
		if err := target.UnmarshalText([]byte(args.Target)); err != nil {
			return nil, GraphQueryResult{}, err
		}
	}
	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	id, err := s.engine.SubmitSearch(ctx, engine.SearchRequest{
		Text:       args.Text,
		TypeNames:  args.TypeNames,
		Target:     target,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, GraphQueryResult{}, err
	}
	rows, err := s.drain(id)
	if err != nil {
		return nil, GraphQueryResult{}, err
	}

	objects := make([]GraphObject, 0, len(rows))
	for _, row := range rows {
		obj := describeObject(row[0])
		if score, ok := row[1].(graphvalue.Primitive); ok {
			obj.Score, _ = score.AsFloat64()
		}
		objects = append(objects, obj)
	}
	return nil, GraphQueryResult{Objects: objects}, nil
}

func (s *Service) ComputeCentrality(ctx context.Context, req *mcp.CallToolRequest, args CentralityArgs) (*mcp.CallToolResult, CentralityResult, error) {
	cfg := centrality.DefaultConfig()
	cfg.Measures = cfg.Measures[:0:0]
	for _, name := range args.Measures {
		var m centrality.Measure
		if err := m.UnmarshalText([]byte(name)); err != nil {
			return nil, CentralityResult{}, err
		}
		cfg.Measures = append(cfg.Measures, m)
	}
	if args.Interpretation != "" {
		if err := cfg.Interpretation.UnmarshalText([]byte(args.Interpretation)); err != nil {
			return nil, CentralityResult{}, err
		}
	}
	if args.Normalization != "" {
		if err := cfg.Normalization.UnmarshalText([]byte(args.Normalization)); err != nil {
			return nil, CentralityResult{}, err
		}
	}
	cfg.CostProperty = args.CostProperty

	var fs subgraph.FilterSet
	for _, t := range args.EntityTypes {
		fs.EntityFilters = append(fs.EntityFilters, subgraph.NamedTypeFilter{Kind: subgraph.Include, TypeName: t})
	}

	res, err := s.engine.ComputeCentrality(ctx, cfg, fs)
	if err != nil {
		return nil, CentralityResult{}, err
	}

	top := args.Top
	if top <= 0 {
		top = 10
	}
	ids := res.EntityIDs()
	out := CentralityResult{Entities: len(ids)}
	for _, m := range res.Measures() {
		ranked := make([]EntityScore, 0, len(ids))
		for _, id := range ids {
			score, _ := res.Score(id, m)
			ranked = append(ranked, EntityScore{ID: id.String(), Type: strings.Join(res.NamedTypesOf(id), ","), Score: score})
		}
		slices.SortStableFunc(ranked, func(a, b EntityScore) int { return cmp.Compare(b.Score, a.Score) })
		out.Rankings = append(out.Rankings, MeasureRank{Measure: m.String(), Top: ranked[:min(top, len(ranked))]})
	}
	return nil, out, nil
}

func (s *Service) FindPaths(ctx context.Context, req *mcp.CallToolRequest, args FindPathsArgs) (*mcp.CallToolResult, FindPathsResult, error) {
	cfg := pathfinding.DefaultConfig()
	cfg.Origins = []pathfinding.EntitySelector{selector(args.OriginType, args.OriginID)}
	cfg.Destinations = []pathfinding.EntitySelector{selector(args.DestinationType, args.DestinationID)}
	cfg.CostProperty = args.CostProperty
	cfg.MaxPathLength = 6
	if args.MaxLength > 0 {
		cfg.MaxPathLength = args.MaxLength
	}
	cfg.MaxResultPaths = 20
	if args.MaxPaths > 0 {
		cfg.MaxResultPaths = args.MaxPaths
	}
	if args.AllPaths {
		cfg.PathMode = pathfinding.AllPaths
	}
	for _, t := range args.RelationshipTypes {
		cfg.PathFilters = append(cfg.PathFilters, pathfinding.PathFilter{
			Kind:     pathfinding.IncludeOnly,
			ItemKind: pathfinding.RelationshipItem,
			TypeName: t,
		})
	}
	if args.Direction != "" {
		var dir pathfinding.Direction
		if err := dir.UnmarshalText([]byte(args.Direction)); err != nil {
			return nil, FindPathsResult{}, err
		}
		cfg.TraversalDirections = make(map[string]pathfinding.Direction)
		for _, t := range s.engine.Schema() {
			if t.Kind == core.RelationshipType {
				cfg.TraversalDirections[t.Name] = dir
			}
		}
	}

	res, err := s.engine.FindPaths(ctx, cfg)
	if err != nil {
		return nil, FindPathsResult{}, err
	}

	out := FindPathsResult{Paths: make([]PathSummary, 0, res.CountPaths())}
	for _, i := range res.PathsByIncreasingMinCost() {
		path, err := res.MaterializePath(i)
		if err != nil {
			return nil, FindPathsResult{}, err
		}
		out.Paths = append(out.Paths, PathSummary{
			Description: path.String(),
			Length:      path.Length,
			MinCost:     path.MinCost,
			MaxCost:     path.MaxCost,
		})
	}
	return nil, out, nil
}

// drain reads a whole cursor session and closes it.
func (s *Service) drain(id string) ([]graphvalue.Row, error) {
	defer s.engine.CloseSession(id)
	var rows []graphvalue.Row
	for {
		batch, done, err := s.engine.NextBatch(id)
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
		if done {
			return rows, nil
		}
	}
}

func selector(typeName, id string) pathfinding.EntitySelector {
	sel := pathfinding.EntitySelector{TypeName: typeName}
	if id != "" {
		sel.InstanceID = graphvalue.ParseIdentifier(id)
	}
	return sel
}

func describeObject(v graphvalue.Value) GraphObject {
	var obj GraphObject
	var fields []graphvalue.Field
	switch o := v.(type) {
	case *graphvalue.Entity:
		obj = GraphObject{ID: o.Identifier().String(), Type: o.TypeName(), Kind: "entity", Label: o.Label()}
		fields = o.Fields()
	case *graphvalue.Relationship:
		obj = GraphObject{ID: o.Identifier().String(), Type: o.TypeName(), Kind: "relationship"}
		if origin, ok := o.OriginID(); ok {
			obj.Origin = origin.String()
		}
		if dest, ok := o.DestinationID(); ok {
			obj.Destination = dest.String()
		}
		fields = o.Fields()
	default:
		return GraphObject{Kind: graphvalue.KindOf(v).String()}
	}
	if len(fields) > 0 {
		obj.Props = make(map[string]string, len(fields))
		for _, f := range fields {
			obj.Props[f.Name] = formatValue(f.Value)
		}
	}
	return obj
}

func formatValue(v graphvalue.Value) string {
	if p, ok := v.(graphvalue.Primitive); ok {
		return p.String()
	}
	return "<" + graphvalue.KindOf(v).String() + ">"
}
