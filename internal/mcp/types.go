package mcp

// --- Tool Arguments ---

type GraphQueryArgs struct {
	Query     string         `json:"query,omitempty" jsonschema:"Predicate over props, label, typeName and id, e.g. props.region == 'south'. Empty matches everything."`
	TypeNames []string       `json:"type_names,omitempty" jsonschema:"Named types to search. Defaults to all types."`
	Bindings  map[string]any `json:"bindings,omitempty" jsonschema:"Values visible to the predicate as params.<name>"`
	Limit     int            `json:"limit,omitempty" jsonschema:"Max number of objects (default 50)"`
}

type GraphQueryResult struct {
	Objects []GraphObject `json:"objects"`
}

// GraphObject is a flattened entity or relationship.
type GraphObject struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Kind        string            `json:"kind"`
	Label       string            `json:"label,omitempty"`
	Origin      string            `json:"origin,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Score       float64           `json:"score,omitempty"`
	Props       map[string]string `json:"props,omitempty"`
}

type SearchGraphArgs struct {
	Text       string   `json:"text" jsonschema:"Words to look for in labels and text properties"`
	TypeNames  []string `json:"type_names,omitempty" jsonschema:"Named types to search. Defaults to all types."`
	Target     string   `json:"target,omitempty" jsonschema:"One of entities, relationships or both (default)"`
	MaxResults int      `json:"max_results,omitempty" jsonschema:"Max number of hits (default 10)"`
}

type CentralityArgs struct {
	Measures       []string `json:"measures" jsonschema:"Measures to compute: degree, in_degree, out_degree, coreness, betweenness, closeness, harmonic, eigenvector, pagerank"`
	Interpretation string   `json:"interpretation,omitempty" jsonschema:"undirected (default) or directed"`
	Normalization  string   `json:"normalization,omitempty" jsonschema:"none (default), standard or max_scaled"`
	CostProperty   string   `json:"cost_property,omitempty" jsonschema:"Relationship property used as traversal cost"`
	EntityTypes    []string `json:"entity_types,omitempty" jsonschema:"Restrict the network to these entity types"`
	Top            int      `json:"top,omitempty" jsonschema:"Number of best entities listed per measure (default 10)"`
}

type CentralityResult struct {
	Entities int           `json:"entities"`
	Rankings []MeasureRank `json:"rankings"`
}

type MeasureRank struct {
	Measure string        `json:"measure"`
	Top     []EntityScore `json:"top"`
}

type EntityScore struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

type FindPathsArgs struct {
	OriginType        string   `json:"origin_type" jsonschema:"Entity type the paths start from"`
	OriginID          string   `json:"origin_id,omitempty" jsonschema:"Start from this instance only"`
	DestinationType   string   `json:"destination_type" jsonschema:"Entity type the paths end at"`
	DestinationID     string   `json:"destination_id,omitempty" jsonschema:"End at this instance only"`
	RelationshipTypes []string `json:"relationship_types,omitempty" jsonschema:"Relationship types allowed on the paths (default all)"`
	Direction         string   `json:"direction,omitempty" jsonschema:"any (default), forward or backward"`
	CostProperty      string   `json:"cost_property,omitempty" jsonschema:"Relationship property used as cost"`
	AllPaths          bool     `json:"all_paths,omitempty" jsonschema:"List every path instead of the cheapest per origin and destination"`
	MaxLength         int      `json:"max_length,omitempty" jsonschema:"Max number of hops (default 6)"`
	MaxPaths          int      `json:"max_paths,omitempty" jsonschema:"Max number of paths returned (default 20)"`
}

type FindPathsResult struct {
	Paths []PathSummary `json:"paths"`
}

type PathSummary struct {
	Description string  `json:"description"` // "A -[ShipsTo]-> B"
	Length      int     `json:"length"`
	MinCost     float64 `json:"min_cost"`
	MaxCost     float64 `json:"max_cost"`
}
