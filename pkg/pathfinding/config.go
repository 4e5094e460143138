// Package pathfinding implements filtered find-paths: a bounded search for
// paths between a set of origin entities and a set of destination entities
// under direction, type and waypoint constraints.
//
// A path alternates entities and hops. A hop groups every permitted
// relationship between two consecutive entities, so parallel relationships
// do not multiply the number of paths; the cheapest and the most expensive
// relationship of each hop give the minimum and maximum cost of the path.
package pathfinding

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// Direction restricts how relationships of a type may be traversed.
type Direction uint8

const (
	// AnyDirection allows both directions.
	AnyDirection Direction = iota
	// Forward follows relationships from origin to destination only.
	Forward
	// Backward follows relationships from destination to origin only.
	Backward
)

var directionNames = []string{"any", "forward", "backward"}

func (d Direction) String() string { return enumName(directionNames, int(d)) }

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := parseEnum("direction", directionNames, string(b))
	*d = Direction(v)
	return err
}

// EntityUsage says how origins and destinations are paired when only the
// shortest paths are kept: the shortest paths are computed per group, the
// group being defined by the origin, the destination, both or neither.
type EntityUsage uint8

const (
	EachOriginEachDestination EntityUsage = iota
	AnyOriginAnyDestination
	EachOriginAnyDestination
	AnyOriginEachDestination
)

var usageNames = []string{
	"each_origin_each_destination",
	"any_origin_any_destination",
	"each_origin_any_destination",
	"any_origin_each_destination",
}

func (u EntityUsage) String() string { return enumName(usageNames, int(u)) }

func (u EntityUsage) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *EntityUsage) UnmarshalText(b []byte) error {
	v, err := parseEnum("entity usage", usageNames, string(b))
	*u = EntityUsage(v)
	return err
}

// PathMode selects between keeping only the cheapest paths and
// enumerating every path.
type PathMode uint8

const (
	Shortest PathMode = iota
	AllPaths
)

var pathModeNames = []string{"shortest", "all_paths"}

func (m PathMode) String() string { return enumName(pathModeNames, int(m)) }

func (m PathMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *PathMode) UnmarshalText(b []byte) error {
	v, err := parseEnum("path mode", pathModeNames, string(b))
	*m = PathMode(v)
	return err
}

// ClosedPathPolicy says whether a path may visit an entity twice.
type ClosedPathPolicy uint8

const (
	Forbid ClosedPathPolicy = iota
	Allow
)

var closedNames = []string{"forbid", "allow"}

func (c ClosedPathPolicy) String() string { return enumName(closedNames, int(c)) }

func (c ClosedPathPolicy) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClosedPathPolicy) UnmarshalText(b []byte) error {
	v, err := parseEnum("closed path policy", closedNames, string(b))
	*c = ClosedPathPolicy(v)
	return err
}

// ItemKind tells whether a path filter targets entities or relationships.
type ItemKind uint8

const (
	EntityItem ItemKind = iota
	RelationshipItem
)

var itemKindNames = []string{"entity", "relationship"}

func (k ItemKind) String() string { return enumName(itemKindNames, int(k)) }

func (k ItemKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ItemKind) UnmarshalText(b []byte) error {
	v, err := parseEnum("item kind", itemKindNames, string(b))
	*k = ItemKind(v)
	return err
}

// FilterKind is the role of a path filter.
type FilterKind uint8

const (
	// IncludeOnly restricts intermediate entities, or every relationship,
	// to the items matched by at least one IncludeOnly filter of that kind.
	IncludeOnly FilterKind = iota
	// Exclude discards every path touching a matched item.
	Exclude
	// MandatoryWaypoint requires the path to touch a matched item.
	MandatoryWaypoint
	// OptionalWaypoint filters form a single group: the path must touch an
	// item matched by at least one of them.
	OptionalWaypoint
)

var filterKindNames = []string{"include_only", "exclude", "mandatory_waypoint", "optional_waypoint"}

func (k FilterKind) String() string { return enumName(filterKindNames, int(k)) }

func (k FilterKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *FilterKind) UnmarshalText(b []byte) error {
	v, err := parseEnum("path filter kind", filterKindNames, string(b))
	*k = FilterKind(v)
	return err
}

// EntitySelector picks origin or destination entities: one instance when
// InstanceID is set, otherwise every instance of the type matching the
// predicate.
type EntitySelector struct {
	TypeName   string                `json:"type" yaml:"type"`
	InstanceID graphvalue.Identifier `json:"id,omitzero" yaml:"id,omitempty"`
	Predicate  string                `json:"predicate,omitempty" yaml:"predicate,omitempty"`
}

// PathFilter constrains the composition of paths.
type PathFilter struct {
	Kind       FilterKind            `json:"kind" yaml:"kind"`
	ItemKind   ItemKind              `json:"item_kind" yaml:"item_kind"`
	TypeName   string                `json:"type" yaml:"type"`
	InstanceID graphvalue.Identifier `json:"id,omitzero" yaml:"id,omitempty"`
	Predicate  string                `json:"predicate,omitempty" yaml:"predicate,omitempty"`
}

// Config describes a find-paths run.
type Config struct {
	Origins        []EntitySelector `json:"origins" yaml:"origins"`
	Destinations   []EntitySelector `json:"destinations" yaml:"destinations"`
	EntityUsage    EntityUsage      `json:"entity_usage" yaml:"entity_usage"`
	PathMode       PathMode         `json:"path_mode" yaml:"path_mode"`
	MinPathLength  int              `json:"min_path_length" yaml:"min_path_length"`
	MaxPathLength  int              `json:"max_path_length" yaml:"max_path_length"`
	MaxResultPaths int              `json:"max_result_paths" yaml:"max_result_paths"`
	ClosedPaths    ClosedPathPolicy `json:"closed_paths" yaml:"closed_paths"`
	DefaultCost    float64          `json:"default_cost" yaml:"default_cost"`
	CostProperty   string           `json:"cost_property,omitempty" yaml:"cost_property,omitempty"`
	// TraversalDirections maps relationship type names to their allowed
	// direction. Types not listed may be traversed both ways.
	TraversalDirections map[string]Direction `json:"traversal_directions,omitempty" yaml:"traversal_directions,omitempty"`
	PathFilters         []PathFilter         `json:"path_filters,omitempty" yaml:"path_filters,omitempty"`
}

// DefaultConfig returns the settings used when a caller only names the
// origins and destinations.
func DefaultConfig() Config {
	return Config{
		EntityUsage:    EachOriginEachDestination,
		PathMode:       Shortest,
		MinPathLength:  1,
		MaxPathLength:  8,
		MaxResultPaths: 100000,
		ClosedPaths:    Forbid,
		DefaultCost:    1,
	}
}

// Validate checks the configuration against the schema of r.
func (c Config) Validate(r core.Reader) error {
	if c.MinPathLength < 1 {
		return kgerr.Validation("minimum path length must be at least 1", "min_path_length")
	}
	if c.MinPathLength > c.MaxPathLength {
		return kgerr.Validation(fmt.Sprintf("minimum path length %d exceeds maximum %d", c.MinPathLength, c.MaxPathLength), "min_path_length", "max_path_length")
	}
	if c.MaxResultPaths < 1 {
		return kgerr.Validation("maximum result paths must be at least 1", "max_result_paths")
	}
	if c.DefaultCost < 0 {
		return kgerr.Validation("default cost must not be negative", "default_cost")
	}
	if int(c.EntityUsage) >= len(usageNames) || int(c.PathMode) >= len(pathModeNames) || int(c.ClosedPaths) >= len(closedNames) {
		return kgerr.Validation("unknown enumeration value")
	}

	var unknown, wrongKind []string
	note := func(list *[]string, name string) {
		if !slices.Contains(*list, name) {
			*list = append(*list, name)
		}
	}
	check := func(name string, want core.TypeKind) {
		t, ok := r.Type(name)
		switch {
		case !ok:
			note(&unknown, name)
		case t.Kind != want:
			note(&wrongKind, name)
		}
	}

	for _, sel := range append(append([]EntitySelector(nil), c.Origins...), c.Destinations...) {
		check(sel.TypeName, core.EntityType)
	}
	for name, dir := range c.TraversalDirections {
		check(name, core.RelationshipType)
		if int(dir) >= len(directionNames) {
			return kgerr.Validation("unknown traversal direction", name)
		}
	}
	for _, f := range c.PathFilters {
		if int(f.Kind) >= len(filterKindNames) || int(f.ItemKind) >= len(itemKindNames) {
			return kgerr.Validation("unknown path filter kind", f.TypeName)
		}
		want := core.EntityType
		if f.ItemKind == RelationshipItem {
			want = core.RelationshipType
		}
		check(f.TypeName, want)
	}
	if len(unknown) > 0 {
		return kgerr.Validation("unknown type names", slices.Sorted(slices.Values(unknown))...)
	}
	if len(wrongKind) > 0 {
		return kgerr.Validation("type is not of the expected kind", slices.Sorted(slices.Values(wrongKind))...)
	}

	for _, sel := range append(append([]EntitySelector(nil), c.Origins...), c.Destinations...) {
		if sel.InstanceID.IsZero() {
			if _, err := core.CompilePredicate(sel.Predicate); err != nil {
				return err
			}
		}
	}
	for _, f := range c.PathFilters {
		if f.InstanceID.IsZero() {
			if _, err := core.CompilePredicate(f.Predicate); err != nil {
				return err
			}
		}
	}
	return nil
}

func enumName(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("unknown(%d)", i)
}

func parseEnum(what string, names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}
