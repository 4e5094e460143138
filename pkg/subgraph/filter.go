// Package subgraph selects the part of a graph an analysis runs over.
//
// A FilterSet holds include/exclude rules per named type. For each type:
//   - no filter: every instance is included;
//   - only Include filters: instances matching any of them are included;
//   - only Exclude filters: every instance except those matching any of
//     them is included;
//   - Include and Exclude together: rejected as ambiguous.
//
// A relationship is part of the resolved subgraph only when both its
// endpoints are. Relationship filters narrow the edge set further but never
// bring back an edge whose endpoint was filtered out.
package subgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// FilterKind selects the policy of a NamedTypeFilter.
type FilterKind uint8

const (
	Include FilterKind = iota
	Exclude
)

func (k FilterKind) String() string {
	if k == Exclude {
		return "exclude"
	}
	return "include"
}

func (k FilterKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *FilterKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "include", "":
		*k = Include
	case "exclude":
		*k = Exclude
	default:
		return fmt.Errorf("unknown filter kind %q", string(b))
	}
	return nil
}

// NamedTypeFilter selects instances of one named type, either by explicit
// identifiers or by predicate. When InstanceIDs is non-nil the predicate is
// ignored, and an empty id list selects nothing. An empty predicate matches
// every instance.
type NamedTypeFilter struct {
	Kind        FilterKind              `json:"kind" yaml:"kind"`
	TypeName    string                  `json:"type" yaml:"type"`
	InstanceIDs []graphvalue.Identifier `json:"ids" yaml:"ids"`
	Predicate   string                  `json:"predicate,omitempty" yaml:"predicate,omitempty"`
}

// MarshalYAML writes an empty id list as [] and leaves a nil one out, so
// both selection modes survive a round trip.
func (f NamedTypeFilter) MarshalYAML() (any, error) {
	out := struct {
		Kind        FilterKind               `yaml:"kind"`
		TypeName    string                   `yaml:"type"`
		InstanceIDs *[]graphvalue.Identifier `yaml:"ids,omitempty"`
		Predicate   string                   `yaml:"predicate,omitempty"`
	}{Kind: f.Kind, TypeName: f.TypeName, Predicate: f.Predicate}
	if f.InstanceIDs != nil {
		out.InstanceIDs = &f.InstanceIDs
	}
	return out, nil
}

// FilterSet is the pair of entity and relationship filter lists.
type FilterSet struct {
	EntityFilters       []NamedTypeFilter `json:"entity_filters,omitempty" yaml:"entity_filters,omitempty"`
	RelationshipFilters []NamedTypeFilter `json:"relationship_filters,omitempty" yaml:"relationship_filters,omitempty"`
}

// IncludeSelection turns a selection of instances into an Include filter.
func IncludeSelection(typeName string, ids ...graphvalue.Identifier) NamedTypeFilter {
	return NamedTypeFilter{Kind: Include, TypeName: typeName, InstanceIDs: append([]graphvalue.Identifier{}, ids...)}
}

// ExcludeSelection turns a selection of instances into an Exclude filter.
func ExcludeSelection(typeName string, ids ...graphvalue.Identifier) NamedTypeFilter {
	return NamedTypeFilter{Kind: Exclude, TypeName: typeName, InstanceIDs: append([]graphvalue.Identifier{}, ids...)}
}

// Validate checks the filter set against the schema of r: every type must
// exist and be of the kind of its list, a type cannot have both Include and
// Exclude filters, and every predicate must compile.
func (fs FilterSet) Validate(r core.Reader) error {
	_, err := fs.compile(r)
	return err
}

// typePolicy is the compiled policy of one named type.
type typePolicy struct {
	kind     FilterKind
	ids      map[graphvalue.Identifier]struct{}
	preds    []*core.Predicate
	matchAll bool
}

func (p *typePolicy) add(f NamedTypeFilter) error {
	if f.InstanceIDs != nil {
		for _, id := range f.InstanceIDs {
			p.ids[id] = struct{}{}
		}
		return nil
	}
	pred, err := core.CompilePredicate(f.Predicate)
	if err != nil {
		return err
	}
	if pred == nil {
		p.matchAll = true
		return nil
	}
	p.preds = append(p.preds, pred)
	return nil
}

// matches reports whether any filter of the policy selects the instance.
func (p *typePolicy) matches(id graphvalue.Identifier, eval func(*core.Predicate) (bool, error)) (bool, error) {
	if p.matchAll {
		return true, nil
	}
	if _, ok := p.ids[id]; ok {
		return true, nil
	}
	for _, pred := range p.preds {
		ok, err := eval(pred)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// admits applies the Include or Exclude semantics.
func (p *typePolicy) admits(id graphvalue.Identifier, eval func(*core.Predicate) (bool, error)) (bool, error) {
	if p == nil {
		return true, nil
	}
	m, err := p.matches(id, eval)
	if err != nil {
		return false, err
	}
	if p.kind == Include {
		return m, nil
	}
	return !m, nil
}

type compiled struct {
	entities      map[string]*typePolicy
	relationships map[string]*typePolicy
}

func (fs FilterSet) compile(r core.Reader) (*compiled, error) {
	var unknown, wrongKind, ambiguous []string
	note := func(list *[]string, name string) {
		if !slices.Contains(*list, name) {
			*list = append(*list, name)
		}
	}

	build := func(filters []NamedTypeFilter, want core.TypeKind) (map[string]*typePolicy, error) {
		policies := make(map[string]*typePolicy)
		for _, f := range filters {
			t, ok := r.Type(f.TypeName)
			if !ok {
				note(&unknown, f.TypeName)
				continue
			}
			if t.Kind != want {
				note(&wrongKind, f.TypeName)
				continue
			}
			p, ok := policies[f.TypeName]
			if !ok {
				p = &typePolicy{kind: f.Kind, ids: make(map[graphvalue.Identifier]struct{})}
				policies[f.TypeName] = p
			} else if p.kind != f.Kind {
				note(&ambiguous, f.TypeName)
				continue
			}
			if err := p.add(f); err != nil {
				return nil, err
			}
		}
		return policies, nil
	}

	c := &compiled{}
	var err error
	if c.entities, err = build(fs.EntityFilters, core.EntityType); err != nil {
		return nil, err
	}
	if c.relationships, err = build(fs.RelationshipFilters, core.RelationshipType); err != nil {
		return nil, err
	}

	switch {
	case len(unknown) > 0:
		return nil, kgerr.Validation("unknown type names", unknown...)
	case len(wrongKind) > 0:
		return nil, kgerr.Validation("filter type is not of the kind of its list", wrongKind...)
	case len(ambiguous) > 0:
		return nil, kgerr.Validation("both include and exclude filters for the same type", ambiguous...)
	}
	return c, nil
}
