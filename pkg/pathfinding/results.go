package pathfinding

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// TraversedRelationship is one relationship of a hop.
type TraversedRelationship struct {
	Relationship        *graphvalue.Relationship
	Cost                float64
	SameDirectionAsPath bool
}

// RelationshipGroup is a hop: the parallel relationships walked between
// two consecutive entities of a path.
type RelationshipGroup struct {
	From          *graphvalue.Entity
	To            *graphvalue.Entity
	Relationships []TraversedRelationship
}

// ResultPath is a materialized path.
type ResultPath struct {
	Length  int
	MinCost float64
	MaxCost float64
	Groups  []RelationshipGroup
}

// Entities returns the entities of the path from origin to destination.
func (p *ResultPath) Entities() []*graphvalue.Entity {
	if len(p.Groups) == 0 {
		return nil
	}
	out := make([]*graphvalue.Entity, 0, len(p.Groups)+1)
	out = append(out, p.Groups[0].From)
	for _, g := range p.Groups {
		out = append(out, g.To)
	}
	return out
}

// String renders the path as "A -[ShipsTo]-> B <-[ShipsTo]- C", naming
// entities by label when they have one. A hop walked both ways is drawn
// "<-[T]->".
func (p *ResultPath) String() string {
	name := func(e *graphvalue.Entity) string {
		if e.Label() != "" {
			return e.Label()
		}
		return e.Identifier().String()
	}

	var sb strings.Builder
	for i, g := range p.Groups {
		if i == 0 {
			sb.WriteString(name(g.From))
		}
		types := make([]string, 0, len(g.Relationships))
		forward, backward := false, false
		for _, tr := range g.Relationships {
			types = append(types, tr.Relationship.TypeName())
			if tr.SameDirectionAsPath {
				forward = true
			} else {
				backward = true
			}
		}
		label := strings.Join(slices.Compact(slices.Sorted(slices.Values(types))), "|")
		switch {
		case forward && backward:
			fmt.Fprintf(&sb, " <-[%s]-> ", label)
		case backward:
			fmt.Fprintf(&sb, " <-[%s]- ", label)
		default:
			fmt.Fprintf(&sb, " -[%s]-> ", label)
		}
		sb.WriteString(name(g.To))
	}
	return sb.String()
}

type packedStep struct {
	Rel  int     `json:"r"`
	Same bool    `json:"f"`
	Cost float64 `json:"c"`
}

type packedPath struct {
	Entities []int          `json:"e"`
	Hops     [][]packedStep `json:"h"`
	MinCost  float64        `json:"min"`
	MaxCost  float64        `json:"max"`
}

// Results holds the paths found by a run. Paths are stored compactly and
// materialized on demand; a Results is safe for concurrent use.
type Results struct {
	entities      []*core.EntityRecord
	relationships []*core.RelationshipRecord
	paths         []packedPath

	byLength  []int
	byMinCost []int
	byMaxCost []int

	mu           sync.Mutex
	entityValues []*graphvalue.Entity
	relValues    []*graphvalue.Relationship
	materialized map[int]*ResultPath
}

func newResults(cands []candidate) *Results {
	res := &Results{}
	entityIdx := make(map[graphvalue.Identifier]int)
	relIdx := make(map[graphvalue.Identifier]int)
	for _, c := range cands {
		p := packedPath{MinCost: c.minCost, MaxCost: c.maxCost}
		for _, e := range c.entities {
			i, ok := entityIdx[e.ID]
			if !ok {
				i = len(res.entities)
				entityIdx[e.ID] = i
				res.entities = append(res.entities, e)
			}
			p.Entities = append(p.Entities, i)
		}
		for _, h := range c.hops {
			steps := make([]packedStep, len(h.steps))
			for j, st := range h.steps {
				i, ok := relIdx[st.rel.ID]
				if !ok {
					i = len(res.relationships)
					relIdx[st.rel.ID] = i
					res.relationships = append(res.relationships, st.rel)
				}
				steps[j] = packedStep{Rel: i, Same: st.same, Cost: st.cost}
			}
			p.Hops = append(p.Hops, steps)
		}
		res.paths = append(res.paths, p)
	}
	res.index()
	return res
}

// index computes the orderings and resets the materialization caches.
func (r *Results) index() {
	order := func(key func(p packedPath) float64) []int {
		idx := make([]int, len(r.paths))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(key(r.paths[a]), key(r.paths[b])) })
		return idx
	}
	r.byLength = order(func(p packedPath) float64 { return float64(len(p.Hops)) })
	r.byMinCost = order(func(p packedPath) float64 { return p.MinCost })
	r.byMaxCost = order(func(p packedPath) float64 { return p.MaxCost })
	r.entityValues = make([]*graphvalue.Entity, len(r.entities))
	r.relValues = make([]*graphvalue.Relationship, len(r.relationships))
	r.materialized = make(map[int]*ResultPath)
}

// CountPaths returns the number of paths found.
func (r *Results) CountPaths() int { return len(r.paths) }

// PathsByIncreasingLength returns path indices ordered by hop count. Ties
// keep discovery order, as do the other orderings.
func (r *Results) PathsByIncreasingLength() []int { return slices.Clone(r.byLength) }

// PathsByIncreasingMinCost returns path indices ordered by minimum cost.
func (r *Results) PathsByIncreasingMinCost() []int { return slices.Clone(r.byMinCost) }

// PathsByIncreasingMaxCost returns path indices ordered by maximum cost.
func (r *Results) PathsByIncreasingMaxCost() []int { return slices.Clone(r.byMaxCost) }

func (r *Results) checkIndex(i int) error {
	if i < 0 || i >= len(r.paths) {
		return kgerr.Validation(fmt.Sprintf("path index %d out of range [0,%d)", i, len(r.paths)), "path_index")
	}
	return nil
}

// entityValue and relValue must be called with mu held.
func (r *Results) entityValue(i int) *graphvalue.Entity {
	if r.entityValues[i] == nil {
		r.entityValues[i] = r.entities[i].Value()
	}
	return r.entityValues[i]
}

func (r *Results) relValue(i int) *graphvalue.Relationship {
	if r.relValues[i] == nil {
		r.relValues[i] = r.relationships[i].Value()
	}
	return r.relValues[i]
}

// MaterializePath builds path i. Repeated calls return the same value.
func (r *Results) MaterializePath(i int) (*ResultPath, error) {
	if err := r.checkIndex(i); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.materialized[i]; ok {
		return p, nil
	}

	pp := r.paths[i]
	p := &ResultPath{Length: len(pp.Hops), MinCost: pp.MinCost, MaxCost: pp.MaxCost}
	for h, steps := range pp.Hops {
		g := RelationshipGroup{
			From:          r.entityValue(pp.Entities[h]),
			To:            r.entityValue(pp.Entities[h+1]),
			Relationships: make([]TraversedRelationship, len(steps)),
		}
		for j, st := range steps {
			g.Relationships[j] = TraversedRelationship{
				Relationship:        r.relValue(st.Rel),
				Cost:                st.Cost,
				SameDirectionAsPath: st.Same,
			}
		}
		p.Groups = append(p.Groups, g)
	}
	r.materialized[i] = p
	return p, nil
}

// PathsEntitiesAndRelationships is the deduplicated union of a set of
// paths. Entities and relationships appear in order of first use.
type PathsEntitiesAndRelationships struct {
	Entities      []*graphvalue.Entity
	Relationships []*graphvalue.Relationship
	// RelationshipsFrom and RelationshipsTo give, for each relationship, the
	// index in Entities of its stored origin and destination.
	RelationshipsFrom []int
	RelationshipsTo   []int
	// Origins and Destinations index the entities that start or end at
	// least one of the selected paths.
	Origins      []int
	Destinations []int
}

// IDSet groups the identifiers of every entity and relationship by type name.
func (p *PathsEntitiesAndRelationships) IDSet() map[string][]graphvalue.Identifier {
	out := make(map[string][]graphvalue.Identifier)
	for _, e := range p.Entities {
		out[e.TypeName()] = append(out[e.TypeName()], e.Identifier())
	}
	for _, r := range p.Relationships {
		out[r.TypeName()] = append(out[r.TypeName()], r.Identifier())
	}
	return out
}

// ExtractPathsEntitiesAndRelationships collects the entities and
// relationships of the given paths. A nil slice selects every path.
func (r *Results) ExtractPathsEntitiesAndRelationships(indices []int) (*PathsEntitiesAndRelationships, error) {
	if indices == nil {
		indices = make([]int, len(r.paths))
		for i := range indices {
			indices[i] = i
		}
	}
	for _, i := range indices {
		if err := r.checkIndex(i); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := &PathsEntitiesAndRelationships{}
	entityPos := make(map[int]int)
	relSeen := make(map[int]struct{})
	originSeen := make(map[int]struct{})
	destSeen := make(map[int]struct{})
	entity := func(i int) int {
		if pos, ok := entityPos[i]; ok {
			return pos
		}
		pos := len(out.Entities)
		entityPos[i] = pos
		out.Entities = append(out.Entities, r.entityValue(i))
		return pos
	}
	byID := make(map[graphvalue.Identifier]int, len(r.entities))
	for i, e := range r.entities {
		byID[e.ID] = i
	}

	for _, pi := range indices {
		pp := r.paths[pi]
		for _, e := range pp.Entities {
			entity(e)
		}
		if pos := entityPos[pp.Entities[0]]; !contains(originSeen, pos) {
			originSeen[pos] = struct{}{}
			out.Origins = append(out.Origins, pos)
		}
		if pos := entityPos[pp.Entities[len(pp.Entities)-1]]; !contains(destSeen, pos) {
			destSeen[pos] = struct{}{}
			out.Destinations = append(out.Destinations, pos)
		}
		for _, steps := range pp.Hops {
			for _, st := range steps {
				if contains(relSeen, st.Rel) {
					continue
				}
				relSeen[st.Rel] = struct{}{}
				rec := r.relationships[st.Rel]
				out.Relationships = append(out.Relationships, r.relValue(st.Rel))
				out.RelationshipsFrom = append(out.RelationshipsFrom, entity(byID[rec.Origin]))
				out.RelationshipsTo = append(out.RelationshipsTo, entity(byID[rec.Destination]))
			}
		}
	}
	return out, nil
}

func contains(set map[int]struct{}, k int) bool {
	_, ok := set[k]
	return ok
}

type resultsJSON struct {
	Entities      []*core.EntityRecord       `json:"entities"`
	Relationships []*core.RelationshipRecord `json:"relationships"`
	Paths         []packedPath               `json:"paths"`
}

// MarshalJSON encodes the compact form of the results.
func (r *Results) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultsJSON{
		Entities:      r.entities,
		Relationships: r.relationships,
		Paths:         r.paths,
	})
}

// UnmarshalJSON decodes results produced by MarshalJSON.
func (r *Results) UnmarshalJSON(data []byte) error {
	var w resultsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	known := make(map[graphvalue.Identifier]struct{}, len(w.Entities))
	for i, e := range w.Entities {
		if e == nil {
			return fmt.Errorf("entity %d is null", i)
		}
		known[e.ID] = struct{}{}
	}
	for i, rec := range w.Relationships {
		if rec == nil {
			return fmt.Errorf("relationship %d is null", i)
		}
		for _, end := range []graphvalue.Identifier{rec.Origin, rec.Destination} {
			if _, ok := known[end]; !ok {
				return fmt.Errorf("relationship %s: endpoint %s is not a result entity", rec.ID, end)
			}
		}
	}
	for i, p := range w.Paths {
		if len(p.Entities) != len(p.Hops)+1 {
			return fmt.Errorf("path %d: %d entities for %d hops", i, len(p.Entities), len(p.Hops))
		}
		for _, e := range p.Entities {
			if e < 0 || e >= len(w.Entities) {
				return fmt.Errorf("path %d: entity index %d out of range", i, e)
			}
		}
		for _, steps := range p.Hops {
			if len(steps) == 0 {
				return fmt.Errorf("path %d: empty hop", i)
			}
			for _, st := range steps {
				if st.Rel < 0 || st.Rel >= len(w.Relationships) {
					return fmt.Errorf("path %d: relationship index %d out of range", i, st.Rel)
				}
			}
		}
	}
	r.entities = w.Entities
	r.relationships = w.Relationships
	r.paths = w.Paths
	r.index()
	return nil
}
