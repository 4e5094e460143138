package pathfinding

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// cancelCheckInterval is how many expanded entities pass between context checks.
const cancelCheckInterval = 1024

// costEpsilon absorbs rounding when comparing summed costs.
const costEpsilon = 1e-9

// Engine runs find-paths searches.
type Engine struct{}

// Run searches r for the paths described by cfg. The reader must stay
// valid for the whole call; the returned Results do not reference it.
func (e *Engine) Run(ctx context.Context, r core.Reader, cfg Config) (*Results, error) {
	if err := cfg.Validate(r); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, kgerr.FromContext(err)
	}

	s, err := newSearch(ctx, r, cfg)
	if err != nil {
		return nil, err
	}
	origins, err := s.selectEntities(cfg.Origins)
	if err != nil {
		return nil, err
	}
	destinations, err := s.selectEntities(cfg.Destinations)
	if err != nil {
		return nil, err
	}
	if len(origins) == 0 || len(destinations) == 0 {
		slog.Debug("[FFP] Empty endpoint set", "origins", len(origins), "destinations", len(destinations))
		return newResults(nil), nil
	}
	for i, d := range destinations {
		s.destinations[d.ID] = i
	}

	for i, o := range origins {
		if s.filters.excluded(o) {
			continue
		}
		s.origin = i
		s.push(o, nil)
		err := s.visit(0)
		s.pop()
		if err != nil {
			return nil, err
		}
		if s.done {
			break
		}
	}

	if s.filters.err != nil {
		return nil, s.filters.err
	}

	res := newResults(s.collected())
	slog.Debug("[FFP] Search finished",
		"mode", cfg.PathMode,
		"origins", len(origins),
		"destinations", len(destinations),
		"expanded", s.expanded,
		"paths", res.CountPaths())
	return res, nil
}

// step is one relationship of a hop, with the direction it was walked in.
type step struct {
	rel  *core.RelationshipRecord
	same bool
	cost float64
}

// hop groups the permitted relationships between two consecutive entities.
type hop struct {
	to      *core.EntityRecord
	steps   []step
	minCost float64
	maxCost float64
}

// candidate is a found path before it is packed into Results.
type candidate struct {
	entities    []*core.EntityRecord
	hops        []hop
	minCost     float64
	maxCost     float64
	origin      int
	destination int
}

type groupKey struct{ origin, destination int }

type search struct {
	ctx     context.Context
	r       core.Reader
	cfg     Config
	filters *compiledFilters

	destinations map[graphvalue.Identifier]int
	adjacency    map[graphvalue.Identifier][]hop

	// state of the path being extended
	origin    int
	entities  []*core.EntityRecord
	hops      []hop
	onPath    map[graphvalue.Identifier]int
	minCost   float64
	maxCost   float64
	waypoints waypointState

	expanded int
	done     bool

	all      []candidate
	best     map[groupKey]float64
	shortest map[groupKey][]candidate
	keyOrder []groupKey
}

func newSearch(ctx context.Context, r core.Reader, cfg Config) (*search, error) {
	filters, err := compileFilters(cfg.PathFilters)
	if err != nil {
		return nil, err
	}
	return &search{
		ctx:          ctx,
		r:            r,
		cfg:          cfg,
		filters:      filters,
		destinations: make(map[graphvalue.Identifier]int),
		adjacency:    make(map[graphvalue.Identifier][]hop),
		onPath:       make(map[graphvalue.Identifier]int),
		waypoints:    newWaypointState(filters),
		best:         make(map[groupKey]float64),
		shortest:     make(map[groupKey][]candidate),
	}, nil
}

// selectEntities resolves selectors in order, dropping duplicates. An
// instance selector naming an entity of another type is a validation error;
// a missing instance selects nothing.
func (s *search) selectEntities(selectors []EntitySelector) ([]*core.EntityRecord, error) {
	var out []*core.EntityRecord
	seen := make(map[graphvalue.Identifier]struct{})
	add := func(e *core.EntityRecord) {
		if _, dup := seen[e.ID]; !dup {
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	for _, sel := range selectors {
		if !sel.InstanceID.IsZero() {
			e, ok := s.r.Entity(sel.InstanceID)
			if !ok {
				continue
			}
			if e.TypeName != sel.TypeName {
				return nil, kgerr.Validation(fmt.Sprintf("entity %s is a %s, not a %s", e.ID, e.TypeName, sel.TypeName), e.ID.String())
			}
			add(e)
			continue
		}
		pred, err := core.CompilePredicate(sel.Predicate)
		if err != nil {
			return nil, err
		}
		var scanErr error
		s.r.ScanEntities(sel.TypeName, func(e *core.EntityRecord) bool {
			ok, err := pred.MatchEntity(e)
			if err != nil {
				scanErr = err
				return false
			}
			if ok {
				add(e)
			}
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}
	}
	return out, nil
}

func (s *search) push(e *core.EntityRecord, h *hop) {
	s.entities = append(s.entities, e)
	s.onPath[e.ID]++
	s.waypoints.enterEntity(s.filters, e)
	if h != nil {
		s.hops = append(s.hops, *h)
		s.minCost += h.minCost
		s.maxCost += h.maxCost
		for _, st := range h.steps {
			s.waypoints.enterRelationship(s.filters, st.rel)
		}
	}
}

func (s *search) pop() {
	last := len(s.entities) - 1
	e := s.entities[last]
	s.entities = s.entities[:last]
	if s.onPath[e.ID]--; s.onPath[e.ID] == 0 {
		delete(s.onPath, e.ID)
	}
	s.waypoints.leaveEntity(s.filters, e)
	if last == 0 {
		return
	}
	h := s.hops[last-1]
	s.hops = s.hops[:last-1]
	for _, st := range h.steps {
		s.waypoints.leaveRelationship(s.filters, st.rel)
	}
	if len(s.hops) == 0 {
		s.minCost, s.maxCost = 0, 0
		return
	}
	s.minCost -= h.minCost
	s.maxCost -= h.maxCost
}

// visit extends the current path from its last entity.
func (s *search) visit(depth int) error {
	s.expanded++
	if s.expanded%cancelCheckInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			return kgerr.FromContext(err)
		}
	}

	cur := s.entities[len(s.entities)-1]
	if depth >= s.cfg.MinPathLength {
		if dest, ok := s.destinations[cur.ID]; ok && s.waypoints.satisfied() {
			s.record(dest)
			if s.done {
				return nil
			}
		}
	}
	if depth == s.cfg.MaxPathLength {
		return nil
	}
	// Past this point cur becomes an intermediate entity.
	if depth > 0 && !s.filters.allowsIntermediate(cur) {
		return nil
	}

	hops, err := s.expand(cur)
	if err != nil {
		return err
	}
	for i := range hops {
		h := &hops[i]
		if s.cfg.ClosedPaths == Forbid && s.onPath[h.to.ID] > 0 {
			continue
		}
		if s.pruned(h) {
			continue
		}
		s.push(h.to, h)
		err := s.visit(depth + 1)
		s.pop()
		if err != nil {
			return err
		}
		if s.done {
			return nil
		}
	}
	return nil
}

// pruned reports whether extending with h cannot produce a path at least as
// cheap as the best one already found for the group. Only usages whose group
// does not depend on the destination can be pruned before reaching it.
func (s *search) pruned(h *hop) bool {
	if s.cfg.PathMode != Shortest {
		return false
	}
	if s.cfg.EntityUsage != AnyOriginAnyDestination && s.cfg.EntityUsage != EachOriginAnyDestination {
		return false
	}
	best, ok := s.best[s.key(0)]
	return ok && s.minCost+h.minCost > best+costEpsilon
}

// expand lists the hops leaving e, memoized per entity.
func (s *search) expand(e *core.EntityRecord) ([]hop, error) {
	if hops, ok := s.adjacency[e.ID]; ok {
		return hops, nil
	}

	var (
		hops    []hop
		byEnd   = make(map[graphvalue.Identifier]int)
		walkErr error
	)
	add := func(rel *core.RelationshipRecord, other graphvalue.Identifier, same bool) bool {
		if rel.Origin != rel.Destination {
			switch s.cfg.TraversalDirections[rel.TypeName] {
			case Forward:
				if !same {
					return true
				}
			case Backward:
				if same {
					return true
				}
			}
		}
		if !s.filters.allowsRelationship(rel) {
			return true
		}
		to, ok := s.r.Entity(other)
		if !ok || s.filters.excluded(to) {
			return true
		}
		cost, err := s.cost(rel)
		if err != nil {
			walkErr = err
			return false
		}
		i, ok := byEnd[other]
		if !ok {
			i = len(hops)
			byEnd[other] = i
			hops = append(hops, hop{to: to, minCost: math.Inf(1), maxCost: math.Inf(-1)})
		}
		h := &hops[i]
		h.steps = append(h.steps, step{rel: rel, same: same, cost: cost})
		h.minCost = math.Min(h.minCost, cost)
		h.maxCost = math.Max(h.maxCost, cost)
		return true
	}

	s.r.Outgoing(e.ID, func(rel *core.RelationshipRecord) bool {
		return add(rel, rel.Destination, true)
	})
	if walkErr == nil {
		s.r.Incoming(e.ID, func(rel *core.RelationshipRecord) bool {
			if rel.Origin == rel.Destination {
				return true
			}
			return add(rel, rel.Origin, false)
		})
	}
	if walkErr != nil {
		return nil, walkErr
	}
	s.adjacency[e.ID] = hops
	return hops, nil
}

func (s *search) cost(rel *core.RelationshipRecord) (float64, error) {
	if s.cfg.CostProperty == "" {
		return s.cfg.DefaultCost, nil
	}
	c, ok := rel.Number(s.cfg.CostProperty)
	if !ok {
		return s.cfg.DefaultCost, nil
	}
	if c < 0 || math.IsNaN(c) {
		return 0, kgerr.Validation(fmt.Sprintf("relationship %s has a negative cost", rel.ID), s.cfg.CostProperty)
	}
	return c, nil
}

func (s *search) key(destination int) groupKey {
	switch s.cfg.EntityUsage {
	case AnyOriginAnyDestination:
		return groupKey{-1, -1}
	case EachOriginAnyDestination:
		return groupKey{s.origin, -1}
	case AnyOriginEachDestination:
		return groupKey{-1, destination}
	default:
		return groupKey{s.origin, destination}
	}
}

func (s *search) record(destination int) {
	c := candidate{
		entities:    append([]*core.EntityRecord(nil), s.entities...),
		hops:        append([]hop(nil), s.hops...),
		minCost:     s.minCost,
		maxCost:     s.maxCost,
		origin:      s.origin,
		destination: destination,
	}

	if s.cfg.PathMode == AllPaths {
		s.all = append(s.all, c)
		s.done = len(s.all) >= s.cfg.MaxResultPaths
		return
	}

	k := s.key(destination)
	best, seen := s.best[k]
	switch {
	case !seen:
		s.keyOrder = append(s.keyOrder, k)
		fallthrough
	case c.minCost < best-costEpsilon:
		s.best[k] = c.minCost
		s.shortest[k] = []candidate{c}
	case c.minCost <= best+costEpsilon:
		s.shortest[k] = append(s.shortest[k], c)
	}
}

// collected returns the kept candidates, truncated to MaxResultPaths.
func (s *search) collected() []candidate {
	out := s.all
	if s.cfg.PathMode == Shortest {
		for _, k := range s.keyOrder {
			out = append(out, s.shortest[k]...)
		}
	}
	if len(out) > s.cfg.MaxResultPaths {
		out = out[:s.cfg.MaxResultPaths]
	}
	return out
}
