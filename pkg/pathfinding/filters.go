package pathfinding

import (
	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
)

type compiledFilter struct {
	PathFilter
	pred *core.Predicate
}

func (f *compiledFilter) matches(kind ItemKind, typeName string, id graphvalue.Identifier, eval func(*core.Predicate) (bool, error)) (bool, error) {
	if f.ItemKind != kind || f.TypeName != typeName {
		return false, nil
	}
	if !f.InstanceID.IsZero() {
		return f.InstanceID == id, nil
	}
	return eval(f.pred)
}

// marks caches how the filters see one item.
type marks struct {
	excluded  bool
	included  bool
	mandatory []int
	optional  bool
}

type compiledFilters struct {
	includeEntities      []compiledFilter
	includeRelationships []compiledFilter
	exclude              []compiledFilter
	mandatory            []compiledFilter
	optional             []compiledFilter

	entityMarks map[graphvalue.Identifier]*marks
	relMarks    map[graphvalue.Identifier]*marks

	// err is the first predicate evaluation failure; the item is treated
	// as unmatched and the search reports err once it stops.
	err error
}

func compileFilters(filters []PathFilter) (*compiledFilters, error) {
	c := &compiledFilters{
		entityMarks: make(map[graphvalue.Identifier]*marks),
		relMarks:    make(map[graphvalue.Identifier]*marks),
	}
	for _, f := range filters {
		cf := compiledFilter{PathFilter: f}
		if f.InstanceID.IsZero() {
			p, err := core.CompilePredicate(f.Predicate)
			if err != nil {
				return nil, err
			}
			cf.pred = p
		}
		switch f.Kind {
		case IncludeOnly:
			if f.ItemKind == EntityItem {
				c.includeEntities = append(c.includeEntities, cf)
			} else {
				c.includeRelationships = append(c.includeRelationships, cf)
			}
		case Exclude:
			c.exclude = append(c.exclude, cf)
		case MandatoryWaypoint:
			c.mandatory = append(c.mandatory, cf)
		case OptionalWaypoint:
			c.optional = append(c.optional, cf)
		}
	}
	return c, nil
}

func (c *compiledFilters) mark(kind ItemKind, typeName string, id graphvalue.Identifier, eval func(*core.Predicate) (bool, error)) *marks {
	cache := c.entityMarks
	include := c.includeEntities
	if kind == RelationshipItem {
		cache = c.relMarks
		include = c.includeRelationships
	}
	if m, ok := cache[id]; ok {
		return m
	}

	m := &marks{included: len(include) == 0}
	hit := func(f *compiledFilter) bool {
		ok, err := f.matches(kind, typeName, id, eval)
		if err != nil && c.err == nil {
			c.err = err
		}
		return ok
	}
	for i := range c.exclude {
		if hit(&c.exclude[i]) {
			m.excluded = true
			break
		}
	}
	for i := range include {
		if !m.included && hit(&include[i]) {
			m.included = true
		}
	}
	for i := range c.mandatory {
		if hit(&c.mandatory[i]) {
			m.mandatory = append(m.mandatory, i)
		}
	}
	for i := range c.optional {
		if hit(&c.optional[i]) {
			m.optional = true
			break
		}
	}
	cache[id] = m
	return m
}

func (c *compiledFilters) entity(e *core.EntityRecord) *marks {
	return c.mark(EntityItem, e.TypeName, e.ID, func(p *core.Predicate) (bool, error) { return p.MatchEntity(e) })
}

func (c *compiledFilters) relationship(r *core.RelationshipRecord) *marks {
	return c.mark(RelationshipItem, r.TypeName, r.ID, func(p *core.Predicate) (bool, error) { return p.MatchRelationship(r) })
}

// excluded reports whether a path may not touch e.
func (c *compiledFilters) excluded(e *core.EntityRecord) bool { return c.entity(e).excluded }

// allowsIntermediate reports whether e may sit strictly inside a path.
func (c *compiledFilters) allowsIntermediate(e *core.EntityRecord) bool { return c.entity(e).included }

// allowsRelationship reports whether a path may walk r.
func (c *compiledFilters) allowsRelationship(r *core.RelationshipRecord) bool {
	m := c.relationship(r)
	return !m.excluded && m.included
}

// waypointState counts how many items of the current path match each
// waypoint filter.
type waypointState struct {
	mandatory   []int
	optional    int
	hasOptional bool
}

func newWaypointState(c *compiledFilters) waypointState {
	return waypointState{
		mandatory:   make([]int, len(c.mandatory)),
		hasOptional: len(c.optional) > 0,
	}
}

func (w *waypointState) add(m *marks, delta int) {
	for _, i := range m.mandatory {
		w.mandatory[i] += delta
	}
	if m.optional {
		w.optional += delta
	}
}

func (w *waypointState) enterEntity(c *compiledFilters, e *core.EntityRecord) { w.add(c.entity(e), 1) }
func (w *waypointState) leaveEntity(c *compiledFilters, e *core.EntityRecord) { w.add(c.entity(e), -1) }

func (w *waypointState) enterRelationship(c *compiledFilters, r *core.RelationshipRecord) {
	w.add(c.relationship(r), 1)
}

func (w *waypointState) leaveRelationship(c *compiledFilters, r *core.RelationshipRecord) {
	w.add(c.relationship(r), -1)
}

func (w *waypointState) satisfied() bool {
	for _, n := range w.mandatory {
		if n == 0 {
			return false
		}
	}
	return !w.hasOptional || w.optional > 0
}
