package subgraph

import (
	"context"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// cancelCheckInterval is how many records are scanned between context checks.
const cancelCheckInterval = 1024

// Resolved is the induced subgraph selected by a FilterSet. Entities are
// listed by type name, then in store order; relationships likewise.
type Resolved struct {
	entities      []*core.EntityRecord
	relationships []*core.RelationshipRecord
	entitySet     map[graphvalue.Identifier]struct{}
	relSet        map[graphvalue.Identifier]struct{}
}

// Entities returns the included entities.
func (s *Resolved) Entities() []*core.EntityRecord { return s.entities }

// Relationships returns the included relationships.
func (s *Resolved) Relationships() []*core.RelationshipRecord { return s.relationships }

// IncludesEntity reports whether the entity is part of the subgraph.
func (s *Resolved) IncludesEntity(id graphvalue.Identifier) bool {
	_, ok := s.entitySet[id]
	return ok
}

// IncludesRelationship reports whether the relationship is part of the subgraph.
func (s *Resolved) IncludesRelationship(id graphvalue.Identifier) bool {
	_, ok := s.relSet[id]
	return ok
}

// Resolve validates fs against r and computes the induced subgraph.
func Resolve(ctx context.Context, r core.Reader, fs FilterSet) (*Resolved, error) {
	c, err := fs.compile(r)
	if err != nil {
		return nil, err
	}

	s := &Resolved{
		entitySet: make(map[graphvalue.Identifier]struct{}),
		relSet:    make(map[graphvalue.Identifier]struct{}),
	}
	scanned := 0
	var scanErr error
	checkCtx := func() bool {
		scanned++
		if scanned%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				scanErr = kgerr.FromContext(err)
				return false
			}
		}
		return true
	}

	for _, typeName := range core.EntityTypes(r) {
		policy := c.entities[typeName]
		r.ScanEntities(typeName, func(e *core.EntityRecord) bool {
			if !checkCtx() {
				return false
			}
			ok, err := policy.admits(e.ID, func(p *core.Predicate) (bool, error) { return p.MatchEntity(e) })
			if err != nil {
				scanErr = err
				return false
			}
			if ok {
				s.entities = append(s.entities, e)
				s.entitySet[e.ID] = struct{}{}
			}
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}
	}

	for _, typeName := range core.RelationshipTypes(r) {
		policy := c.relationships[typeName]
		r.ScanRelationships(typeName, func(rel *core.RelationshipRecord) bool {
			if !checkCtx() {
				return false
			}
			if !s.IncludesEntity(rel.Origin) || !s.IncludesEntity(rel.Destination) {
				return true
			}
			ok, err := policy.admits(rel.ID, func(p *core.Predicate) (bool, error) { return p.MatchRelationship(rel) })
			if err != nil {
				scanErr = err
				return false
			}
			if ok {
				s.relationships = append(s.relationships, rel)
				s.relSet[rel.ID] = struct{}{}
			}
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}
	}
	return s, nil
}
