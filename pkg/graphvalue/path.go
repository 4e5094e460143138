package graphvalue

import "github.com/sanonone/kektorgraph/pkg/kgerr"

// Path is an ordered alternating walk e0 r0 e1 r1 ... eN. A path of N hops
// holds N relationships and N+1 entities.
type Path struct {
	entities      []*Entity
	relationships []*Relationship
}

// NewPath validates the alternation counts and copies the slices.
func NewPath(entities []*Entity, relationships []*Relationship) (*Path, error) {
	if len(entities) != len(relationships)+1 {
		return nil, kgerr.Validation("path must hold one more entity than relationships")
	}
	p := &Path{
		entities:      make([]*Entity, len(entities)),
		relationships: make([]*Relationship, len(relationships)),
	}
	copy(p.entities, entities)
	copy(p.relationships, relationships)
	return p, nil
}

func (*Path) Kind() Kind  { return KindPath }
func (*Path) graphValue() {}

// Length returns the number of hops.
func (p *Path) Length() int { return len(p.relationships) }

func (p *Path) EntityCount() int       { return len(p.entities) }
func (p *Path) RelationshipCount() int { return len(p.relationships) }

func (p *Path) Entity(i int) *Entity             { return p.entities[i] }
func (p *Path) Relationship(i int) *Relationship { return p.relationships[i] }
