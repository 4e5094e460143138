package engine

import (
	"fmt"
	"log/slog"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// DefineType adds or updates a named type of the schema.
func (e *Engine) DefineType(t core.NamedType) error {
	if err := e.Graph.DefineType(t); err != nil {
		return err
	}
	slog.Debug("Type defined", "name", t.Name, "kind", t.Kind)
	return nil
}

// Schema returns the named types sorted by name.
func (e *Engine) Schema() []core.NamedType {
	var out []core.NamedType
	_ = e.Graph.Read(func(r core.Reader) error {
		out = r.Types()
		return nil
	})
	return out
}

// UpsertEntity stores an entity. A zero ID gets a fresh UUID.
func (e *Engine) UpsertEntity(rec core.EntityRecord) (*core.EntityRecord, error) {
	stored, err := e.Graph.UpsertEntity(rec)
	if err != nil {
		return nil, err
	}
	e.updateGraphGauges()
	return stored, nil
}

// Link stores a relationship between two existing entities. A zero ID
// gets a fresh UUID.
func (e *Engine) Link(rec core.RelationshipRecord) (*core.RelationshipRecord, error) {
	stored, err := e.Graph.UpsertRelationship(rec)
	if err != nil {
		return nil, err
	}
	e.updateGraphGauges()
	return stored, nil
}

// Unlink deletes a relationship.
func (e *Engine) Unlink(id graphvalue.Identifier) error {
	if !e.Graph.DeleteRelationship(id) {
		return fmt.Errorf("%w: relationship %s not found", kgerr.ErrInvalidState, id)
	}
	e.updateGraphGauges()
	return nil
}

// DeleteEntity deletes an entity and every relationship touching it.
func (e *Engine) DeleteEntity(id graphvalue.Identifier) error {
	if !e.Graph.DeleteEntity(id) {
		return fmt.Errorf("%w: entity %s not found", kgerr.ErrInvalidState, id)
	}
	e.updateGraphGauges()
	return nil
}

// Entity returns a stored entity.
func (e *Engine) Entity(id graphvalue.Identifier) (*core.EntityRecord, bool) {
	var (
		rec *core.EntityRecord
		ok  bool
	)
	_ = e.Graph.Read(func(r core.Reader) error {
		rec, ok = r.Entity(id)
		return nil
	})
	return rec, ok
}
