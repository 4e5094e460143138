package engine

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
)

// Seed is a graph described in YAML:
//
//	types:
//	  - {name: Supplier, kind: entity, label_property: name}
//	  - {name: ShipsTo, kind: relationship}
//	entities:
//	  - {id: s1, type: Supplier, props: {name: Steel Co}}
//	relationships:
//	  - {id: r1, type: ShipsTo, origin: s1, destination: w1, props: {cost: 2}}
type Seed struct {
	Types         []core.NamedType   `yaml:"types"`
	Entities      []SeedEntity       `yaml:"entities"`
	Relationships []SeedRelationship `yaml:"relationships"`
}

type SeedEntity struct {
	ID    string         `yaml:"id"`
	Type  string         `yaml:"type"`
	Label string         `yaml:"label"`
	Props map[string]any `yaml:"props"`
}

type SeedRelationship struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	Origin      string         `yaml:"origin"`
	Destination string         `yaml:"destination"`
	Props       map[string]any `yaml:"props"`
}

// ParseSeed decodes a seed document. Unknown fields are rejected.
func ParseSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seed graph: %w", err)
	}
	return &seed, nil
}

// LoadSeed applies a seed to the graph: types first, then entities, then
// relationships. It returns the number of records stored.
func (e *Engine) LoadSeed(seed *Seed) (int, error) {
	for _, t := range seed.Types {
		if err := e.DefineType(t); err != nil {
			return 0, fmt.Errorf("type %q: %w", t.Name, err)
		}
	}
	n := 0
	for _, ent := range seed.Entities {
		_, err := e.UpsertEntity(core.EntityRecord{
			ID:       graphvalue.ParseIdentifier(ent.ID),
			TypeName: ent.Type,
			Label:    ent.Label,
			Props:    ent.Props,
		})
		if err != nil {
			return n, fmt.Errorf("entity %q: %w", ent.ID, err)
		}
		n++
	}
	for _, rel := range seed.Relationships {
		_, err := e.Link(core.RelationshipRecord{
			ID:          graphvalue.ParseIdentifier(rel.ID),
			TypeName:    rel.Type,
			Origin:      graphvalue.ParseIdentifier(rel.Origin),
			Destination: graphvalue.ParseIdentifier(rel.Destination),
			Props:       rel.Props,
		})
		if err != nil {
			return n, fmt.Errorf("relationship %q: %w", rel.ID, err)
		}
		n++
	}
	return n, nil
}

// LoadSeedFile parses and applies the seed stored at path.
func (e *Engine) LoadSeedFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	seed, err := ParseSeed(f)
	if err != nil {
		return 0, err
	}
	return e.LoadSeed(seed)
}
