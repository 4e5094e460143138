package core

import (
	"fmt"
	"strings"
)

// TypeKind tells whether a named type describes entities or relationships.
type TypeKind uint8

const (
	EntityType TypeKind = iota + 1
	RelationshipType
)

func (k TypeKind) String() string {
	switch k {
	case EntityType:
		return "entity"
	case RelationshipType:
		return "relationship"
	default:
		return fmt.Sprintf("TypeKind(%d)", k)
	}
}

// MarshalText renders the kind as used in config files and the HTTP API.
func (k TypeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TypeKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "entity":
		*k = EntityType
	case "relationship":
		*k = RelationshipType
	default:
		return fmt.Errorf("unknown type kind %q", string(b))
	}
	return nil
}

// NamedType is a schema type of the graph, analogous to a table.
type NamedType struct {
	Name string   `json:"name" yaml:"name"`
	Kind TypeKind `json:"kind" yaml:"kind"`
	// LabelProperty names the property used as display label of entities.
	// Empty means the entity identifier is used.
	LabelProperty string `json:"label_property,omitempty" yaml:"label_property,omitempty"`
}
