package graphvalue

import (
	"strings"

	"github.com/google/uuid"
)

// Identifier is the datastore-level identity of a named object. Depending on
// the datastore it is either an opaque native id or a uniform UUID.
// Identifier is comparable and can be used as a map key.
type Identifier struct {
	native string
	id     uuid.UUID
	isUUID bool
}

// NativeID wraps an opaque datastore id.
func NativeID(s string) Identifier { return Identifier{native: s} }

// UUIDIdentifier wraps a uniform UUID id.
func UUIDIdentifier(u uuid.UUID) Identifier { return Identifier{id: u, isUUID: true} }

// NewUUIDIdentifier generates a random UUID identifier.
func NewUUIDIdentifier() Identifier { return UUIDIdentifier(uuid.New()) }

// ParseIdentifier is the inverse of Identifier.String: a brace-wrapped UUID
// becomes a UUID identifier, anything else a native one.
func ParseIdentifier(s string) Identifier {
	if len(s) > 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		if u, err := uuid.Parse(s[1 : len(s)-1]); err == nil {
			return UUIDIdentifier(u)
		}
	}
	return NativeID(s)
}

// IsUUID reports whether the identifier is a uniform UUID.
func (i Identifier) IsUUID() bool { return i.isUUID }

// UUID returns the UUID payload of a uniform identifier.
func (i Identifier) UUID() (uuid.UUID, bool) { return i.id, i.isUUID }

// IsZero reports whether the identifier was never set.
func (i Identifier) IsZero() bool { return !i.isUUID && i.native == "" }

func (i Identifier) String() string {
	if i.isUUID {
		return "{" + strings.ToUpper(i.id.String()) + "}"
	}
	return i.native
}

func (i Identifier) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Identifier) UnmarshalText(b []byte) error {
	*i = ParseIdentifier(string(b))
	return nil
}

// ObjectKey is the identity of a named object: equality is defined by type
// name and identifier.
type ObjectKey struct {
	TypeName   string
	Identifier Identifier
}

// NamedFields carries the common part of entity and relationship construction.
type NamedFields struct {
	ID          Identifier
	ObjectID    int64
	HasObjectID bool
	TypeName    string
	Properties  []Field
}

// NamedObject is an object bound to a schema type.
type NamedObject struct {
	Object
	id          Identifier
	objectID    int64
	hasObjectID bool
	typeName    string
}

func newNamed(n NamedFields) NamedObject {
	return NamedObject{
		Object:      newObject(n.Properties),
		id:          n.ID,
		objectID:    n.ObjectID,
		hasObjectID: n.HasObjectID,
		typeName:    n.TypeName,
	}
}

// Identifier returns the datastore identity.
func (n *NamedObject) Identifier() Identifier { return n.id }

// ObjectID returns the numeric surrogate key. Datastores that do not expose
// surrogate keys (user-managed graphs) report false.
func (n *NamedObject) ObjectID() (int64, bool) { return n.objectID, n.hasObjectID }

// TypeName returns the schema type name.
func (n *NamedObject) TypeName() string { return n.typeName }

// Key returns the identity used for equality.
func (n *NamedObject) Key() ObjectKey {
	return ObjectKey{TypeName: n.typeName, Identifier: n.id}
}

// SameObject reports whether a and b denote the same named object.
func SameObject(a, b interface{ Key() ObjectKey }) bool {
	return a.Key() == b.Key()
}

// Entity is a named object standing for a graph vertex.
type Entity struct {
	NamedObject
	label string
}

// NewEntity builds an entity. The label may be empty.
func NewEntity(n NamedFields, label string) *Entity {
	return &Entity{NamedObject: newNamed(n), label: label}
}

func (*Entity) Kind() Kind  { return KindEntity }
func (*Entity) graphValue() {}

// Label returns the display string.
func (e *Entity) Label() string { return e.label }

// Relationship is a named object standing for a graph edge.
type Relationship struct {
	NamedObject
	origin       Identifier
	destination  Identifier
	hasEndpoints bool
}

// NewRelationship builds a relationship that knows its endpoints.
func NewRelationship(n NamedFields, origin, destination Identifier) *Relationship {
	return &Relationship{
		NamedObject:  newNamed(n),
		origin:       origin,
		destination:  destination,
		hasEndpoints: true,
	}
}

// NewRelationshipWithoutEndpoints builds a relationship representation that
// omits its endpoint ids.
func NewRelationshipWithoutEndpoints(n NamedFields) *Relationship {
	return &Relationship{NamedObject: newNamed(n)}
}

func (*Relationship) Kind() Kind  { return KindRelationship }
func (*Relationship) graphValue() {}

// HasEndpointIDs reports whether OriginID and DestinationID may be used.
func (r *Relationship) HasEndpointIDs() bool { return r.hasEndpoints }

// OriginID returns the origin entity id; false when endpoints are absent.
func (r *Relationship) OriginID() (Identifier, bool) { return r.origin, r.hasEndpoints }

// DestinationID returns the destination entity id; false when endpoints are absent.
func (r *Relationship) DestinationID() (Identifier, bool) { return r.destination, r.hasEndpoints }
