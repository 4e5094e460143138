package core

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
)

// EntityRecord is a vertex as stored by the graph. Records are never
// mutated once stored; an upsert replaces the pointer.
type EntityRecord struct {
	ID       graphvalue.Identifier `json:"id"`
	ObjectID int64                 `json:"object_id"`
	TypeName string                `json:"type"`
	Label    string                `json:"label,omitempty"`
	Props    map[string]any        `json:"props,omitempty"`
}

// RelationshipRecord is an edge as stored by the graph.
type RelationshipRecord struct {
	ID          graphvalue.Identifier `json:"id"`
	ObjectID    int64                 `json:"object_id"`
	TypeName    string                `json:"type"`
	Origin      graphvalue.Identifier `json:"origin"`
	Destination graphvalue.Identifier `json:"destination"`
	Props       map[string]any        `json:"props,omitempty"`
}

// Value converts the record into the value returned by queries.
func (e *EntityRecord) Value() *graphvalue.Entity {
	return graphvalue.NewEntity(graphvalue.NamedFields{
		ID:          e.ID,
		ObjectID:    e.ObjectID,
		HasObjectID: true,
		TypeName:    e.TypeName,
		Properties:  propFields(e.Props),
	}, e.Label)
}

// Value converts the record into the value returned by queries.
func (r *RelationshipRecord) Value() *graphvalue.Relationship {
	return graphvalue.NewRelationship(graphvalue.NamedFields{
		ID:          r.ID,
		ObjectID:    r.ObjectID,
		HasObjectID: true,
		TypeName:    r.TypeName,
		Properties:  propFields(r.Props),
	}, r.Origin, r.Destination)
}

// Number returns a numeric property.
func (e *EntityRecord) Number(prop string) (float64, bool) { return toFloat64(e.Props[prop]) }

// Number returns a numeric property, typically a cost or an importance.
func (r *RelationshipRecord) Number(prop string) (float64, bool) { return toFloat64(r.Props[prop]) }

// Other returns the endpoint opposite to id.
func (r *RelationshipRecord) Other(id graphvalue.Identifier) graphvalue.Identifier {
	if r.Origin == id {
		return r.Destination
	}
	return r.Origin
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// normalizeProps copies props into the plain Go types the predicate
// evaluator and the JSON codec understand.
func normalizeProps(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = normalizeProp(v)
	}
	return out
}

func normalizeProp(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case uuid.UUID:
		return x.String()
	case graphvalue.Identifier:
		return x.String()
	case graphvalue.Primitive:
		return normalizeProp(x.Interface())
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeProp(e)
		}
		return out
	case map[string]any:
		return normalizeProps(x)
	default:
		return v
	}
}

func propFields(props map[string]any) []graphvalue.Field {
	keys := slices.Sorted(maps.Keys(props))
	fields := make([]graphvalue.Field, len(keys))
	for i, k := range keys {
		fields[i] = graphvalue.Field{Name: k, Value: propValue(props[k])}
	}
	return fields
}

func propValue(v any) graphvalue.Value {
	switch x := v.(type) {
	case []any:
		elems := make([]graphvalue.Value, len(x))
		for i, e := range x {
			elems[i] = propValue(e)
		}
		return graphvalue.NewArray(elems...)
	case map[string]any:
		return graphvalue.NewObject(propFields(x)...)
	default:
		return graphvalue.FromGo(v)
	}
}
