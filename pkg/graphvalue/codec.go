package graphvalue

// This file implements the JSON wire encoding used between the datastore
// and its clients. Every value is an envelope tagged with "k"; scalars also
// carry their scalar type in "t" so that int16/int32/int64 and float32/float64
// survive the trip.

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	timeOnlyLayout = "15:04:05.999999999"
	dateOnlyLayout = "2006-01-02"
)

type wireField struct {
	Name  string    `json:"n"`
	Value wireValue `json:"v"`
}

type wireValue struct {
	K      string          `json:"k"`
	T      string          `json:"t,omitempty"`
	V      json.RawMessage `json:"v,omitempty"`
	Items  []wireValue     `json:"items,omitempty"`
	Fields []wireField     `json:"fields,omitempty"`

	ID       *Identifier `json:"id,omitempty"`
	OID      *int64      `json:"oid,omitempty"`
	TypeName string      `json:"type,omitempty"`
	Label    string      `json:"label,omitempty"`
	Origin   *Identifier `json:"origin,omitempty"`
	Dest     *Identifier `json:"dest,omitempty"`

	Entities      []wireValue `json:"entities,omitempty"`
	Relationships []wireValue `json:"relationships,omitempty"`
}

// Marshal encodes a single value.
func Marshal(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Unmarshal decodes a single value.
func Unmarshal(data []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid value envelope: %w", err)
	}
	return fromWire(w)
}

// MarshalJSON lets rows be embedded in larger JSON payloads.
func (r Row) MarshalJSON() ([]byte, error) {
	ws := make([]wireValue, len(r))
	for i, v := range r {
		w, err := toWire(v)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		ws[i] = w
	}
	return json.Marshal(ws)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var ws []wireValue
	if err := json.Unmarshal(data, &ws); err != nil {
		return fmt.Errorf("invalid row: %w", err)
	}
	out := make(Row, len(ws))
	for i, w := range ws {
		v, err := fromWire(w)
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = v
	}
	*r = out
	return nil
}

func toWire(v Value) (wireValue, error) {
	switch x := v.(type) {
	case nil:
		return wireValue{K: "p", T: ScalarNull.String()}, nil
	case Primitive:
		raw, err := encodeScalar(x)
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{K: "p", T: x.typ.String(), V: raw}, nil
	case Array:
		items := make([]wireValue, len(x.elems))
		for i, e := range x.elems {
			w, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			items[i] = w
		}
		return wireValue{K: "a", Items: items}, nil
	case *Object:
		fields, err := fieldsToWire(x)
		return wireValue{K: "o", Fields: fields}, err
	case *Entity:
		w, err := namedToWire("e", &x.NamedObject)
		w.Label = x.label
		return w, err
	case *Relationship:
		w, err := namedToWire("r", &x.NamedObject)
		if x.hasEndpoints {
			o, d := x.origin, x.destination
			w.Origin, w.Dest = &o, &d
		}
		return w, err
	case *Path:
		w := wireValue{K: "path"}
		for _, e := range x.entities {
			ew, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			w.Entities = append(w.Entities, ew)
		}
		for _, r := range x.relationships {
			rw, err := toWire(r)
			if err != nil {
				return wireValue{}, err
			}
			w.Relationships = append(w.Relationships, rw)
		}
		return w, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func fieldsToWire(o *Object) ([]wireField, error) {
	fields := make([]wireField, 0, len(o.keys))
	for _, k := range o.keys {
		w, err := toWire(o.fields[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields = append(fields, wireField{Name: k, Value: w})
	}
	return fields, nil
}

func namedToWire(kind string, n *NamedObject) (wireValue, error) {
	fields, err := fieldsToWire(&n.Object)
	id := n.id
	w := wireValue{K: kind, Fields: fields, ID: &id, TypeName: n.typeName}
	if n.hasObjectID {
		oid := n.objectID
		w.OID = &oid
	}
	return w, err
}

func fromWire(w wireValue) (Value, error) {
	switch w.K {
	case "p":
		return decodeScalar(w.T, w.V)
	case "a":
		elems := make([]Value, len(w.Items))
		for i, it := range w.Items {
			v, err := fromWire(it)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return Array{elems: elems}, nil
	case "o":
		fields, err := fieldsFromWire(w.Fields)
		if err != nil {
			return nil, err
		}
		return NewObject(fields...), nil
	case "e":
		n, err := namedFromWire(w)
		if err != nil {
			return nil, err
		}
		return NewEntity(n, w.Label), nil
	case "r":
		n, err := namedFromWire(w)
		if err != nil {
			return nil, err
		}
		if w.Origin != nil && w.Dest != nil {
			return NewRelationship(n, *w.Origin, *w.Dest), nil
		}
		return NewRelationshipWithoutEndpoints(n), nil
	case "path":
		entities := make([]*Entity, len(w.Entities))
		for i, ew := range w.Entities {
			v, err := fromWire(ew)
			if err != nil {
				return nil, err
			}
			e, ok := v.(*Entity)
			if !ok {
				return nil, fmt.Errorf("path entity %d is a %s", i, KindOf(v))
			}
			entities[i] = e
		}
		rels := make([]*Relationship, len(w.Relationships))
		for i, rw := range w.Relationships {
			v, err := fromWire(rw)
			if err != nil {
				return nil, err
			}
			r, ok := v.(*Relationship)
			if !ok {
				return nil, fmt.Errorf("path relationship %d is a %s", i, KindOf(v))
			}
			rels[i] = r
		}
		return NewPath(entities, rels)
	default:
		return nil, fmt.Errorf("unknown value kind %q", w.K)
	}
}

func fieldsFromWire(ws []wireField) ([]Field, error) {
	fields := make([]Field, len(ws))
	for i, f := range ws {
		v, err := fromWire(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields[i] = Field{Name: f.Name, Value: v}
	}
	return fields, nil
}

func namedFromWire(w wireValue) (NamedFields, error) {
	fields, err := fieldsFromWire(w.Fields)
	if err != nil {
		return NamedFields{}, err
	}
	n := NamedFields{TypeName: w.TypeName, Properties: fields}
	if w.ID != nil {
		n.ID = *w.ID
	}
	if w.OID != nil {
		n.ObjectID, n.HasObjectID = *w.OID, true
	}
	return n, nil
}

func encodeScalar(p Primitive) (json.RawMessage, error) {
	var payload any
	switch p.typ {
	case ScalarNull:
		return nil, nil
	case ScalarFloat64:
		payload = encodeFloat(p.v.(float64), 64)
	case ScalarFloat32:
		payload = encodeFloat(float64(p.v.(float32)), 32)
	case ScalarDate, ScalarDateTimeOffset:
		payload = p.v.(time.Time).Format(time.RFC3339Nano)
	case ScalarDateOnly, ScalarTimeOnly:
		payload = fmt.Sprint(p.v)
	default:
		payload = p.v
	}
	return json.Marshal(payload)
}

// encodeFloat keeps NaN and infinities, which JSON numbers cannot carry.
func encodeFloat(f float64, bits int) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, bits))
}

func decodeFloat(raw json.RawMessage, bits int) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, bits)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

func decodeScalar(t string, raw json.RawMessage) (Value, error) {
	typ, ok := parseScalarType(t)
	if !ok {
		return nil, fmt.Errorf("unknown scalar type %q", t)
	}
	var err error
	switch typ {
	case ScalarNull:
		return Null(), nil
	case ScalarBool:
		var b bool
		err = json.Unmarshal(raw, &b)
		return Bool(b), err
	case ScalarInt64:
		var v int64
		err = json.Unmarshal(raw, &v)
		return Int64(v), err
	case ScalarInt32:
		var v int32
		err = json.Unmarshal(raw, &v)
		return Int32(v), err
	case ScalarInt16:
		var v int16
		err = json.Unmarshal(raw, &v)
		return Int16(v), err
	case ScalarFloat64:
		f, err := decodeFloat(raw, 64)
		return Float64(f), err
	case ScalarFloat32:
		f, err := decodeFloat(raw, 32)
		return Float32(float32(f)), err
	case ScalarString:
		var s string
		err = json.Unmarshal(raw, &s)
		return String(s), err
	case ScalarUUID:
		var u uuid.UUID
		err = json.Unmarshal(raw, &u)
		return UUID(u), err
	case ScalarGeometry:
		var g GeometryRef
		err = json.Unmarshal(raw, &g)
		return Geometry(g), err
	case ScalarBlob:
		var b []byte
		err = json.Unmarshal(raw, &b)
		return Blob(b), err
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("scalar %s: %w", typ, err)
	}
	switch typ {
	case ScalarDate:
		ts, err := time.Parse(time.RFC3339Nano, s)
		return Date(ts), err
	case ScalarDateTimeOffset:
		ts, err := time.Parse(time.RFC3339Nano, s)
		return DateTimeOffset(ts), err
	case ScalarDateOnly:
		ts, err := time.Parse(dateOnlyLayout, s)
		return DateOnlyValue(DateOnly{Year: ts.Year(), Month: ts.Month(), Day: ts.Day()}), err
	default:
		ts, err := time.Parse(timeOnlyLayout, s)
		return TimeOnlyValue(TimeOnly{Hour: ts.Hour(), Minute: ts.Minute(), Second: ts.Second(), Nanosecond: ts.Nanosecond()}), err
	}
}
