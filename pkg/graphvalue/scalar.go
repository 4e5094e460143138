package graphvalue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScalarType enumerates the primitive types a datastore can return.
type ScalarType uint8

const (
	ScalarNull ScalarType = iota
	ScalarBool
	ScalarInt64
	ScalarInt32
	ScalarInt16
	ScalarFloat64
	ScalarFloat32
	ScalarString
	ScalarDate
	ScalarDateOnly
	ScalarTimeOnly
	ScalarDateTimeOffset
	ScalarUUID
	ScalarGeometry
	ScalarBlob
)

var scalarTypeNames = [...]string{
	ScalarNull:           "null",
	ScalarBool:           "bool",
	ScalarInt64:          "int64",
	ScalarInt32:          "int32",
	ScalarInt16:          "int16",
	ScalarFloat64:        "float64",
	ScalarFloat32:        "float32",
	ScalarString:         "string",
	ScalarDate:           "date",
	ScalarDateOnly:       "date_only",
	ScalarTimeOnly:       "time_only",
	ScalarDateTimeOffset: "datetime_offset",
	ScalarUUID:           "uuid",
	ScalarGeometry:       "geometry",
	ScalarBlob:           "blob",
}

func (t ScalarType) String() string {
	if int(t) < len(scalarTypeNames) {
		return scalarTypeNames[t]
	}
	return fmt.Sprintf("ScalarType(%d)", t)
}

func parseScalarType(s string) (ScalarType, bool) {
	for i, name := range scalarTypeNames {
		if name == s {
			return ScalarType(i), true
		}
	}
	return 0, false
}

// DateOnly is a calendar date without time of day or zone.
type DateOnly struct {
	Year  int
	Month time.Month
	Day   int
}

func (d DateOnly) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOnly is a time of day without date or zone.
type TimeOnly struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

func (t TimeOnly) String() string {
	if t.Nanosecond == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour, t.Minute, t.Second, t.Nanosecond)
}

// GeometryRef points at a geometry held by the datastore. The engine never
// interprets it; it is handed to the mapping layer as is.
type GeometryRef struct {
	WKID int    `json:"wkid"`
	Ref  string `json:"ref"`
}

// Primitive is a scalar leaf of the value tree.
type Primitive struct {
	typ ScalarType
	v   any
}

func (Primitive) Kind() Kind  { return KindPrimitive }
func (Primitive) graphValue() {}

// Type returns the scalar type.
func (p Primitive) Type() ScalarType { return p.typ }

// IsNull reports whether the primitive is the null scalar.
func (p Primitive) IsNull() bool { return p.typ == ScalarNull }

// Interface returns the payload as a Go value: nil, bool, int64, int32,
// int16, float64, float32, string, time.Time, DateOnly, TimeOnly, uuid.UUID,
// GeometryRef or []byte (a copy).
func (p Primitive) Interface() any {
	if b, ok := p.v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return p.v
}

func (p Primitive) String() string {
	switch p.typ {
	case ScalarNull:
		return "null"
	case ScalarDate, ScalarDateTimeOffset:
		return p.v.(time.Time).Format(time.RFC3339Nano)
	case ScalarBlob:
		return fmt.Sprintf("blob(%d bytes)", len(p.v.([]byte)))
	default:
		return fmt.Sprint(p.v)
	}
}

func Null() Primitive                    { return Primitive{typ: ScalarNull} }
func Bool(b bool) Primitive              { return Primitive{typ: ScalarBool, v: b} }
func Int64(v int64) Primitive            { return Primitive{typ: ScalarInt64, v: v} }
func Int32(v int32) Primitive            { return Primitive{typ: ScalarInt32, v: v} }
func Int16(v int16) Primitive            { return Primitive{typ: ScalarInt16, v: v} }
func Float64(v float64) Primitive        { return Primitive{typ: ScalarFloat64, v: v} }
func Float32(v float32) Primitive        { return Primitive{typ: ScalarFloat32, v: v} }
func String(s string) Primitive          { return Primitive{typ: ScalarString, v: s} }
func UUID(u uuid.UUID) Primitive         { return Primitive{typ: ScalarUUID, v: u} }
func Geometry(g GeometryRef) Primitive   { return Primitive{typ: ScalarGeometry, v: g} }
func DateOnlyValue(d DateOnly) Primitive { return Primitive{typ: ScalarDateOnly, v: d} }
func TimeOnlyValue(t TimeOnly) Primitive { return Primitive{typ: ScalarTimeOnly, v: t} }

// Date is an instant, normalised to UTC.
func Date(t time.Time) Primitive { return Primitive{typ: ScalarDate, v: t.UTC()} }

// DateTimeOffset keeps the zone offset of t.
func DateTimeOffset(t time.Time) Primitive { return Primitive{typ: ScalarDateTimeOffset, v: t} }

// Blob copies b.
func Blob(b []byte) Primitive {
	return Primitive{typ: ScalarBlob, v: append([]byte(nil), b...)}
}

// AsBool returns the payload of a bool primitive.
func (p Primitive) AsBool() (bool, bool) {
	b, ok := p.v.(bool)
	return b, ok
}

// AsString returns the payload of a string primitive.
func (p Primitive) AsString() (string, bool) {
	s, ok := p.v.(string)
	return s, ok && p.typ == ScalarString
}

// AsInt64 widens any integer primitive.
func (p Primitive) AsInt64() (int64, bool) {
	switch v := p.v.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	}
	return 0, false
}

// AsFloat64 widens any numeric primitive.
func (p Primitive) AsFloat64() (float64, bool) {
	switch v := p.v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if i, ok := p.AsInt64(); ok {
		return float64(i), true
	}
	return 0, false
}

// AsTime returns the payload of a date or date-time-with-offset primitive.
func (p Primitive) AsTime() (time.Time, bool) {
	t, ok := p.v.(time.Time)
	return t, ok
}

// AsUUID returns the payload of a uuid primitive.
func (p Primitive) AsUUID() (uuid.UUID, bool) {
	u, ok := p.v.(uuid.UUID)
	return u, ok
}

// FromGo converts a plain Go value, as found in decoded property maps, into
// a primitive. Unsupported types are rendered as strings.
func FromGo(v any) Primitive {
	switch x := v.(type) {
	case nil:
		return Null()
	case Primitive:
		return x
	case bool:
		return Bool(x)
	case int:
		return Int64(int64(x))
	case int64:
		return Int64(x)
	case int32:
		return Int32(x)
	case int16:
		return Int16(x)
	case float64:
		return Float64(x)
	case float32:
		return Float32(x)
	case string:
		return String(x)
	case time.Time:
		return DateTimeOffset(x)
	case uuid.UUID:
		return UUID(x)
	case []byte:
		return Blob(x)
	case GeometryRef:
		return Geometry(x)
	case DateOnly:
		return DateOnlyValue(x)
	case TimeOnly:
		return TimeOnlyValue(x)
	default:
		return String(fmt.Sprint(x))
	}
}
