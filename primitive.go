package odatajson

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reoring/odatajson/codec"
)

// PrimitiveKind enumerates the Edm primitive types supported on the wire.
type PrimitiveKind int

const (
	PrimitiveNone PrimitiveKind = iota
	PrimitiveBoolean
	PrimitiveByte
	PrimitiveSByte
	PrimitiveInt16
	PrimitiveInt32
	PrimitiveInt64
	PrimitiveSingle
	PrimitiveDouble
	PrimitiveDecimal
	PrimitiveString
	PrimitiveBinary
	PrimitiveGuid
	PrimitiveDate
	PrimitiveDateTimeOffset
	PrimitiveDuration
	PrimitiveTimeOfDay
	PrimitiveGeographyPoint
	PrimitiveGeometryPoint
)

var primitiveNames = [...]string{
	PrimitiveNone:           "",
	PrimitiveBoolean:        "Edm.Boolean",
	PrimitiveByte:           "Edm.Byte",
	PrimitiveSByte:          "Edm.SByte",
	PrimitiveInt16:          "Edm.Int16",
	PrimitiveInt32:          "Edm.Int32",
	PrimitiveInt64:          "Edm.Int64",
	PrimitiveSingle:         "Edm.Single",
	PrimitiveDouble:         "Edm.Double",
	PrimitiveDecimal:        "Edm.Decimal",
	PrimitiveString:         "Edm.String",
	PrimitiveBinary:         "Edm.Binary",
	PrimitiveGuid:           "Edm.Guid",
	PrimitiveDate:           "Edm.Date",
	PrimitiveDateTimeOffset: "Edm.DateTimeOffset",
	PrimitiveDuration:       "Edm.Duration",
	PrimitiveTimeOfDay:      "Edm.TimeOfDay",
	PrimitiveGeographyPoint: "Edm.GeographyPoint",
	PrimitiveGeometryPoint:  "Edm.GeometryPoint",
}

// TypeName returns the qualified Edm name, e.g. "Edm.Int32".
func (k PrimitiveKind) TypeName() string {
	if k < 0 || int(k) >= len(primitiveNames) {
		return ""
	}
	return primitiveNames[k]
}

func (k PrimitiveKind) String() string { return k.TypeName() }

// PrimitiveKindOf resolves a qualified (or Edm-prefix-less) primitive type name.
func PrimitiveKindOf(name string) (PrimitiveKind, bool) {
	if name == "" {
		return PrimitiveNone, false
	}
	if !strings.HasPrefix(name, "Edm.") {
		name = "Edm." + name
	}
	for k, n := range primitiveNames {
		if n == name {
			return PrimitiveKind(k), true
		}
	}
	return PrimitiveNone, false
}

// IsSpatial reports whether k is a geography/geometry kind.
func (k PrimitiveKind) IsSpatial() bool {
	return k == PrimitiveGeographyPoint || k == PrimitiveGeometryPoint
}

// Point is a spatial point written as a GeoJSON object.
type Point struct {
	Longitude float64
	Latitude  float64
}

// Primitive is a typed scalar value. The payload Go type depends on Type:
// bool, uint8, int8, int16, int32, int64, float32, float64, codec.Decimal,
// string, []byte, uuid.UUID, codec.Date, time.Time, time.Duration,
// codec.TimeOfDay or Point.
type Primitive struct {
	Type           PrimitiveKind
	Value          any
	TypeAnnotation *TypeNameAnnotation
}

func (*Primitive) Kind() ValueKind                         { return KindPrimitive }
func (p *Primitive) TypeNameOverride() *TypeNameAnnotation { return p.TypeAnnotation }
func (*Primitive) sealed()                                 {}

// TypeName returns the qualified Edm name of the payload type.
func (p *Primitive) TypeName() string { return p.Type.TypeName() }

// IsJSONNative reports whether a reader can recover the primitive's type from
// the JSON token alone: booleans, strings, integers up to 32 bits and finite
// doubles.
func (p *Primitive) IsJSONNative() bool {
	switch p.Type {
	case PrimitiveBoolean, PrimitiveString, PrimitiveByte, PrimitiveSByte, PrimitiveInt16, PrimitiveInt32:
		return true
	case PrimitiveDouble:
		f, ok := p.Value.(float64)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return false
}

func newPrimitive(k PrimitiveKind, v any) *Primitive { return &Primitive{Type: k, Value: v} }

func Boolean(v bool) *Primitive                  { return newPrimitive(PrimitiveBoolean, v) }
func Byte(v uint8) *Primitive                    { return newPrimitive(PrimitiveByte, v) }
func SByte(v int8) *Primitive                    { return newPrimitive(PrimitiveSByte, v) }
func Int16(v int16) *Primitive                   { return newPrimitive(PrimitiveInt16, v) }
func Int32(v int32) *Primitive                   { return newPrimitive(PrimitiveInt32, v) }
func Int64(v int64) *Primitive                   { return newPrimitive(PrimitiveInt64, v) }
func Single(v float32) *Primitive                { return newPrimitive(PrimitiveSingle, v) }
func Double(v float64) *Primitive                { return newPrimitive(PrimitiveDouble, v) }
func Decimal(v codec.Decimal) *Primitive         { return newPrimitive(PrimitiveDecimal, v) }
func String(v string) *Primitive                { return newPrimitive(PrimitiveString, v) }
func Binary(v []byte) *Primitive                 { return newPrimitive(PrimitiveBinary, v) }
func Guid(v uuid.UUID) *Primitive                { return newPrimitive(PrimitiveGuid, v) }
func Date(v codec.Date) *Primitive               { return newPrimitive(PrimitiveDate, v) }
func DateTimeOffset(v time.Time) *Primitive      { return newPrimitive(PrimitiveDateTimeOffset, v) }
func Duration(v time.Duration) *Primitive        { return newPrimitive(PrimitiveDuration, v) }
func TimeOfDay(v codec.TimeOfDay) *Primitive     { return newPrimitive(PrimitiveTimeOfDay, v) }
func GeographyPoint(lon, lat float64) *Primitive { return newPrimitive(PrimitiveGeographyPoint, Point{lon, lat}) }
func GeometryPoint(x, y float64) *Primitive      { return newPrimitive(PrimitiveGeometryPoint, Point{x, y}) }
