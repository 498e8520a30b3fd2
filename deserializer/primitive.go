package deserializer

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/codec"
	"github.com/reoring/odatajson/jsonreader"
)

func invalid(raw any, k odatajson.PrimitiveKind) *odatajson.Error {
	return odatajson.NewError(odatajson.CodeInvalidPrimitive, "value", raw, "type", k.TypeName())
}

// numberText accepts a JSON number or, for IEEE754-compatible payloads, a
// string holding one.
func numberText(raw any) (string, bool) {
	switch v := raw.(type) {
	case jsonreader.Number:
		return string(v), true
	case string:
		return v, true
	}
	return "", false
}

// convertPrimitive builds a primitive of kind k from a reader value.
func convertPrimitive(raw any, k odatajson.PrimitiveKind) (*odatajson.Primitive, error) {
	s, isString := raw.(string)
	switch k {
	case odatajson.PrimitiveBoolean:
		if b, ok := raw.(bool); ok {
			return odatajson.Boolean(b), nil
		}
	case odatajson.PrimitiveByte, odatajson.PrimitiveSByte, odatajson.PrimitiveInt16,
		odatajson.PrimitiveInt32, odatajson.PrimitiveInt64:
		return convertInteger(raw, k)
	case odatajson.PrimitiveSingle, odatajson.PrimitiveDouble:
		text, ok := numberText(raw)
		if !ok {
			break
		}
		bits := 64
		if k == odatajson.PrimitiveSingle {
			bits = 32
		}
		f, err := codec.ParseFloat(text, bits)
		if err != nil {
			return nil, invalid(raw, k)
		}
		if bits == 32 {
			return odatajson.Single(float32(f)), nil
		}
		return odatajson.Double(f), nil
	case odatajson.PrimitiveDecimal:
		text, ok := numberText(raw)
		if !ok {
			break
		}
		d, err := codec.ParseDecimal(text)
		if err != nil {
			return nil, invalid(raw, k)
		}
		return odatajson.Decimal(d), nil
	case odatajson.PrimitiveString:
		if isString {
			return odatajson.String(s), nil
		}
	default:
		if isString {
			return convertLexical(s, k)
		}
	}
	return nil, invalid(raw, k)
}

func convertInteger(raw any, k odatajson.PrimitiveKind) (*odatajson.Primitive, error) {
	text, ok := numberText(raw)
	if !ok {
		return nil, invalid(raw, k)
	}
	var bits int
	switch k {
	case odatajson.PrimitiveByte:
		u, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return nil, invalid(raw, k)
		}
		return odatajson.Byte(uint8(u)), nil
	case odatajson.PrimitiveSByte:
		bits = 8
	case odatajson.PrimitiveInt16:
		bits = 16
	case odatajson.PrimitiveInt32:
		bits = 32
	default:
		bits = 64
	}
	n, err := strconv.ParseInt(text, 10, bits)
	if err != nil {
		return nil, invalid(raw, k)
	}
	switch bits {
	case 8:
		return odatajson.SByte(int8(n)), nil
	case 16:
		return odatajson.Int16(int16(n)), nil
	case 32:
		return odatajson.Int32(int32(n)), nil
	}
	return odatajson.Int64(n), nil
}

func convertLexical(s string, k odatajson.PrimitiveKind) (*odatajson.Primitive, error) {
	var p *odatajson.Primitive
	var err error
	switch k {
	case odatajson.PrimitiveBinary:
		var b []byte
		b, err = codec.ParseBinary(s)
		p = odatajson.Binary(b)
	case odatajson.PrimitiveGuid:
		var g uuid.UUID
		g, err = codec.ParseGUID(s)
		p = odatajson.Guid(g)
	case odatajson.PrimitiveDate:
		var d codec.Date
		d, err = codec.ParseDate(s)
		p = odatajson.Date(d)
	case odatajson.PrimitiveDateTimeOffset:
		var t time.Time
		t, err = codec.ParseDateTimeOffset(s)
		p = odatajson.DateTimeOffset(t)
	case odatajson.PrimitiveDuration:
		var d time.Duration
		d, err = codec.ParseDuration(s)
		p = odatajson.Duration(d)
	case odatajson.PrimitiveTimeOfDay:
		var t codec.TimeOfDay
		t, err = codec.ParseTimeOfDay(s)
		p = odatajson.TimeOfDay(t)
	default:
		return nil, invalid(s, k)
	}
	if err != nil {
		return nil, invalid(s, k).WithCause(err)
	}
	return p, nil
}

// inferPrimitive picks a primitive type from the JSON token alone.
func inferPrimitive(raw any) (*odatajson.Primitive, error) {
	switch v := raw.(type) {
	case string:
		return odatajson.String(v), nil
	case bool:
		return odatajson.Boolean(v), nil
	case jsonreader.Number:
		if v.IsIntegral() {
			n, err := v.Int64()
			switch {
			case err != nil:
				d, derr := codec.ParseDecimal(string(v))
				if derr != nil {
					return nil, invalid(raw, odatajson.PrimitiveDecimal)
				}
				return odatajson.Decimal(d), nil
			case n >= math.MinInt32 && n <= math.MaxInt32:
				return odatajson.Int32(int32(n)), nil
			default:
				return odatajson.Int64(n), nil
			}
		}
		f, err := v.Float64()
		if err != nil {
			return nil, invalid(raw, odatajson.PrimitiveDouble)
		}
		return odatajson.Double(f), nil
	}
	return nil, invalid(raw, odatajson.PrimitiveString)
}

// convertPoint reads a GeoJSON point tree.
func convertPoint(tree any, k odatajson.PrimitiveKind) (*odatajson.Primitive, error) {
	obj, ok := tree.(map[string]any)
	if !ok || obj["type"] != "Point" {
		return nil, invalid(tree, k)
	}
	coords, ok := obj["coordinates"].([]any)
	if !ok || len(coords) < 2 {
		return nil, invalid(tree, k)
	}
	var xy [2]float64
	for i := range xy {
		n, ok := coords[i].(json.Number)
		if !ok {
			return nil, invalid(tree, k)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, invalid(tree, k)
		}
		xy[i] = f
	}
	if k == odatajson.PrimitiveGeographyPoint {
		return odatajson.GeographyPoint(xy[0], xy[1]), nil
	}
	return odatajson.GeometryPoint(xy[0], xy[1]), nil
}
