// Package typename decides whether a value needs an odata.type annotation on
// the wire and which name to write.
//
// Both policies share one precedence chain:
//
//  1. a TypeNameAnnotation on the value wins outright; a suppressing
//     annotation means no type is ever written;
//  2. otherwise the value's own type name is written when it differs from the
//     declared type (an open property has no declared type);
//  3. otherwise the policy decides: Minimal writes nothing, Full writes the
//     names JSON cannot carry.
//
// Null values never carry a type name. Returned names are qualified
// ("Edm.Int32"); odatajson.WireTypeName renders them for output.
package typename

import (
	"math"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/edm"
)

// Context describes where a value is being written.
type Context struct {
	Open              bool // undeclared (dynamic) property or annotation term
	TopLevel          bool
	CollectionElement bool
	NestedResource    bool
}

// Oracle is the single decision point for odata.type emission.
type Oracle interface {
	TypeNameForValue(v odatajson.Value, declared *edm.TypeRef, ctx Context) (string, bool)
	TypeNameForResource(r *odatajson.Resource, expected string, ctx Context) (string, bool)
	TypeNameForResourceSet(s *odatajson.ResourceSet, expected string, ctx Context) (string, bool)
}

// ValueTypeName returns the type name a value carries itself, or "".
func ValueTypeName(v odatajson.Value) string {
	switch t := v.(type) {
	case *odatajson.Primitive:
		return t.TypeName()
	case *odatajson.Resource:
		return t.TypeName
	case *odatajson.ResourceSet:
		if t.TypeName == "" {
			return ""
		}
		return odatajson.CollectionTypeName(t.TypeName)
	case *odatajson.Collection:
		return t.TypeName
	case *odatajson.Enum:
		return t.TypeName
	}
	return ""
}

// override applies step 1. decided reports whether the annotation settled
// the outcome.
func override(v odatajson.Value) (name string, write, decided bool) {
	if odatajson.IsNull(v) {
		return "", false, true
	}
	a := v.TypeNameOverride()
	if a == nil {
		return "", false, false
	}
	if a.Null || a.TypeName == "" {
		return "", false, true
	}
	return a.TypeName, true, true
}

func declaredName(declared *edm.TypeRef, ctx Context) string {
	if declared == nil || ctx.Open || declared.Kind == edm.KindUntyped {
		return ""
	}
	return declared.Name
}

type base struct {
	model edm.Model
}

// jsonNative reports whether the reader recovers p's type from the token.
func (b base) jsonNative(p *odatajson.Primitive) bool {
	if b.model == nil {
		return p.IsJSONNative()
	}
	if !b.model.IsPrimitiveJSONNative(edm.PrimitiveRef(p.Type, true)) {
		return false
	}
	if f, ok := p.Value.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return false
	}
	return true
}

// Minimal writes a type name only when the reader could not infer it.
type Minimal struct{ base }

// NewMinimal returns the minimal-metadata oracle. model may be nil.
func NewMinimal(model edm.Model) *Minimal { return &Minimal{base{model}} }

func (m *Minimal) TypeNameForValue(v odatajson.Value, declared *edm.TypeRef, ctx Context) (string, bool) {
	if name, write, ok := override(v); ok {
		return name, write
	}
	name := ValueTypeName(v)
	if name == "" {
		return "", false
	}
	decl := declaredName(declared, ctx)
	if p, ok := v.(*odatajson.Primitive); ok && decl == "" {
		return name, !m.jsonNative(p)
	}
	if name != decl {
		return name, true
	}
	return "", false
}

func (m *Minimal) TypeNameForResource(r *odatajson.Resource, expected string, ctx Context) (string, bool) {
	if name, write, ok := override(r); ok {
		return name, write
	}
	if r.TypeName != "" && (ctx.Open || r.TypeName != expected) {
		return r.TypeName, true
	}
	return "", false
}

func (m *Minimal) TypeNameForResourceSet(s *odatajson.ResourceSet, expected string, ctx Context) (string, bool) {
	if name, write, ok := override(s); ok {
		return name, write
	}
	if s.TypeName != "" && (ctx.Open || s.TypeName != expected) {
		return odatajson.CollectionTypeName(s.TypeName), true
	}
	return "", false
}

// Full writes type names for resources and structured values always, and
// for primitives whenever JSON cannot carry the type.
type Full struct{ base }

// NewFull returns the full-metadata oracle. model may be nil.
func NewFull(model edm.Model) *Full { return &Full{base{model}} }

func (f *Full) TypeNameForValue(v odatajson.Value, declared *edm.TypeRef, ctx Context) (string, bool) {
	if name, write, ok := override(v); ok {
		return name, write
	}
	name := ValueTypeName(v)
	if name == "" {
		return "", false
	}
	p, isPrimitive := v.(*odatajson.Primitive)
	if !isPrimitive {
		return name, true
	}
	if decl := declaredName(declared, ctx); decl != "" && decl != name {
		return name, true
	}
	return name, !f.jsonNative(p)
}

func (f *Full) TypeNameForResource(r *odatajson.Resource, expected string, ctx Context) (string, bool) {
	if name, write, ok := override(r); ok {
		return name, write
	}
	switch {
	case r.TypeName != "":
		return r.TypeName, true
	case expected != "":
		return expected, true
	}
	return "", false
}

func (f *Full) TypeNameForResourceSet(s *odatajson.ResourceSet, expected string, ctx Context) (string, bool) {
	if name, write, ok := override(s); ok {
		return name, write
	}
	if s.TypeName != "" && (ctx.Open || s.TypeName != expected) {
		return odatajson.CollectionTypeName(s.TypeName), true
	}
	return "", false
}

// For returns the oracle for a metadata level; MetadataNone yields an oracle
// that never writes.
func For(level odatajson.MetadataLevel, model edm.Model) Oracle {
	switch level {
	case odatajson.MetadataFull:
		return NewFull(model)
	case odatajson.MetadataNone:
		return none{}
	default:
		return NewMinimal(model)
	}
}

type none struct{}

func (none) TypeNameForValue(odatajson.Value, *edm.TypeRef, Context) (string, bool) { return "", false }
func (none) TypeNameForResource(*odatajson.Resource, string, Context) (string, bool) {
	return "", false
}
func (none) TypeNameForResourceSet(*odatajson.ResourceSet, string, Context) (string, bool) {
	return "", false
}
