// Package edm is the query surface the codec uses to consult an EDM model,
// plus a small in-memory Schema implementing it.
//
// The codec never mutates a Model; every method is a pure lookup.
package edm

import (
	odatajson "github.com/reoring/odatajson"
)

// TypeKind classifies a TypeRef.
type TypeKind int

const (
	KindPrimitive TypeKind = iota
	KindComplex
	KindEntity
	KindEnum
	KindCollection
	KindUntyped
)

func (k TypeKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindComplex:
		return "complex"
	case KindEntity:
		return "entity"
	case KindEnum:
		return "enum"
	case KindCollection:
		return "collection"
	default:
		return "untyped"
	}
}

// TypeRef is a reference to a type with its nullability facet.
type TypeRef struct {
	Name      string // qualified name; Collection(X) for collections
	Kind      TypeKind
	Nullable  bool
	Element   *TypeRef                // set for collections
	Primitive odatajson.PrimitiveKind // set for primitives
}

// IsStructured reports whether t names a complex or entity type.
func (t *TypeRef) IsStructured() bool {
	return t != nil && (t.Kind == KindComplex || t.Kind == KindEntity)
}

// WithNullable returns a copy of t with the given nullability.
func (t *TypeRef) WithNullable(nullable bool) *TypeRef {
	if t == nil {
		return nil
	}
	c := *t
	c.Nullable = nullable
	return &c
}

// PrimitiveRef builds a reference to an Edm primitive type.
func PrimitiveRef(k odatajson.PrimitiveKind, nullable bool) *TypeRef {
	return &TypeRef{Name: k.TypeName(), Kind: KindPrimitive, Nullable: nullable, Primitive: k}
}

// CollectionRef builds a Collection(element) reference.
func CollectionRef(element *TypeRef, nullable bool) *TypeRef {
	return &TypeRef{Name: odatajson.CollectionTypeName(element.Name), Kind: KindCollection, Nullable: nullable, Element: element}
}

// UntypedRef is Edm.Untyped.
func UntypedRef() *TypeRef { return &TypeRef{Name: "Edm.Untyped", Kind: KindUntyped, Nullable: true} }

// StructuredType describes a complex or entity type.
type StructuredType struct {
	Name       string
	Kind       TypeKind // KindComplex or KindEntity
	Base       string
	Open       bool
	Properties map[string]*TypeRef
}

// Model is the EDM capability consumed by the writers and readers.
type Model interface {
	// LookupTerm resolves the declared type of a qualified term name.
	LookupTerm(name string) (*TypeRef, bool)
	// LookupType resolves a qualified type name (primitives, Collection(X),
	// structured and enum types).
	LookupType(name string) (*TypeRef, bool)
	// IsAssignableFrom reports whether a value of type derived may be used
	// where base is expected.
	IsAssignableFrom(base, derived *TypeRef) bool
	// IsPrimitiveJSONNative reports whether JSON alone preserves values of t.
	IsPrimitiveJSONNative(t *TypeRef) bool
	// LookupStructuredType returns the property layout of a structured type.
	LookupStructuredType(name string) (*StructuredType, bool)
}

// LookupProperty resolves a declared property of a structured type, walking
// the base type chain. ok is false for undeclared (dynamic) properties.
func LookupProperty(m Model, typeName, property string) (*TypeRef, bool) {
	seen := map[string]bool{}
	for typeName != "" && !seen[typeName] {
		seen[typeName] = true
		st, ok := m.LookupStructuredType(typeName)
		if !ok {
			return nil, false
		}
		if t, ok := st.Properties[property]; ok {
			return t, true
		}
		typeName = st.Base
	}
	return nil, false
}

// IsOpenType reports whether typeName or any of its bases is open.
func IsOpenType(m Model, typeName string) bool {
	seen := map[string]bool{}
	for typeName != "" && !seen[typeName] {
		seen[typeName] = true
		st, ok := m.LookupStructuredType(typeName)
		if !ok {
			return false
		}
		if st.Open {
			return true
		}
		typeName = st.Base
	}
	return false
}
