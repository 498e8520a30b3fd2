package edm

import (
	"fmt"
	"strings"

	odatajson "github.com/reoring/odatajson"
)

// Schema is an in-memory Model.
type Schema struct {
	structured map[string]*StructuredType
	enums      map[string][]string
	terms      map[string]*TypeRef
}

var _ Model = (*Schema)(nil)

// NewSchema returns an empty Schema; Edm primitives are always resolvable.
func NewSchema() *Schema {
	return &Schema{
		structured: map[string]*StructuredType{},
		enums:      map[string][]string{},
		terms:      map[string]*TypeRef{},
	}
}

// AddStructuredType registers a complex or entity type.
func (s *Schema) AddStructuredType(t *StructuredType) error {
	if t == nil || t.Name == "" {
		return odatajson.NewError(odatajson.CodeInvalidModel, "detail", "structured type without name")
	}
	if t.Kind != KindComplex && t.Kind != KindEntity {
		return odatajson.NewError(odatajson.CodeInvalidModel, "detail", fmt.Sprintf("%s: kind %s is not structured", t.Name, t.Kind))
	}
	if s.defined(t.Name) {
		return odatajson.NewError(odatajson.CodeInvalidModel, "detail", "type "+t.Name+" defined twice")
	}
	if t.Properties == nil {
		t.Properties = map[string]*TypeRef{}
	}
	s.structured[t.Name] = t
	return nil
}

// AddEnumType registers an enum type with its member names.
func (s *Schema) AddEnumType(name string, members ...string) error {
	if name == "" || s.defined(name) {
		return odatajson.NewError(odatajson.CodeInvalidModel, "detail", "invalid or duplicate enum type "+name)
	}
	s.enums[name] = append([]string(nil), members...)
	return nil
}

// AddTerm declares a term with its type.
func (s *Schema) AddTerm(name string, t *TypeRef) error {
	if name == "" || t == nil {
		return odatajson.NewError(odatajson.CodeInvalidModel, "detail", "term requires a name and a type")
	}
	if _, ok := s.terms[name]; ok {
		return odatajson.NewError(odatajson.CodeInvalidModel, "detail", "term "+name+" defined twice")
	}
	s.terms[name] = t
	return nil
}

// Ref resolves name into a TypeRef with the given nullability.
func (s *Schema) Ref(name string, nullable bool) (*TypeRef, error) {
	t, ok := s.LookupType(name)
	if !ok {
		return nil, odatajson.NewError(odatajson.CodeUnresolvedType, "type", name)
	}
	return t.WithNullable(nullable), nil
}

// MustRef is Ref for names known to resolve.
func (s *Schema) MustRef(name string, nullable bool) *TypeRef {
	t, err := s.Ref(name, nullable)
	if err != nil {
		panic(err)
	}
	return t
}

func (s *Schema) defined(name string) bool {
	_, st := s.structured[name]
	_, en := s.enums[name]
	return st || en
}

func (s *Schema) LookupTerm(name string) (*TypeRef, bool) {
	t, ok := s.terms[name]
	return t, ok
}

func (s *Schema) LookupType(name string) (*TypeRef, bool) {
	if name == "" {
		return nil, false
	}
	if elem := odatajson.ElementTypeName(name); elem != "" {
		et, ok := s.LookupType(elem)
		if !ok {
			return nil, false
		}
		return CollectionRef(et, true), true
	}
	if name == "Edm.Untyped" {
		return UntypedRef(), true
	}
	if strings.HasPrefix(name, "Edm.") {
		k, ok := odatajson.PrimitiveKindOf(name)
		if !ok {
			return nil, false
		}
		return PrimitiveRef(k, true), true
	}
	if st, ok := s.structured[name]; ok {
		return &TypeRef{Name: name, Kind: st.Kind, Nullable: true}, true
	}
	if _, ok := s.enums[name]; ok {
		return &TypeRef{Name: name, Kind: KindEnum, Nullable: true}, true
	}
	return nil, false
}

func (s *Schema) LookupStructuredType(name string) (*StructuredType, bool) {
	st, ok := s.structured[name]
	return st, ok
}

// EnumMembers returns the members of an enum type.
func (s *Schema) EnumMembers(name string) ([]string, bool) {
	m, ok := s.enums[name]
	return m, ok
}

// promotions lists the implicit primitive widenings accepted by
// IsAssignableFrom (derived -> bases).
var promotions = map[odatajson.PrimitiveKind][]odatajson.PrimitiveKind{
	odatajson.PrimitiveByte:   {odatajson.PrimitiveInt16, odatajson.PrimitiveInt32, odatajson.PrimitiveInt64, odatajson.PrimitiveSingle, odatajson.PrimitiveDouble, odatajson.PrimitiveDecimal},
	odatajson.PrimitiveSByte:  {odatajson.PrimitiveInt16, odatajson.PrimitiveInt32, odatajson.PrimitiveInt64, odatajson.PrimitiveSingle, odatajson.PrimitiveDouble, odatajson.PrimitiveDecimal},
	odatajson.PrimitiveInt16:  {odatajson.PrimitiveInt32, odatajson.PrimitiveInt64, odatajson.PrimitiveSingle, odatajson.PrimitiveDouble, odatajson.PrimitiveDecimal},
	odatajson.PrimitiveInt32:  {odatajson.PrimitiveInt64, odatajson.PrimitiveSingle, odatajson.PrimitiveDouble, odatajson.PrimitiveDecimal},
	odatajson.PrimitiveInt64:  {odatajson.PrimitiveSingle, odatajson.PrimitiveDouble, odatajson.PrimitiveDecimal},
	odatajson.PrimitiveSingle: {odatajson.PrimitiveDouble},
}

func (s *Schema) IsAssignableFrom(base, derived *TypeRef) bool {
	if base == nil || derived == nil {
		return false
	}
	if base.Kind == KindUntyped {
		return true
	}
	if base.Kind == KindCollection || derived.Kind == KindCollection {
		if base.Kind != derived.Kind {
			return false
		}
		return s.IsAssignableFrom(base.Element, derived.Element)
	}
	if base.Name == derived.Name {
		return true
	}
	switch {
	case base.Kind == KindPrimitive && derived.Kind == KindPrimitive:
		for _, p := range promotions[derived.Primitive] {
			if p == base.Primitive {
				return true
			}
		}
		return false
	case base.IsStructured() && derived.IsStructured():
		seen := map[string]bool{}
		for name := derived.Name; name != "" && !seen[name]; {
			seen[name] = true
			if name == base.Name {
				return true
			}
			st, ok := s.structured[name]
			if !ok {
				return false
			}
			name = st.Base
		}
	}
	return false
}

func (s *Schema) IsPrimitiveJSONNative(t *TypeRef) bool {
	if t == nil || t.Kind != KindPrimitive {
		return false
	}
	switch t.Primitive {
	case odatajson.PrimitiveBoolean, odatajson.PrimitiveString, odatajson.PrimitiveByte, odatajson.PrimitiveSByte,
		odatajson.PrimitiveInt16, odatajson.PrimitiveInt32, odatajson.PrimitiveDouble:
		return true
	}
	return false
}
