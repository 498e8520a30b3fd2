package odatajson

import (
	"strings"
)

// ValueKind tags the variants of Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindPrimitive
	KindResource
	KindResourceSet
	KindCollection
	KindEnum
	KindStream
	KindUntyped
)

func (k ValueKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindResource:
		return "resource"
	case KindResourceSet:
		return "resource set"
	case KindCollection:
		return "collection"
	case KindEnum:
		return "enum"
	case KindStream:
		return "stream"
	case KindUntyped:
		return "untyped"
	default:
		return "null"
	}
}

// Value is the sealed union of everything the codec reads and writes.
// Implementations: Null, *Primitive, *Resource, *ResourceSet, *Collection,
// *Enum, *StreamReference, *Untyped.
type Value interface {
	Kind() ValueKind
	// TypeNameOverride returns the serialization-time type name hint, or nil
	// when none is attached.
	TypeNameOverride() *TypeNameAnnotation
	sealed()
}

// TypeNameAnnotation overrides every other source of type information for the
// value it is attached to. Null=true means "never write a type name".
type TypeNameAnnotation struct {
	TypeName string
	Null     bool
}

// WriteTypeName returns an override that forces name to be written.
func WriteTypeName(name string) *TypeNameAnnotation { return &TypeNameAnnotation{TypeName: name} }

// SuppressTypeName returns an override that suppresses the type name.
func SuppressTypeName() *TypeNameAnnotation { return &TypeNameAnnotation{Null: true} }

// Null is the JSON null value. It never carries a type name.
type Null struct{}

func (Null) Kind() ValueKind                       { return KindNull }
func (Null) TypeNameOverride() *TypeNameAnnotation { return nil }
func (Null) sealed()                               {}

// Property is a named value inside a Resource.
type Property struct {
	Name        string
	Value       Value
	Annotations []InstanceAnnotation
}

// InstanceAnnotation is a namespace-qualified term applied to a resource,
// resource set or property.
type InstanceAnnotation struct {
	Term  string
	Value Value
}

// Resource is an entity or complex value.
type Resource struct {
	TypeName       string
	ID             string
	ETag           string
	Properties     []Property
	Annotations    []InstanceAnnotation
	TypeAnnotation *TypeNameAnnotation
}

func (*Resource) Kind() ValueKind                         { return KindResource }
func (r *Resource) TypeNameOverride() *TypeNameAnnotation { return r.TypeAnnotation }
func (*Resource) sealed()                                 {}

// Property returns the first property named name.
func (r *Resource) Property(name string) (Property, bool) {
	for _, p := range r.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// ResourceSet is a feed of resources.
type ResourceSet struct {
	TypeName       string
	Items          []*Resource
	Count          *int64
	NextLink       string
	DeltaLink      string
	Annotations    []InstanceAnnotation
	TypeAnnotation *TypeNameAnnotation
}

func (*ResourceSet) Kind() ValueKind                         { return KindResourceSet }
func (s *ResourceSet) TypeNameOverride() *TypeNameAnnotation { return s.TypeAnnotation }
func (*ResourceSet) sealed()                                 {}

// Collection is a collection of primitive, enum or complex values. TypeName
// has the form Collection(ElementType) when known.
type Collection struct {
	TypeName       string
	Items          []Value
	TypeAnnotation *TypeNameAnnotation
}

func (*Collection) Kind() ValueKind                         { return KindCollection }
func (c *Collection) TypeNameOverride() *TypeNameAnnotation { return c.TypeAnnotation }
func (*Collection) sealed()                                 {}

// ElementTypeName returns the element type of a Collection(X) type name.
func (c *Collection) ElementTypeName() string { return ElementTypeName(c.TypeName) }

// Enum is an enumeration member.
type Enum struct {
	TypeName       string
	Member         string
	TypeAnnotation *TypeNameAnnotation
}

func (*Enum) Kind() ValueKind                         { return KindEnum }
func (e *Enum) TypeNameOverride() *TypeNameAnnotation { return e.TypeAnnotation }
func (*Enum) sealed()                                 {}

// StreamReference describes a media stream property. It is written as
// property annotations rather than as a value.
type StreamReference struct {
	ReadLink    string
	EditLink    string
	ContentType string
	ETag        string
}

func (*StreamReference) Kind() ValueKind                       { return KindStream }
func (*StreamReference) TypeNameOverride() *TypeNameAnnotation { return nil }
func (*StreamReference) sealed()                               {}

// Untyped carries pre-serialized JSON text that is passed through verbatim.
type Untyped struct {
	Raw string
}

func (*Untyped) Kind() ValueKind                       { return KindUntyped }
func (*Untyped) TypeNameOverride() *TypeNameAnnotation { return nil }
func (*Untyped) sealed()                               {}

// CollectionTypeName wraps an element type name as Collection(name).
func CollectionTypeName(element string) string { return "Collection(" + element + ")" }

// ElementTypeName unwraps Collection(X) to X; other names yield "".
func ElementTypeName(name string) string {
	if strings.HasPrefix(name, "Collection(") && strings.HasSuffix(name, ")") {
		return name[len("Collection(") : len(name)-1]
	}
	return ""
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}
