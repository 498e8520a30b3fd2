// Package serializer writes OData JSON payloads (resources, resource sets,
// individual properties and error documents) onto a jsonwriter.Writer.
package serializer

import (
	"context"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/annotation"
	"github.com/reoring/odatajson/edm"
	"github.com/reoring/odatajson/jsonwriter"
	"github.com/reoring/odatajson/typename"
)

// Settings configures a Serializer.
type Settings struct {
	Model    edm.Model
	Metadata odatajson.MetadataLevel
	Version  odatajson.Version
	// AnnotationFilter selects instance annotations; nil excludes all.
	AnnotationFilter annotation.Filter
	// ContextURL is written as odata.context on top-level payloads when set.
	ContextURL string
}

// Serializer is bound to one JSON writer. It does not flush; call Flush once
// the payload is complete.
type Serializer struct {
	jw     *jsonwriter.Writer
	set    Settings
	oracle typename.Oracle
	ann    *annotation.Writer
}

func New(jw *jsonwriter.Writer, set Settings) *Serializer {
	s := &Serializer{jw: jw, set: set, oracle: typename.For(set.Metadata, set.Model)}
	s.ann = annotation.NewWriter(jw, set.Model, s.oracle, s, annotation.Options{
		Version: set.Version,
		Filter:  set.AnnotationFilter,
	})
	return s
}

// Annotations exposes the instance-annotation writer, for callers writing
// annotations incrementally with their own Tracker.
func (s *Serializer) Annotations() *annotation.Writer { return s.ann }

// Bind routes writes issued until release through ctx.
func (s *Serializer) Bind(ctx context.Context) (release func()) { return s.jw.Bind(ctx) }

// Flush checks the payload is complete and pushes it to the sink.
func (s *Serializer) Flush() error { return s.jw.Flush() }

func (s *Serializer) control(name string) string { return s.set.Version.ControlName(name) }

func (s *Serializer) propertyControl(prop, name string) string {
	return s.set.Version.PropertyControlName(prop, name)
}

func (s *Serializer) writeStringProp(name, value string) error {
	if err := s.jw.WriteName(name); err != nil {
		return err
	}
	return s.jw.WriteString(value)
}

func (s *Serializer) writeContext() error {
	if s.set.ContextURL == "" || s.jw.Depth() != 1 {
		return nil
	}
	return s.writeStringProp(s.control(odatajson.ControlContext), s.set.ContextURL)
}

func (s *Serializer) writeTypeControl(name string, ok bool) error {
	if !ok {
		return nil
	}
	return s.writeStringProp(s.control(odatajson.ControlType), odatajson.WireTypeName(name))
}

// WriteResource writes r as a top-level entity or complex payload. expected
// is the type the payload's context implies.
func (s *Serializer) WriteResource(r *odatajson.Resource, expected string) error {
	if r == nil {
		return s.jw.WriteNull()
	}
	ctx := typename.Context{TopLevel: s.jw.Depth() == 0}
	if err := s.jw.StartObject(); err != nil {
		return err
	}
	if err := s.writeContext(); err != nil {
		return err
	}
	if err := s.writeTypeControl(s.oracle.TypeNameForResource(r, expected, ctx)); err != nil {
		return err
	}
	if err := s.writeResourceBody(r, expected); err != nil {
		return err
	}
	return s.jw.EndObject()
}

// writeResourceBody writes the control information after odata.type, the
// instance annotations and the properties of r.
func (s *Serializer) writeResourceBody(r *odatajson.Resource, expected string) error {
	if r.ID != "" {
		if err := s.writeStringProp(s.control(odatajson.ControlID), r.ID); err != nil {
			return err
		}
	}
	if r.ETag != "" {
		if err := s.writeStringProp(s.control(odatajson.ControlETag), r.ETag); err != nil {
			return err
		}
	}
	if err := s.ann.WriteInstanceAnnotations(r.Annotations, nil, ""); err != nil {
		return err
	}
	owner := r.TypeName
	if owner == "" {
		owner = expected
	}
	for _, p := range r.Properties {
		if err := s.writeProperty(owner, p); err != nil {
			return err
		}
	}
	return nil
}

// declaredProperty resolves a property's declared type; ok=false marks an
// open (dynamic) property.
func (s *Serializer) declaredProperty(owner, name string) (*edm.TypeRef, bool) {
	if s.set.Model == nil || owner == "" {
		return nil, false
	}
	return edm.LookupProperty(s.set.Model, owner, name)
}

func (s *Serializer) writeProperty(owner string, p odatajson.Property) error {
	declared, ok := s.declaredProperty(owner, p.Name)
	ctx := typename.Context{Open: !ok}
	if err := s.ann.WriteInstanceAnnotations(p.Annotations, nil, p.Name); err != nil {
		return err
	}
	switch v := p.Value.(type) {
	case *odatajson.StreamReference:
		return s.writeStreamReference(p.Name, v)
	case *odatajson.Resource:
		if err := s.jw.WriteName(p.Name); err != nil {
			return err
		}
		return s.WriteResourceValue(v, declared, typename.Context{Open: !ok, NestedResource: true})
	case *odatajson.ResourceSet:
		return s.writeNestedResourceSet(p.Name, v, declared)
	}
	if name, write := s.oracle.TypeNameForValue(p.Value, declared, ctx); write {
		if err := s.writeStringProp(s.propertyControl(p.Name, odatajson.ControlType), odatajson.WireTypeName(name)); err != nil {
			return err
		}
	}
	if err := s.jw.WriteName(p.Name); err != nil {
		return err
	}
	return s.writeValue(p.Value, declared, ctx)
}

// writeStreamReference writes a media stream property as control
// information only.
func (s *Serializer) writeStreamReference(prop string, v *odatajson.StreamReference) error {
	for _, kv := range [...]struct{ name, value string }{
		{odatajson.ControlMediaEditLink, v.EditLink},
		{odatajson.ControlMediaReadLink, v.ReadLink},
		{odatajson.ControlMediaContentType, v.ContentType},
		{odatajson.ControlMediaETag, v.ETag},
	} {
		if kv.value == "" {
			continue
		}
		if err := s.writeStringProp(s.propertyControl(prop, kv.name), kv.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) writeNestedResourceSet(prop string, set *odatajson.ResourceSet, declared *edm.TypeRef) error {
	expected := ""
	if declared != nil && declared.Element != nil {
		expected = declared.Element.Name
	}
	if set.Count != nil {
		if err := s.jw.WriteName(s.propertyControl(prop, odatajson.ControlCount)); err != nil {
			return err
		}
		if err := s.jw.WriteInt64(*set.Count); err != nil {
			return err
		}
	}
	if set.NextLink != "" {
		if err := s.writeStringProp(s.propertyControl(prop, odatajson.ControlNextLink), set.NextLink); err != nil {
			return err
		}
	}
	if err := s.jw.WriteName(prop); err != nil {
		return err
	}
	return s.writeItems(set, expected)
}

func (s *Serializer) writeItems(set *odatajson.ResourceSet, expected string) error {
	if set.TypeName != "" {
		expected = set.TypeName
	}
	if err := s.jw.StartArray(); err != nil {
		return err
	}
	for _, item := range set.Items {
		if item == nil {
			if err := s.jw.WriteNull(); err != nil {
				return err
			}
			continue
		}
		if err := s.jw.StartObject(); err != nil {
			return err
		}
		name, ok := s.oracle.TypeNameForResource(item, expected, typename.Context{CollectionElement: true})
		if err := s.writeTypeControl(name, ok); err != nil {
			return err
		}
		if err := s.writeResourceBody(item, expected); err != nil {
			return err
		}
		if err := s.jw.EndObject(); err != nil {
			return err
		}
	}
	return s.jw.EndArray()
}

// WriteResourceSet writes set as a top-level feed payload. expected is the
// entity type the context implies.
func (s *Serializer) WriteResourceSet(set *odatajson.ResourceSet, expected string) error {
	if err := s.jw.StartObject(); err != nil {
		return err
	}
	if err := s.writeContext(); err != nil {
		return err
	}
	if err := s.writeTypeControl(s.oracle.TypeNameForResourceSet(set, expected, typename.Context{TopLevel: true})); err != nil {
		return err
	}
	if set.Count != nil {
		if err := s.jw.WriteName(s.control(odatajson.ControlCount)); err != nil {
			return err
		}
		if err := s.jw.WriteInt64(*set.Count); err != nil {
			return err
		}
	}
	if err := s.ann.WriteInstanceAnnotations(set.Annotations, nil, ""); err != nil {
		return err
	}
	if err := s.jw.WriteName("value"); err != nil {
		return err
	}
	if err := s.writeItems(set, expected); err != nil {
		return err
	}
	if set.NextLink != "" {
		if err := s.writeStringProp(s.control(odatajson.ControlNextLink), set.NextLink); err != nil {
			return err
		}
	}
	if set.DeltaLink != "" {
		if err := s.writeStringProp(s.control(odatajson.ControlDeltaLink), set.DeltaLink); err != nil {
			return err
		}
	}
	return s.jw.EndObject()
}

// WriteProperty writes a top-level individual property payload:
// {"@odata.context":...,"value":...}. A structured value is written as the
// payload object itself.
func (s *Serializer) WriteProperty(v odatajson.Value, declared *edm.TypeRef) error {
	if r, ok := v.(*odatajson.Resource); ok {
		expected := ""
		if declared != nil {
			expected = declared.Name
		}
		return s.WriteResource(r, expected)
	}
	ctx := typename.Context{TopLevel: true, Open: declared == nil}
	if err := s.jw.StartObject(); err != nil {
		return err
	}
	if err := s.writeContext(); err != nil {
		return err
	}
	if err := s.writeTypeControl(s.oracle.TypeNameForValue(v, declared, ctx)); err != nil {
		return err
	}
	if err := s.jw.WriteName("value"); err != nil {
		return err
	}
	if err := s.writeValue(v, declared, ctx); err != nil {
		return err
	}
	return s.jw.EndObject()
}

// WriteValue writes v without a payload wrapper.
func (s *Serializer) WriteValue(v odatajson.Value, declared *edm.TypeRef) error {
	return s.writeValue(v, declared, typename.Context{TopLevel: true, Open: declared == nil})
}

func (s *Serializer) writeValue(v odatajson.Value, declared *edm.TypeRef, ctx typename.Context) error {
	switch t := v.(type) {
	case nil, odatajson.Null:
		return s.jw.WriteNull()
	case *odatajson.Primitive:
		return s.jw.WritePrimitive(t)
	case *odatajson.Enum:
		return s.jw.WriteString(t.Member)
	case *odatajson.Untyped:
		return s.jw.WriteRawValue(t.Raw)
	case *odatajson.Resource:
		return s.WriteResourceValue(t, declared, ctx)
	case *odatajson.Collection:
		return s.WriteCollectionValue(t, declared, ctx)
	case *odatajson.ResourceSet:
		expected := ""
		if declared != nil && declared.Element != nil {
			expected = declared.Element.Name
		}
		return s.writeItems(t, expected)
	}
	return odatajson.NewError(odatajson.CodeWriterProtocol, "op", "WriteValue",
		"detail", v.Kind().String()+" values cannot be written inline")
}

// WriteResourceValue writes a nested complex or entity value. Its odata.type
// is written inside the object.
func (s *Serializer) WriteResourceValue(r *odatajson.Resource, declared *edm.TypeRef, ctx typename.Context) error {
	if r == nil {
		return s.jw.WriteNull()
	}
	expected := ""
	if declared != nil && declared.Kind != edm.KindUntyped {
		expected = declared.Name
	}
	if err := s.jw.StartObject(); err != nil {
		return err
	}
	var name string
	var ok bool
	if declared != nil && declared.Kind == edm.KindEntity {
		ctx.NestedResource = true
		name, ok = s.oracle.TypeNameForResource(r, expected, ctx)
	} else {
		name, ok = s.oracle.TypeNameForValue(r, declared, ctx)
	}
	if err := s.writeTypeControl(name, ok); err != nil {
		return err
	}
	if err := s.writeResourceBody(r, expected); err != nil {
		return err
	}
	return s.jw.EndObject()
}

// WriteCollectionValue writes the items of c as a JSON array. Element type
// names follow the same rules against the declared element type.
func (s *Serializer) WriteCollectionValue(c *odatajson.Collection, declared *edm.TypeRef, ctx typename.Context) error {
	elem := s.elementType(c, declared)
	if err := s.jw.StartArray(); err != nil {
		return err
	}
	ectx := typename.Context{CollectionElement: true}
	for _, item := range c.Items {
		if err := s.writeValue(item, elem, ectx); err != nil {
			return err
		}
	}
	return s.jw.EndArray()
}

func (s *Serializer) elementType(c *odatajson.Collection, declared *edm.TypeRef) *edm.TypeRef {
	if declared != nil && declared.Element != nil {
		return declared.Element
	}
	name := c.ElementTypeName()
	if name == "" {
		return nil
	}
	if s.set.Model != nil {
		if ref, ok := s.set.Model.LookupType(name); ok {
			return ref
		}
	}
	if k, ok := odatajson.PrimitiveKindOf(name); ok {
		return edm.PrimitiveRef(k, true)
	}
	return nil
}
