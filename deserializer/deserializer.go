// Package deserializer reads OData JSON payloads from a jsonreader.Reader
// back into the odatajson value model.
package deserializer

import (
	"strconv"
	"strings"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/edm"
	"github.com/reoring/odatajson/jsonreader"
)

// Settings configures a Deserializer.
type Settings struct {
	Model   edm.Model
	Version odatajson.Version
	// Buffering reads a resource set's trailing control information and
	// annotations before its items are delivered.
	Buffering bool
}

// Deserializer is not safe for concurrent use.
type Deserializer struct {
	r          *jsonreader.Reader
	set        Settings
	contextURL string
}

func New(r *jsonreader.Reader, set Settings) *Deserializer {
	return &Deserializer{r: r, set: set}
}

// ContextURL returns the odata.context of the last top-level payload read.
func (d *Deserializer) ContextURL() string { return d.contextURL }

func (d *Deserializer) start() error {
	if d.r.NodeType() != jsonreader.None {
		return nil
	}
	_, err := d.r.Read()
	return err
}

type nameKind int

const (
	namePlain nameKind = iota
	nameControl
	nameAnnotation
	nameAnnotationControl
)

// name is a classified JSON property name. prop is empty for names
// applying to the enclosing object.
type name struct {
	kind    nameKind
	prop    string
	term    string
	control string
	raw     string
}

func (d *Deserializer) parseName(raw string) name {
	prop, rest, found := strings.Cut(raw, "@")
	if !found {
		return name{kind: namePlain, prop: raw, raw: raw}
	}
	v := d.set.Version
	if ctrl, ok := v.ParseControlName("@" + rest); ok {
		return name{kind: nameControl, prop: prop, control: ctrl, raw: raw}
	}
	term, suffix, found := strings.Cut(rest, "@")
	if found {
		if ctrl, ok := v.ParseControlName("@" + suffix); ok {
			return name{kind: nameAnnotationControl, prop: prop, term: term, control: ctrl, raw: raw}
		}
	}
	return name{kind: nameAnnotation, prop: prop, term: rest, raw: raw}
}

func (d *Deserializer) readString() (string, error) {
	v, err := d.r.ReadPrimitiveValue()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", odatajson.NewError(odatajson.CodeUnexpectedNode, "expected", "string", "actual", jsonreader.PrimitiveValue.String())
	}
	return s, nil
}

func (d *Deserializer) readCount() (*int64, error) {
	v, err := d.r.ReadPrimitiveValue()
	if err != nil {
		return nil, err
	}
	text, ok := numberText(v)
	if !ok {
		return nil, invalid(v, odatajson.PrimitiveInt64)
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, invalid(v, odatajson.PrimitiveInt64)
	}
	return &n, nil
}

func (d *Deserializer) resolve(typeName string) *edm.TypeRef {
	if d.set.Model != nil {
		if ref, ok := d.set.Model.LookupType(typeName); ok {
			return ref
		}
	}
	if elem := odatajson.ElementTypeName(typeName); elem != "" {
		if k, ok := odatajson.PrimitiveKindOf(elem); ok {
			return edm.CollectionRef(edm.PrimitiveRef(k, true), true)
		}
		return &edm.TypeRef{Name: typeName, Kind: edm.KindCollection, Nullable: true}
	}
	if k, ok := odatajson.PrimitiveKindOf(typeName); ok && strings.HasPrefix(typeName, "Edm.") {
		return edm.PrimitiveRef(k, true)
	}
	return nil
}

// pending collects the annotations and control information that precede a
// property's value.
type pending struct {
	types       map[string]string // prop -> wire type name
	annTypes    map[string]string // prop@term -> wire type name
	annotations map[string][]odatajson.InstanceAnnotation
	streams     map[string]*odatajson.StreamReference
	sets        map[string]*odatajson.ResourceSet
	order       []string // props seen only through annotations, in order
}

func newPending() *pending {
	return &pending{
		types:       map[string]string{},
		annTypes:    map[string]string{},
		annotations: map[string][]odatajson.InstanceAnnotation{},
		streams:     map[string]*odatajson.StreamReference{},
		sets:        map[string]*odatajson.ResourceSet{},
	}
}

func (p *pending) stream(prop string) *odatajson.StreamReference {
	s, ok := p.streams[prop]
	if !ok {
		s = &odatajson.StreamReference{}
		p.streams[prop] = s
		p.order = append(p.order, prop)
	}
	return s
}

func (p *pending) set(prop string) *odatajson.ResourceSet {
	s, ok := p.sets[prop]
	if !ok {
		s = &odatajson.ResourceSet{}
		p.sets[prop] = s
	}
	return s
}

// ReadResource reads a top-level entity or complex payload.
func (d *Deserializer) ReadResource(expected string) (*odatajson.Resource, error) {
	if err := d.start(); err != nil {
		return nil, err
	}
	if err := d.r.ReadStartObject(); err != nil {
		return nil, err
	}
	return d.readResourceBody(expected)
}

// readResourceBody reads properties until the closing brace of an object
// whose start has already been consumed.
func (d *Deserializer) readResourceBody(expected string) (*odatajson.Resource, error) {
	res := &odatajson.Resource{}
	p := newPending()
	owner := expected
	for d.r.NodeType() == jsonreader.Property {
		raw, err := d.r.ReadPropertyName()
		if err != nil {
			return nil, err
		}
		n := d.parseName(raw)
		switch {
		case n.kind == namePlain:
			if err := d.readProperty(res, p, owner, n.prop); err != nil {
				return nil, err
			}
		case n.prop == "":
			if err := d.readResourceLevel(res, p, n, &owner); err != nil {
				return nil, err
			}
		default:
			if err := d.readPropertyLevel(p, n); err != nil {
				return nil, err
			}
		}
	}
	for _, prop := range p.order {
		if _, seen := res.Property(prop); seen {
			continue
		}
		if s, ok := p.streams[prop]; ok {
			res.Properties = append(res.Properties, odatajson.Property{Name: prop, Value: s, Annotations: p.annotations[prop]})
		}
	}
	if err := d.r.ReadEndObject(); err != nil {
		return nil, err
	}
	if res.TypeName == "" {
		res.TypeName = expected
	}
	return res, nil
}

func (d *Deserializer) readResourceLevel(res *odatajson.Resource, p *pending, n name, owner *string) error {
	switch n.kind {
	case nameControl:
		switch n.control {
		case odatajson.ControlType:
			s, err := d.readString()
			if err != nil {
				return err
			}
			res.TypeName = odatajson.ParseWireTypeName(s)
			*owner = res.TypeName
			return nil
		case odatajson.ControlID, odatajson.ControlETag, odatajson.ControlContext:
			s, err := d.readString()
			if err != nil {
				return err
			}
			switch n.control {
			case odatajson.ControlID:
				res.ID = s
			case odatajson.ControlETag:
				res.ETag = s
			default:
				d.contextURL = s
			}
			return nil
		}
		return d.r.SkipValue()
	case nameAnnotationControl:
		if n.control != odatajson.ControlType {
			return d.r.SkipValue()
		}
		s, err := d.readString()
		p.annTypes["@"+n.term] = s
		return err
	default:
		v, err := d.readAnnotationValue(n.term, p.annTypes["@"+n.term])
		if err != nil {
			return err
		}
		res.Annotations = append(res.Annotations, odatajson.InstanceAnnotation{Term: n.term, Value: v})
		return nil
	}
}

func (d *Deserializer) readPropertyLevel(p *pending, n name) error {
	switch n.kind {
	case nameControl:
		var target *string
		switch n.control {
		case odatajson.ControlType:
			s, err := d.readString()
			p.types[n.prop] = s
			return err
		case odatajson.ControlCount:
			c, err := d.readCount()
			p.set(n.prop).Count = c
			return err
		case odatajson.ControlNextLink:
			target = &p.set(n.prop).NextLink
		case odatajson.ControlDeltaLink:
			target = &p.set(n.prop).DeltaLink
		case odatajson.ControlMediaReadLink:
			target = &p.stream(n.prop).ReadLink
		case odatajson.ControlMediaEditLink:
			target = &p.stream(n.prop).EditLink
		case odatajson.ControlMediaContentType:
			target = &p.stream(n.prop).ContentType
		case odatajson.ControlMediaETag:
			target = &p.stream(n.prop).ETag
		default:
			return d.r.SkipValue()
		}
		s, err := d.readString()
		*target = s
		return err
	case nameAnnotationControl:
		if n.control != odatajson.ControlType {
			return d.r.SkipValue()
		}
		s, err := d.readString()
		p.annTypes[n.prop+"@"+n.term] = s
		return err
	default:
		v, err := d.readAnnotationValue(n.term, p.annTypes[n.prop+"@"+n.term])
		if err != nil {
			return err
		}
		p.annotations[n.prop] = append(p.annotations[n.prop], odatajson.InstanceAnnotation{Term: n.term, Value: v})
		return nil
	}
}

func (d *Deserializer) readProperty(res *odatajson.Resource, p *pending, owner, prop string) error {
	var declared *edm.TypeRef
	if d.set.Model != nil && owner != "" {
		declared, _ = edm.LookupProperty(d.set.Model, owner, prop)
	}
	v, err := d.readValue(declared, p.types[prop])
	if err != nil {
		return err
	}
	if set, ok := v.(*odatajson.ResourceSet); ok {
		if meta, ok := p.sets[prop]; ok {
			set.Count, set.NextLink, set.DeltaLink = meta.Count, meta.NextLink, meta.DeltaLink
		}
	}
	res.Properties = append(res.Properties, odatajson.Property{Name: prop, Value: v, Annotations: p.annotations[prop]})
	return nil
}

// readAnnotationValue reconstructs an annotation value from its companion
// type, the declared term type or the JSON shape, in that order.
func (d *Deserializer) readAnnotationValue(term, wireType string) (odatajson.Value, error) {
	var declared *edm.TypeRef
	if d.set.Model != nil {
		declared, _ = d.set.Model.LookupTerm(term)
	}
	return d.readValue(declared, wireType)
}

// readValue reads the value the reader is positioned on.
func (d *Deserializer) readValue(declared *edm.TypeRef, wireType string) (odatajson.Value, error) {
	ref := declared
	if wireType != "" {
		name := odatajson.ParseWireTypeName(wireType)
		if ref = d.resolve(name); ref == nil {
			if d.set.Model != nil {
				return nil, odatajson.NewError(odatajson.CodeUnresolvedType, "type", name)
			}
			ref = &edm.TypeRef{Name: name, Kind: edm.KindComplex, Nullable: true}
		}
	}
	switch d.r.NodeType() {
	case jsonreader.PrimitiveValue:
		return d.readPrimitive(ref)
	case jsonreader.StartObject:
		return d.readObjectValue(ref)
	case jsonreader.StartArray:
		return d.readArrayValue(ref)
	}
	return nil, odatajson.NewError(odatajson.CodeUnexpectedNode,
		"expected", "PrimitiveValue|StartObject|StartArray", "actual", d.r.NodeType().String())
}

func (d *Deserializer) readPrimitive(ref *edm.TypeRef) (odatajson.Value, error) {
	raw, err := d.r.ReadPrimitiveValue()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return odatajson.Null{}, nil
	}
	if ref == nil || ref.Kind == edm.KindUntyped {
		return inferPrimitive(raw)
	}
	switch ref.Kind {
	case edm.KindPrimitive:
		return convertPrimitive(raw, ref.Primitive)
	case edm.KindEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, odatajson.NewError(odatajson.CodeInvalidPrimitive, "value", raw, "type", ref.Name)
		}
		return &odatajson.Enum{TypeName: ref.Name, Member: s}, nil
	}
	return nil, odatajson.NewError(odatajson.CodeInvalidPrimitive, "value", raw, "type", ref.Name)
}

func (d *Deserializer) readObjectValue(ref *edm.TypeRef) (odatajson.Value, error) {
	if ref != nil {
		switch {
		case ref.Kind == edm.KindPrimitive && ref.Primitive.IsSpatial():
			tree, err := d.r.ReadValueTree()
			if err != nil {
				return nil, err
			}
			return convertPoint(tree, ref.Primitive)
		case ref.Kind == edm.KindUntyped:
			raw, err := d.r.ReadRawValue()
			if err != nil {
				return nil, err
			}
			return &odatajson.Untyped{Raw: raw}, nil
		}
	}
	expected := ""
	if ref.IsStructured() {
		expected = ref.Name
	}
	if err := d.r.ReadStartObject(); err != nil {
		return nil, err
	}
	return d.readResourceBody(expected)
}

func (d *Deserializer) readArrayValue(ref *edm.TypeRef) (odatajson.Value, error) {
	if ref != nil && ref.Kind == edm.KindUntyped {
		raw, err := d.r.ReadRawValue()
		if err != nil {
			return nil, err
		}
		return &odatajson.Untyped{Raw: raw}, nil
	}
	var elem *edm.TypeRef
	typeName := ""
	if ref != nil && ref.Kind == edm.KindCollection {
		typeName = ref.Name
		elem = ref.Element
		if elem == nil {
			elem = d.resolve(odatajson.ElementTypeName(ref.Name))
		}
	}
	if err := d.r.ReadStartArray(); err != nil {
		return nil, err
	}
	if elem != nil && elem.Kind == edm.KindEntity {
		set := &odatajson.ResourceSet{TypeName: elem.Name}
		for d.r.NodeType() != jsonreader.EndArray {
			if err := d.r.ReadStartObject(); err != nil {
				return nil, err
			}
			item, err := d.readResourceBody(elem.Name)
			if err != nil {
				return nil, err
			}
			set.Items = append(set.Items, item)
		}
		return set, d.r.ReadEndArray()
	}
	c := &odatajson.Collection{TypeName: typeName}
	for d.r.NodeType() != jsonreader.EndArray {
		v, err := d.readValue(elem, "")
		if err != nil {
			return nil, err
		}
		c.Items = append(c.Items, v)
	}
	return c, d.r.ReadEndArray()
}
