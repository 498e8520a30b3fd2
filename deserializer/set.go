package deserializer

import (
	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/edm"
	"github.com/reoring/odatajson/jsonreader"
	"github.com/reoring/odatajson/serializer"
)

const valueProperty = "value"

func unexpectedProperty(raw string) error {
	return odatajson.NewError(odatajson.CodeUnexpectedProperty, "name", raw)
}

// ReadResourceSet reads a top-level feed payload into memory.
func (d *Deserializer) ReadResourceSet(expected string) (*odatajson.ResourceSet, error) {
	var set *odatajson.ResourceSet
	err := d.ReadResourceSetStream(expected,
		func(s *odatajson.ResourceSet) error {
			set = s
			return nil
		},
		func(r *odatajson.Resource) error {
			set.Items = append(set.Items, r)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// ReadResourceSetStream reads a top-level feed, calling start once before
// the first item and item for every resource. Without buffering, control
// information and annotations that follow the value array are added to the
// set after start has returned; with buffering they are read first.
func (d *Deserializer) ReadResourceSetStream(expected string, start func(*odatajson.ResourceSet) error, item func(*odatajson.Resource) error) error {
	if err := d.start(); err != nil {
		return err
	}
	if err := d.r.ReadStartObject(); err != nil {
		return err
	}
	set := &odatajson.ResourceSet{}
	p := newPending()
	started, buffered, done := false, false, false
	begin := func() error {
		if started {
			return nil
		}
		started = true
		if start == nil {
			return nil
		}
		return start(set)
	}

	for d.r.NodeType() == jsonreader.Property {
		raw, err := d.r.ReadPropertyName()
		if err != nil {
			return err
		}
		n := d.parseName(raw)
		switch {
		case n.kind == namePlain && n.prop == valueProperty:
			if d.set.Buffering {
				if err := d.r.StartBuffering(); err != nil {
					return err
				}
				buffered = true
				if err := d.r.SkipValue(); err != nil {
					return err
				}
				continue
			}
			if err := begin(); err != nil {
				return err
			}
			if err := d.readItems(set, expected, item); err != nil {
				return err
			}
			done = true
		case n.kind == namePlain || n.prop != "":
			return unexpectedProperty(raw)
		default:
			if err := d.readSetLevel(set, p, n); err != nil {
				return err
			}
		}
	}

	if buffered {
		d.r.StopBuffering()
		if err := begin(); err != nil {
			return err
		}
		if err := d.readItems(set, expected, item); err != nil {
			return err
		}
		done = true
		// Everything after the array was consumed before the rewind.
		for d.r.NodeType() == jsonreader.Property {
			if _, err := d.r.ReadPropertyName(); err != nil {
				return err
			}
			if err := d.r.SkipValue(); err != nil {
				return err
			}
		}
	}
	if !done {
		if err := begin(); err != nil {
			return err
		}
	}
	return d.r.ReadEndObject()
}

func (d *Deserializer) readItems(set *odatajson.ResourceSet, expected string, item func(*odatajson.Resource) error) error {
	if set.TypeName != "" {
		expected = set.TypeName
	}
	if err := d.r.ReadStartArray(); err != nil {
		return err
	}
	for d.r.NodeType() != jsonreader.EndArray {
		if err := d.r.ReadStartObject(); err != nil {
			return err
		}
		r, err := d.readResourceBody(expected)
		if err != nil {
			return err
		}
		if item != nil {
			if err := item(r); err != nil {
				return err
			}
		}
	}
	return d.r.ReadEndArray()
}

func (d *Deserializer) readSetLevel(set *odatajson.ResourceSet, p *pending, n name) error {
	switch n.kind {
	case nameControl:
		var target *string
		switch n.control {
		case odatajson.ControlContext:
			target = &d.contextURL
		case odatajson.ControlNextLink:
			target = &set.NextLink
		case odatajson.ControlDeltaLink:
			target = &set.DeltaLink
		case odatajson.ControlCount:
			c, err := d.readCount()
			set.Count = c
			return err
		case odatajson.ControlType:
			s, err := d.readString()
			if err != nil {
				return err
			}
			name := odatajson.ParseWireTypeName(s)
			if elem := odatajson.ElementTypeName(name); elem != "" {
				name = elem
			}
			set.TypeName = name
			return nil
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
		p.annTypes[n.term] = s
		return err
	default:
		v, err := d.readAnnotationValue(n.term, p.annTypes[n.term])
		if err != nil {
			return err
		}
		set.Annotations = append(set.Annotations, odatajson.InstanceAnnotation{Term: n.term, Value: v})
		return nil
	}
}

// readWrapped reads a {"@odata.context":...,"value":...} payload. Any
// property after the value fails with its verbatim name.
func (d *Deserializer) readWrapped(declared *edm.TypeRef) (odatajson.Value, error) {
	if err := d.start(); err != nil {
		return nil, err
	}
	if err := d.r.ReadStartObject(); err != nil {
		return nil, err
	}
	var (
		value    odatajson.Value
		wireType string
		seen     bool
	)
	for d.r.NodeType() == jsonreader.Property {
		raw, err := d.r.ReadPropertyName()
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, unexpectedProperty(raw)
		}
		n := d.parseName(raw)
		switch {
		case n.kind == namePlain && n.prop == valueProperty:
			if value, err = d.readValue(declared, wireType); err != nil {
				return nil, err
			}
			seen = true
		case n.kind == namePlain || n.prop != "":
			return nil, unexpectedProperty(raw)
		case n.kind == nameControl && n.control == odatajson.ControlContext:
			if d.contextURL, err = d.readString(); err != nil {
				return nil, err
			}
		case n.kind == nameControl && n.control == odatajson.ControlType:
			if wireType, err = d.readString(); err != nil {
				return nil, err
			}
		default:
			if err := d.r.SkipValue(); err != nil {
				return nil, err
			}
		}
	}
	if !seen {
		return nil, odatajson.NewError(odatajson.CodeUnexpectedNode, "expected", jsonreader.Property.String(), "actual", d.r.NodeType().String())
	}
	return value, d.r.ReadEndObject()
}

// ReadCollection reads a top-level collection payload.
func (d *Deserializer) ReadCollection(declared *edm.TypeRef) (*odatajson.Collection, error) {
	v, err := d.readWrapped(declared)
	if err != nil {
		return nil, err
	}
	switch c := v.(type) {
	case *odatajson.Collection:
		return c, nil
	case *odatajson.ResourceSet:
		out := &odatajson.Collection{TypeName: odatajson.CollectionTypeName(c.TypeName)}
		for _, r := range c.Items {
			out.Items = append(out.Items, r)
		}
		return out, nil
	}
	return nil, odatajson.NewError(odatajson.CodeUnexpectedNode, "expected", jsonreader.StartArray.String(), "actual", v.Kind().String())
}

// ReadProperty reads a top-level individual property payload. Structured
// declared types are read as the payload object itself.
func (d *Deserializer) ReadProperty(declared *edm.TypeRef) (odatajson.Value, error) {
	if declared.IsStructured() {
		return d.ReadResource(declared.Name)
	}
	return d.readWrapped(declared)
}

// ReadError reads an {"error":{...}} payload.
func (d *Deserializer) ReadError() (serializer.ODataError, error) {
	var oe serializer.ODataError
	if err := d.start(); err != nil {
		return oe, err
	}
	if err := d.r.ReadStartObject(); err != nil {
		return oe, err
	}
	for d.r.NodeType() == jsonreader.Property {
		raw, err := d.r.ReadPropertyName()
		if err != nil {
			return oe, err
		}
		if raw != "error" {
			if err := d.r.SkipValue(); err != nil {
				return oe, err
			}
			continue
		}
		if oe, err = d.readErrorBody(); err != nil {
			return oe, err
		}
	}
	return oe, d.r.ReadEndObject()
}

func (d *Deserializer) readErrorBody() (serializer.ODataError, error) {
	var oe serializer.ODataError
	if err := d.r.ReadStartObject(); err != nil {
		return oe, err
	}
	annTypes := map[string]string{}
	for d.r.NodeType() == jsonreader.Property {
		raw, err := d.r.ReadPropertyName()
		if err != nil {
			return oe, err
		}
		n := d.parseName(raw)
		switch {
		case n.kind == namePlain && raw == "code":
			oe.Code, err = d.readString()
		case n.kind == namePlain && raw == "message":
			oe.Message, err = d.readString()
		case n.kind == namePlain && raw == "target":
			oe.Target, err = d.readString()
		case n.kind == namePlain && raw == "details":
			oe.Details, err = d.readErrorDetails()
		case n.kind == namePlain && raw == "innererror":
			var tree any
			if tree, err = d.r.ReadValueTree(); err == nil {
				oe.InnerError, _ = tree.(map[string]any)
			}
		case n.kind == nameAnnotationControl && n.prop == "" && n.control == odatajson.ControlType:
			annTypes[n.term], err = d.readString()
		case n.kind == nameAnnotation && n.prop == "":
			var v odatajson.Value
			if v, err = d.readAnnotationValue(n.term, annTypes[n.term]); err == nil {
				oe.Annotations = append(oe.Annotations, odatajson.InstanceAnnotation{Term: n.term, Value: v})
			}
		default:
			err = d.r.SkipValue()
		}
		if err != nil {
			return oe, err
		}
	}
	return oe, d.r.ReadEndObject()
}

func (d *Deserializer) readErrorDetails() ([]serializer.ErrorDetail, error) {
	if err := d.r.ReadStartArray(); err != nil {
		return nil, err
	}
	var out []serializer.ErrorDetail
	for d.r.NodeType() != jsonreader.EndArray {
		if err := d.r.ReadStartObject(); err != nil {
			return nil, err
		}
		var det serializer.ErrorDetail
		for d.r.NodeType() == jsonreader.Property {
			raw, err := d.r.ReadPropertyName()
			if err != nil {
				return nil, err
			}
			switch raw {
			case "code":
				det.Code, err = d.readString()
			case "message":
				det.Message, err = d.readString()
			case "target":
				det.Target, err = d.readString()
			default:
				err = d.r.SkipValue()
			}
			if err != nil {
				return nil, err
			}
		}
		if err := d.r.ReadEndObject(); err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, d.r.ReadEndArray()
}
