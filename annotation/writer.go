// Package annotation writes OData instance annotations ("@NS.Term" and
// "Prop@NS.Term") with their companion odata.type control information.
package annotation

import (
	"strings"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/edm"
	"github.com/reoring/odatajson/jsonwriter"
	"github.com/reoring/odatajson/typename"
)

// ValueWriter writes the structured values an annotation can carry. The
// serializer implements it; the annotation writer has already written the
// name when these are called.
type ValueWriter interface {
	WriteResourceValue(r *odatajson.Resource, declared *edm.TypeRef, ctx typename.Context) error
	WriteCollectionValue(c *odatajson.Collection, declared *edm.TypeRef, ctx typename.Context) error
}

// Options configures a Writer.
type Options struct {
	Version odatajson.Version
	// Filter selects the annotations written; nil means ExcludeAll.
	Filter Filter
}

// Writer is bound to one JSON writer and is not safe for concurrent use.
type Writer struct {
	jw     *jsonwriter.Writer
	model  edm.Model
	oracle typename.Oracle
	values ValueWriter
	opts   Options
}

// NewWriter returns a Writer. model may be nil, in which case every term is
// treated as undeclared.
func NewWriter(jw *jsonwriter.Writer, model edm.Model, oracle typename.Oracle, vw ValueWriter, opts Options) *Writer {
	if opts.Filter == nil {
		opts.Filter = ExcludeAll
	}
	if oracle == nil {
		oracle = typename.NewMinimal(model)
	}
	return &Writer{jw: jw, model: model, oracle: oracle, values: vw, opts: opts}
}

// WriteInstanceAnnotations writes the annotations the filter admits and the
// tracker has not seen yet. propertyName is empty for resource and resource
// set annotations. A nil tracker means a fresh one for this call.
func (w *Writer) WriteInstanceAnnotations(anns []odatajson.InstanceAnnotation, tracker *Tracker, propertyName string) error {
	return w.write(anns, tracker, propertyName, w.opts.Filter)
}

// WriteInstanceAnnotationsForError writes every annotation of an error
// payload regardless of the configured filter.
func (w *Writer) WriteInstanceAnnotationsForError(anns []odatajson.InstanceAnnotation) error {
	return w.write(anns, nil, "", IncludeAll)
}

func (w *Writer) write(anns []odatajson.InstanceAnnotation, tracker *Tracker, propertyName string, filter Filter) error {
	if len(anns) == 0 {
		return nil
	}
	if err := checkNames(anns); err != nil {
		return err
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	for _, a := range anns {
		if tracker.IsAnnotationWritten(a.Term) || !filter(a.Term) {
			continue
		}
		if err := w.writeOne(a, propertyName); err != nil {
			return err
		}
		tracker.MarkAnnotationWritten(a.Term)
	}
	return nil
}

// checkNames rejects malformed terms and case-insensitive duplicates within
// one call.
func checkNames(anns []odatajson.InstanceAnnotation) error {
	seen := make(map[string]struct{}, len(anns))
	for _, a := range anns {
		if !ValidTerm(a.Term) {
			return odatajson.NewError(odatajson.CodeInvalidAnnotationName, "term", a.Term)
		}
		k := foldTerm(a.Term)
		if _, dup := seen[k]; dup {
			return odatajson.NewError(odatajson.CodeDuplicateAnnotation, "term", a.Term)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// ValidTerm reports whether term is a namespace-qualified annotation term.
func ValidTerm(term string) bool {
	return !strings.ContainsAny(term, "@#") && validQualifiedName(term, false)
}

// Name returns the JSON name of an annotation: "@term" or "prop@term".
func Name(propertyName, term string) string { return propertyName + "@" + term }

func (w *Writer) writeOne(a odatajson.InstanceAnnotation, propertyName string) error {
	name := Name(propertyName, a.Term)
	var declared *edm.TypeRef
	if w.model != nil {
		if t, ok := w.model.LookupTerm(a.Term); ok {
			declared = t
		}
	}
	ctx := typename.Context{Open: declared == nil}

	if odatajson.IsNull(a.Value) {
		if declared != nil && !declared.Nullable {
			return odatajson.NewError(odatajson.CodeNullForNonNullable, "term", a.Term)
		}
		if err := w.jw.WriteName(name); err != nil {
			return err
		}
		return w.jw.WriteNull()
	}
	if err := w.validate(a.Term, a.Value, declared); err != nil {
		return err
	}

	switch v := a.Value.(type) {
	case *odatajson.Primitive:
		if err := w.writeTypeCompanion(name, v, declared, ctx); err != nil {
			return err
		}
		if err := w.jw.WriteName(name); err != nil {
			return err
		}
		return w.jw.WritePrimitive(v)
	case *odatajson.Enum:
		if err := w.writeTypeCompanion(name, v, declared, ctx); err != nil {
			return err
		}
		if err := w.jw.WriteName(name); err != nil {
			return err
		}
		return w.jw.WriteString(v.Member)
	case *odatajson.Resource:
		if err := w.jw.WriteName(name); err != nil {
			return err
		}
		return w.values.WriteResourceValue(v, declared, ctx)
	case *odatajson.Collection:
		if err := w.writeTypeCompanion(name, v, declared, ctx); err != nil {
			return err
		}
		if err := w.jw.WriteName(name); err != nil {
			return err
		}
		return w.values.WriteCollectionValue(v, declared, ctx)
	case *odatajson.Untyped:
		if err := w.jw.WriteName(name); err != nil {
			return err
		}
		return w.jw.WriteRawValue(v.Raw)
	}
	return odatajson.NewError(odatajson.CodeWriterProtocol, "op", "WriteInstanceAnnotations",
		"detail", a.Value.Kind().String()+" values cannot be instance annotation values")
}

func (w *Writer) writeTypeCompanion(name string, v odatajson.Value, declared *edm.TypeRef, ctx typename.Context) error {
	tn, ok := w.oracle.TypeNameForValue(v, declared, ctx)
	if !ok {
		return nil
	}
	if err := w.jw.WriteName(name + w.opts.Version.ControlName(odatajson.ControlType)); err != nil {
		return err
	}
	return w.jw.WriteString(odatajson.WireTypeName(tn))
}

// validate checks the value against the declared term type.
func (w *Writer) validate(term string, v odatajson.Value, declared *edm.TypeRef) error {
	if declared == nil || declared.Kind == edm.KindUntyped {
		return nil
	}
	actual, err := w.valueType(v)
	if err != nil || actual == nil {
		return err
	}
	if !w.model.IsAssignableFrom(declared, actual) {
		return odatajson.NewError(odatajson.CodeAnnotationTypeMismatch,
			"term", term, "actual", actual.Name, "expected", declared.Name)
	}
	return nil
}

// valueType resolves the runtime type of v; nil means the value carries no
// type of its own and takes the declared one.
func (w *Writer) valueType(v odatajson.Value) (*edm.TypeRef, error) {
	var name string
	switch t := v.(type) {
	case *odatajson.Primitive:
		return edm.PrimitiveRef(t.Type, true), nil
	case *odatajson.Untyped, *odatajson.ResourceSet, *odatajson.StreamReference:
		return nil, nil
	default:
		name = typename.ValueTypeName(v)
	}
	if name == "" {
		return nil, nil
	}
	ref, ok := w.model.LookupType(name)
	if !ok {
		return nil, odatajson.NewError(odatajson.CodeUnresolvedType, "type", name)
	}
	return ref, nil
}
