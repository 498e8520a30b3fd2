// Package jsonreader is a pull reader over JSON text producing (NodeType,
// Value) pairs, with a buffering mode that lets callers read ahead and
// rewind.
package jsonreader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	odatajson "github.com/reoring/odatajson"
	eng "github.com/reoring/odatajson/internal/engine"
	"github.com/reoring/odatajson/internal/gojson"
	"github.com/reoring/odatajson/jsonwriter"
)

// NodeType is the kind of node the reader is positioned on.
type NodeType int

const (
	None NodeType = iota
	StartObject
	EndObject
	StartArray
	EndArray
	Property
	PrimitiveValue
	EndOfInput
)

func (n NodeType) String() string {
	switch n {
	case StartObject:
		return "StartObject"
	case EndObject:
		return "EndObject"
	case StartArray:
		return "StartArray"
	case EndArray:
		return "EndArray"
	case Property:
		return "Property"
	case PrimitiveValue:
		return "PrimitiveValue"
	case EndOfInput:
		return "EndOfInput"
	default:
		return "None"
	}
}

// Number is a JSON number literal kept verbatim.
type Number string

func (n Number) String() string            { return string(n) }
func (n Number) Int64() (int64, error)     { return strconv.ParseInt(string(n), 10, 64) }
func (n Number) Float64() (float64, error) { return strconv.ParseFloat(string(n), 64) }

// IsIntegral reports whether the literal has no fraction or exponent.
func (n Number) IsIntegral() bool { return !strings.ContainsAny(string(n), ".eE") }

// Options configures a Reader.
type Options struct {
	// MaxDepth limits container nesting; 0 disables the check.
	MaxDepth int
	// AllowDuplicateProperties disables duplicate property detection.
	AllowDuplicateProperties bool
}

type state struct {
	node     NodeType
	value    any
	tok      eng.Token
	depth    int
	rootDone bool
}

// Reader is not safe for concurrent use.
type Reader struct {
	src *eng.ReplaySource
	state
	mark *state
}

// New returns a Reader over r positioned on None.
func New(r io.Reader, opts Options) *Reader {
	src := eng.Enforce(gojson.NewReader(r), eng.Limits{
		RejectDuplicates: !opts.AllowDuplicateProperties,
		MaxDepth:         opts.MaxDepth,
	})
	return &Reader{src: eng.NewReplaySource(src)}
}

// NewBytes returns a Reader over b.
func NewBytes(b []byte, opts Options) *Reader { return New(bytes.NewReader(b), opts) }

// NodeType returns the current node type.
func (r *Reader) NodeType() NodeType { return r.node }

// Value returns the property name on Property nodes and the primitive on
// PrimitiveValue nodes: string, bool, nil or Number.
func (r *Reader) Value() any { return r.value }

// Depth returns the number of open containers.
func (r *Reader) Depth() int { return r.depth }

// Offset returns the approximate input offset of the current node.
func (r *Reader) Offset() int64 { return r.tok.Offset }

// ReadContext is Read guarded by ctx.
func (r *Reader) ReadContext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, odatajson.WrapIO(err)
	}
	return r.Read()
}

// Read advances exactly one node. It returns false once EndOfInput is
// reached.
func (r *Reader) Read() (bool, error) {
	if r.node == EndOfInput {
		return false, nil
	}
	tok, err := r.src.NextToken()
	if err == io.EOF {
		if r.depth > 0 || r.node == Property || !r.rootDone {
			return false, r.parseError("unexpected end of input", nil)
		}
		r.node, r.value = EndOfInput, nil
		return false, nil
	}
	if err != nil {
		return false, r.convertError(err)
	}
	if r.rootDone && r.depth == 0 {
		return false, r.parseError("unexpected content after the top-level value", nil)
	}
	r.tok = tok
	r.value = nil
	switch tok.Kind {
	case eng.KindBeginObject:
		r.node = StartObject
		r.depth++
	case eng.KindBeginArray:
		r.node = StartArray
		r.depth++
	case eng.KindEndObject:
		r.node = EndObject
		r.depth--
	case eng.KindEndArray:
		r.node = EndArray
		r.depth--
	case eng.KindKey:
		r.node = Property
		r.value = tok.String
	case eng.KindString:
		r.node = PrimitiveValue
		r.value = tok.String
	case eng.KindNumber:
		r.node = PrimitiveValue
		r.value = Number(tok.Number)
	case eng.KindBool:
		r.node = PrimitiveValue
		r.value = tok.Bool
	default:
		r.node = PrimitiveValue
	}
	if r.depth == 0 && r.node != Property {
		r.rootDone = true
	}
	return true, nil
}

func (r *Reader) parseError(detail string, cause error) error {
	e := odatajson.NewError(odatajson.CodeParse, "detail", detail, "offset", r.src.Location())
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

func (r *Reader) convertError(err error) error {
	var v *eng.Violation
	if errors.As(err, &v) {
		return odatajson.NewError(odatajson.CodeParse, "detail", v.Detail, "path", v.Pointer, "offset", v.Offset).WithCause(err)
	}
	if _, ok := odatajson.AsError(err); ok {
		return err
	}
	return r.parseError(err.Error(), err)
}

func (r *Reader) expect(nodes ...NodeType) error {
	for _, n := range nodes {
		if r.node == n {
			return nil
		}
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.String()
	}
	return odatajson.NewError(odatajson.CodeUnexpectedNode, "expected", strings.Join(names, "|"), "actual", r.node.String())
}

func (r *Reader) readPast(n NodeType) error {
	if err := r.expect(n); err != nil {
		return err
	}
	_, err := r.Read()
	return err
}

func (r *Reader) ReadStartObject() error { return r.readPast(StartObject) }
func (r *Reader) ReadEndObject() error   { return r.readPast(EndObject) }
func (r *Reader) ReadStartArray() error  { return r.readPast(StartArray) }
func (r *Reader) ReadEndArray() error    { return r.readPast(EndArray) }

// ReadPropertyName returns the current property name and moves to its value.
func (r *Reader) ReadPropertyName() (string, error) {
	if err := r.expect(Property); err != nil {
		return "", err
	}
	name := r.value.(string)
	_, err := r.Read()
	return name, err
}

// ReadPrimitiveValue returns the current primitive and moves past it.
func (r *Reader) ReadPrimitiveValue() (any, error) {
	if err := r.expect(PrimitiveValue); err != nil {
		return nil, err
	}
	v := r.value
	_, err := r.Read()
	return v, err
}

// subtree returns a source over the value the reader is positioned on. The
// current token has already been consumed, so it is replayed first.
func (r *Reader) subtree() (eng.TokenSource, error) {
	if err := r.expect(StartObject, StartArray, PrimitiveValue); err != nil {
		return nil, err
	}
	if r.node != PrimitiveValue {
		r.depth--
	}
	return eng.NewPreloadedSource(r.src, r.tok), nil
}

func (r *Reader) drain(src eng.TokenSource, visit func(eng.Token) error) error {
	for {
		tok, err := src.NextToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return r.convertError(err)
		}
		if visit != nil {
			if err := visit(tok); err != nil {
				return err
			}
		}
	}
	if r.depth == 0 {
		r.rootDone = true
	}
	_, err := r.Read()
	return err
}

// SkipValue moves past the value the reader is positioned on.
func (r *Reader) SkipValue() error {
	src, err := r.subtree()
	if err != nil {
		return err
	}
	return r.drain(src, nil)
}

// ReadRawValue returns the current value re-emitted as compact JSON text and
// moves past it.
func (r *Reader) ReadRawValue() (string, error) {
	src, err := r.subtree()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	w := jsonwriter.New(&sb, jsonwriter.Options{})
	err = r.drain(src, func(tok eng.Token) error {
		switch tok.Kind {
		case eng.KindBeginObject:
			return w.StartObject()
		case eng.KindEndObject:
			return w.EndObject()
		case eng.KindBeginArray:
			return w.StartArray()
		case eng.KindEndArray:
			return w.EndArray()
		case eng.KindKey:
			return w.WriteName(tok.String)
		case eng.KindString:
			return w.WriteString(tok.String)
		case eng.KindNumber:
			return w.WriteRawValue(tok.Number)
		case eng.KindBool:
			return w.WriteBool(tok.Bool)
		default:
			return w.WriteNull()
		}
	})
	if err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ReadValueTree returns the current value as maps, slices, strings,
// json.Number, bools and nil, and moves past it.
func (r *Reader) ReadValueTree() (any, error) {
	src, err := r.subtree()
	if err != nil {
		return nil, err
	}
	v, err := eng.DecodeTree(src)
	if err != nil {
		return nil, r.convertError(err)
	}
	if err := r.drain(src, nil); err != nil {
		return nil, err
	}
	return v, nil
}

// StartBuffering marks the current position. Nodes read afterwards are
// replayed once StopBuffering is called.
func (r *Reader) StartBuffering() error {
	if err := r.src.Mark(); err != nil {
		return odatajson.NewError(odatajson.CodeBufferingActive)
	}
	saved := r.state
	r.mark = &saved
	return nil
}

// IsBuffering reports whether a mark is active.
func (r *Reader) IsBuffering() bool { return r.mark != nil }

// StopBuffering rewinds to the position saved by StartBuffering.
func (r *Reader) StopBuffering() {
	if r.mark == nil {
		return
	}
	r.src.Rewind()
	r.state = *r.mark
	r.mark = nil
}
