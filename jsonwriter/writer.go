// Package jsonwriter is a scope-stack JSON token writer on top of a
// json-iterator Stream. It inserts separators automatically, serializes OData
// primitive formats and streams large strings and binaries in chunks.
//
// String escaping: '"' and '\' are backslash-escaped, control characters use
// the short escapes (\n, \r, \t) or lowercase \u00xx, and HTML characters are
// left alone. Each run of invalid UTF-8 bytes is written as U+FFFD.
package jsonwriter

import (
	"context"
	"encoding/base64"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/codec"
)

const (
	DefaultBufferSize     = 1024
	DefaultFlushThreshold = 768
	DefaultChunkSize      = 4096
)

// Options configures a Writer. Zero values select the defaults.
type Options struct {
	// IEEE754Compatible writes Int64 and Decimal values as JSON strings.
	IEEE754Compatible bool
	// BufferSize is the initial capacity of the output buffer.
	BufferSize int
	// FlushThreshold is the buffered size that triggers a flush to the sink;
	// it stays below BufferSize to leave room for escape expansion.
	FlushThreshold int
	// ChunkSize is the length above which strings and binaries are streamed
	// to the sink in pieces.
	ChunkSize int
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.FlushThreshold <= 0 || o.FlushThreshold > o.BufferSize {
		o.FlushThreshold = o.BufferSize * 3 / 4
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

var api = jsoniter.Config{EscapeHTML: false, SortMapKeys: true, UseNumber: true}.Froze()

type scopeKind int

const (
	scopeObject scopeKind = iota
	scopeArray
)

type scope struct {
	kind  scopeKind
	count int
}

// Writer writes JSON tokens. It is not safe for concurrent use.
type Writer struct {
	opts    Options
	sink    *sink
	stream  *jsoniter.Stream
	scratch *jsoniter.Stream
	scopes  []scope
	// namePending is set between WriteName and the value that follows it.
	namePending bool
	rootWritten bool
}

// New returns a Writer emitting to out.
func New(out io.Writer, opts Options) *Writer {
	opts = opts.withDefaults()
	s := &sink{out: out}
	return &Writer{
		opts:    opts,
		sink:    s,
		stream:  jsoniter.NewStream(api, s, opts.BufferSize),
		scratch: jsoniter.NewStream(api, nil, 64),
		scopes:  make([]scope, 0, 16),
	}
}

// IEEE754Compatible reports the configured flag.
func (w *Writer) IEEE754Compatible() bool { return w.opts.IEEE754Compatible }

// Depth returns the number of open scopes.
func (w *Writer) Depth() int { return len(w.scopes) }

// Bind attaches ctx to every sink write until release is called. Sinks
// implementing ContextWriter receive ctx; other sinks are guarded by a
// ctx.Err check before each write.
func (w *Writer) Bind(ctx context.Context) (release func()) {
	prev := w.sink.ctx
	w.sink.ctx = ctx
	return func() { w.sink.ctx = prev }
}

func protocolError(op, detail string) error {
	return odatajson.NewError(odatajson.CodeWriterProtocol, "op", op, "detail", detail)
}

func (w *Writer) ioErr() error {
	if w.stream.Error != nil {
		return odatajson.WrapIO(w.stream.Error)
	}
	return nil
}

// beforeValue places separators ahead of a value-producing token.
func (w *Writer) beforeValue(op string) error {
	if err := w.ioErr(); err != nil {
		return err
	}
	if len(w.scopes) == 0 {
		if w.rootWritten {
			return protocolError(op, "a second top-level value")
		}
		w.rootWritten = true
		return nil
	}
	top := &w.scopes[len(w.scopes)-1]
	if top.kind == scopeObject {
		if !w.namePending {
			return protocolError(op, "value inside an object without a preceding name")
		}
		w.namePending = false
		return nil
	}
	if top.count > 0 {
		w.stream.WriteMore()
	}
	top.count++
	return nil
}

func (w *Writer) afterToken() error {
	if w.stream.Buffered() >= w.opts.FlushThreshold {
		return w.FlushBuffer()
	}
	return w.ioErr()
}

func (w *Writer) StartObject() error {
	if err := w.beforeValue("StartObject"); err != nil {
		return err
	}
	w.stream.WriteObjectStart()
	w.scopes = append(w.scopes, scope{kind: scopeObject})
	return w.afterToken()
}

func (w *Writer) EndObject() error {
	if n := len(w.scopes); n == 0 || w.scopes[n-1].kind != scopeObject {
		return protocolError("EndObject", "no open object")
	}
	if w.namePending {
		return protocolError("EndObject", "name written without a value")
	}
	w.scopes = w.scopes[:len(w.scopes)-1]
	w.stream.WriteObjectEnd()
	return w.afterToken()
}

func (w *Writer) StartArray() error {
	if err := w.beforeValue("StartArray"); err != nil {
		return err
	}
	w.stream.WriteArrayStart()
	w.scopes = append(w.scopes, scope{kind: scopeArray})
	return w.afterToken()
}

func (w *Writer) EndArray() error {
	if n := len(w.scopes); n == 0 || w.scopes[n-1].kind != scopeArray {
		return protocolError("EndArray", "no open array")
	}
	w.scopes = w.scopes[:len(w.scopes)-1]
	w.stream.WriteArrayEnd()
	return w.afterToken()
}

// WriteName writes a property name; exactly one value must follow.
func (w *Writer) WriteName(name string) error {
	if err := w.ioErr(); err != nil {
		return err
	}
	n := len(w.scopes)
	if n == 0 || w.scopes[n-1].kind != scopeObject {
		return protocolError("WriteName", "name outside of an object")
	}
	if w.namePending {
		return protocolError("WriteName", "two names in a row")
	}
	top := &w.scopes[n-1]
	if top.count > 0 {
		w.stream.WriteMore()
	}
	top.count++
	w.stream.WriteObjectField(validUTF8(name))
	w.namePending = true
	return w.afterToken()
}

// WriteRawValue inserts pre-serialized JSON verbatim in value position.
func (w *Writer) WriteRawValue(raw string) error {
	if err := w.beforeValue("WriteRawValue"); err != nil {
		return err
	}
	w.stream.WriteRaw(raw)
	return w.afterToken()
}

// WriteJSONTree writes a pre-parsed JSON tree (maps, slices, strings,
// json.Number, bools, nil) without going through the OData value model.
func (w *Writer) WriteJSONTree(v any) error {
	if err := w.beforeValue("WriteJSONTree"); err != nil {
		return err
	}
	w.stream.WriteVal(v)
	return w.afterToken()
}

func (w *Writer) WriteNull() error {
	if err := w.beforeValue("WriteNull"); err != nil {
		return err
	}
	w.stream.WriteNil()
	return w.afterToken()
}

func (w *Writer) WriteBool(v bool) error {
	if err := w.beforeValue("WriteBool"); err != nil {
		return err
	}
	w.stream.WriteBool(v)
	return w.afterToken()
}

// WriteInt writes Byte, SByte, Int16 and Int32 values; they are always bare
// numbers.
func (w *Writer) WriteInt(v int32) error {
	if err := w.beforeValue("WriteInt"); err != nil {
		return err
	}
	w.stream.WriteInt32(v)
	return w.afterToken()
}

// WriteInt64 writes an Int64, quoted when IEEE754Compatible is set.
func (w *Writer) WriteInt64(v int64) error {
	if err := w.beforeValue("WriteInt64"); err != nil {
		return err
	}
	if w.opts.IEEE754Compatible {
		w.stream.WriteRaw(`"` + strconv.FormatInt(v, 10) + `"`)
	} else {
		w.stream.WriteInt64(v)
	}
	return w.afterToken()
}

// WriteDecimal writes an exact decimal, quoted when IEEE754Compatible is set.
func (w *Writer) WriteDecimal(v codec.Decimal) error {
	if _, err := codec.ParseDecimal(string(v)); err != nil {
		return odatajson.NewError(odatajson.CodeInvalidPrimitive, "type", "Edm.Decimal", "value", string(v)).WithCause(err)
	}
	if err := w.beforeValue("WriteDecimal"); err != nil {
		return err
	}
	if w.opts.IEEE754Compatible {
		w.stream.WriteRaw(`"` + v.String() + `"`)
	} else {
		w.stream.WriteRaw(v.String())
	}
	return w.afterToken()
}

// WriteDouble writes a Double. NaN and infinities become "NaN", "INF" and
// "-INF"; integral values keep a ".0" so readers see a floating literal.
func (w *Writer) WriteDouble(v float64) error {
	if err := w.beforeValue("WriteDouble"); err != nil {
		return err
	}
	if s, ok := codec.FormatSpecialFloat(v); ok {
		w.stream.WriteRaw(`"` + s + `"`)
		return w.afterToken()
	}
	start := w.stream.Buffered()
	w.stream.WriteFloat64(v)
	w.ensureFraction(start)
	return w.afterToken()
}

// WriteSingle writes a Single with the same special-value rules as Double.
func (w *Writer) WriteSingle(v float32) error {
	if err := w.beforeValue("WriteSingle"); err != nil {
		return err
	}
	if s, ok := codec.FormatSpecialFloat(float64(v)); ok {
		w.stream.WriteRaw(`"` + s + `"`)
		return w.afterToken()
	}
	start := w.stream.Buffered()
	w.stream.WriteFloat32(v)
	w.ensureFraction(start)
	return w.afterToken()
}

func (w *Writer) ensureFraction(start int) {
	buf := w.stream.Buffer()
	if start > len(buf) {
		return
	}
	for _, c := range buf[start:] {
		if c == '.' || c == 'e' || c == 'E' {
			return
		}
	}
	w.stream.WriteRaw(".0")
}

// WriteString writes an escaped string; long strings are streamed in chunks.
func (w *Writer) WriteString(v string) error {
	if err := w.beforeValue("WriteString"); err != nil {
		return err
	}
	if len(v) <= w.opts.ChunkSize {
		w.stream.WriteString(validUTF8(v))
		return w.afterToken()
	}
	w.stream.WriteRaw(`"`)
	for len(v) > 0 {
		n := runeBoundary([]byte(v[:min(len(v), w.opts.ChunkSize)]))
		if n == 0 {
			n = min(len(v), w.opts.ChunkSize)
		}
		w.writeEscapedChunk(v[:n])
		v = v[n:]
		if err := w.FlushBuffer(); err != nil {
			return err
		}
	}
	w.stream.WriteRaw(`"`)
	return w.afterToken()
}

// writeEscapedChunk escapes s without surrounding quotes.
func (w *Writer) writeEscapedChunk(s string) {
	w.scratch.Reset(nil)
	w.scratch.WriteString(validUTF8(s))
	b := w.scratch.Buffer()
	w.stream.WriteRaw(string(b[1 : len(b)-1]))
}

func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// runeBoundary returns the length of b without a trailing incomplete rune.
func runeBoundary(b []byte) int {
	n := len(b)
	for i := n - 1; i >= 0 && i >= n-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			break
		}
	}
	return n
}

// WriteBinary writes base64 text; large payloads are encoded in chunks.
func (w *Writer) WriteBinary(v []byte) error {
	if err := w.beforeValue("WriteBinary"); err != nil {
		return err
	}
	if len(v) <= w.opts.ChunkSize {
		w.stream.WriteRaw(`"` + codec.FormatBinary(v) + `"`)
		return w.afterToken()
	}
	w.stream.WriteRaw(`"`)
	enc := base64.NewEncoder(base64.StdEncoding, rawSink{w})
	for len(v) > 0 {
		n := min(len(v), w.opts.ChunkSize)
		if _, err := enc.Write(v[:n]); err != nil {
			return odatajson.WrapIO(err)
		}
		v = v[n:]
	}
	if err := enc.Close(); err != nil {
		return odatajson.WrapIO(err)
	}
	w.stream.WriteRaw(`"`)
	return w.afterToken()
}

// StreamText copies r into a JSON string value without holding it in memory.
func (w *Writer) StreamText(r io.Reader) error {
	if err := w.beforeValue("StreamText"); err != nil {
		return err
	}
	w.stream.WriteRaw(`"`)
	buf := make([]byte, w.opts.ChunkSize)
	carry := 0
	for {
		n, err := r.Read(buf[carry:])
		n += carry
		cut := runeBoundary(buf[:n])
		if err != nil {
			cut = n
		}
		if cut > 0 {
			w.writeEscapedChunk(string(buf[:cut]))
			if ferr := w.FlushBuffer(); ferr != nil {
				return ferr
			}
		}
		carry = copy(buf, buf[cut:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return odatajson.WrapIO(err)
		}
	}
	w.stream.WriteRaw(`"`)
	return w.afterToken()
}

// StreamBinary base64-encodes r into a JSON string value in chunks.
func (w *Writer) StreamBinary(r io.Reader) error {
	if err := w.beforeValue("StreamBinary"); err != nil {
		return err
	}
	w.stream.WriteRaw(`"`)
	enc := base64.NewEncoder(base64.StdEncoding, rawSink{w})
	if _, err := io.CopyBuffer(enc, r, make([]byte, w.opts.ChunkSize)); err != nil {
		return odatajson.WrapIO(err)
	}
	if err := enc.Close(); err != nil {
		return odatajson.WrapIO(err)
	}
	w.stream.WriteRaw(`"`)
	return w.afterToken()
}

func (w *Writer) writeQuoted(op, s string) error {
	if err := w.beforeValue(op); err != nil {
		return err
	}
	w.stream.WriteRaw(`"` + s + `"`)
	return w.afterToken()
}

func (w *Writer) WriteGuid(v uuid.UUID) error { return w.writeQuoted("WriteGuid", v.String()) }
func (w *Writer) WriteDate(v codec.Date) error { return w.writeQuoted("WriteDate", v.String()) }
func (w *Writer) WriteTimeOfDay(v codec.TimeOfDay) error {
	return w.writeQuoted("WriteTimeOfDay", v.String())
}
func (w *Writer) WriteDuration(v time.Duration) error {
	return w.writeQuoted("WriteDuration", codec.FormatDuration(v))
}
func (w *Writer) WriteDateTimeOffset(v time.Time) error {
	return w.writeQuoted("WriteDateTimeOffset", codec.FormatDateTimeOffset(v))
}

// WritePoint writes a GeoJSON point with its coordinate reference system
// (EPSG:4326 for geography, EPSG:0 for geometry).
func (w *Writer) WritePoint(p odatajson.Point, geography bool) error {
	crs := "EPSG:0"
	if geography {
		crs = "EPSG:4326"
	}
	if err := w.StartObject(); err != nil {
		return err
	}
	steps := []func() error{
		func() error { return w.WriteName("type") },
		func() error { return w.WriteString("Point") },
		func() error { return w.WriteName("coordinates") },
		w.StartArray,
		func() error { return w.WriteDouble(p.Longitude) },
		func() error { return w.WriteDouble(p.Latitude) },
		w.EndArray,
		func() error { return w.WriteName("crs") },
		func() error { return w.WriteRawValue(`{"type":"name","properties":{"name":"` + crs + `"}}`) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return w.EndObject()
}

// WritePrimitive dispatches on the primitive's type tag.
func (w *Writer) WritePrimitive(p *odatajson.Primitive) error {
	if p == nil || p.Value == nil {
		return w.WriteNull()
	}
	bad := func() error {
		return odatajson.NewError(odatajson.CodeInvalidPrimitive, "type", p.TypeName(), "value", p.Value)
	}
	switch p.Type {
	case odatajson.PrimitiveBoolean:
		if v, ok := p.Value.(bool); ok {
			return w.WriteBool(v)
		}
	case odatajson.PrimitiveByte:
		if v, ok := p.Value.(uint8); ok {
			return w.WriteInt(int32(v))
		}
	case odatajson.PrimitiveSByte:
		if v, ok := p.Value.(int8); ok {
			return w.WriteInt(int32(v))
		}
	case odatajson.PrimitiveInt16:
		if v, ok := p.Value.(int16); ok {
			return w.WriteInt(int32(v))
		}
	case odatajson.PrimitiveInt32:
		if v, ok := p.Value.(int32); ok {
			return w.WriteInt(v)
		}
	case odatajson.PrimitiveInt64:
		if v, ok := p.Value.(int64); ok {
			return w.WriteInt64(v)
		}
	case odatajson.PrimitiveSingle:
		if v, ok := p.Value.(float32); ok {
			return w.WriteSingle(v)
		}
	case odatajson.PrimitiveDouble:
		if v, ok := p.Value.(float64); ok {
			return w.WriteDouble(v)
		}
	case odatajson.PrimitiveDecimal:
		if v, ok := p.Value.(codec.Decimal); ok {
			return w.WriteDecimal(v)
		}
	case odatajson.PrimitiveString:
		if v, ok := p.Value.(string); ok {
			return w.WriteString(v)
		}
	case odatajson.PrimitiveBinary:
		if v, ok := p.Value.([]byte); ok {
			return w.WriteBinary(v)
		}
	case odatajson.PrimitiveGuid:
		if v, ok := p.Value.(uuid.UUID); ok {
			return w.WriteGuid(v)
		}
	case odatajson.PrimitiveDate:
		if v, ok := p.Value.(codec.Date); ok {
			return w.WriteDate(v)
		}
	case odatajson.PrimitiveDateTimeOffset:
		if v, ok := p.Value.(time.Time); ok {
			return w.WriteDateTimeOffset(v)
		}
	case odatajson.PrimitiveDuration:
		if v, ok := p.Value.(time.Duration); ok {
			return w.WriteDuration(v)
		}
	case odatajson.PrimitiveTimeOfDay:
		if v, ok := p.Value.(codec.TimeOfDay); ok {
			return w.WriteTimeOfDay(v)
		}
	case odatajson.PrimitiveGeographyPoint, odatajson.PrimitiveGeometryPoint:
		if v, ok := p.Value.(odatajson.Point); ok {
			return w.WritePoint(v, p.Type == odatajson.PrimitiveGeographyPoint)
		}
	}
	return bad()
}

// Flush verifies every scope is closed and pushes buffered bytes to the sink.
func (w *Writer) Flush() error {
	if len(w.scopes) > 0 || w.namePending {
		return odatajson.NewError(odatajson.CodeUnbalancedScopes, "open", len(w.scopes))
	}
	return w.FlushBuffer()
}

// FlushBuffer pushes buffered bytes to the sink without structural checks.
// Flushing an empty buffer is a no-op.
func (w *Writer) FlushBuffer() error {
	if err := w.ioErr(); err != nil {
		return err
	}
	if w.stream.Buffered() == 0 {
		return nil
	}
	return odatajson.WrapIO(w.stream.Flush())
}

// rawSink appends already-safe bytes (base64 output) to the stream.
type rawSink struct{ w *Writer }

func (r rawSink) Write(p []byte) (int, error) {
	r.w.stream.WriteRaw(string(p))
	if r.w.stream.Buffered() >= r.w.opts.FlushThreshold {
		if err := r.w.FlushBuffer(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// ContextWriter is implemented by sinks that accept a context per write.
type ContextWriter interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

type sink struct {
	out io.Writer
	ctx context.Context
}

func (s *sink) Write(p []byte) (int, error) {
	if s.ctx == nil {
		return s.out.Write(p)
	}
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	if cw, ok := s.out.(ContextWriter); ok {
		return cw.WriteContext(s.ctx, p)
	}
	return s.out.Write(p)
}
