package jsonwriter

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/codec"
)

// AsyncWriter exposes the Writer operations with a context. The token logic
// is shared with Writer; ctx only reaches the sink, and a cancelled ctx fails
// the call before any token is produced.
type AsyncWriter struct {
	w *Writer
}

// NewAsync returns an AsyncWriter emitting to out.
func NewAsync(out io.Writer, opts Options) *AsyncWriter { return &AsyncWriter{w: New(out, opts)} }

// Writer returns the underlying token writer for layers that drive it under
// an already bound context.
func (a *AsyncWriter) Writer() *Writer { return a.w }

func (a *AsyncWriter) do(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return odatajson.WrapIO(err)
	}
	release := a.w.Bind(ctx)
	defer release()
	return f()
}

func (a *AsyncWriter) StartObject(ctx context.Context) error { return a.do(ctx, a.w.StartObject) }
func (a *AsyncWriter) EndObject(ctx context.Context) error   { return a.do(ctx, a.w.EndObject) }
func (a *AsyncWriter) StartArray(ctx context.Context) error  { return a.do(ctx, a.w.StartArray) }
func (a *AsyncWriter) EndArray(ctx context.Context) error    { return a.do(ctx, a.w.EndArray) }
func (a *AsyncWriter) Flush(ctx context.Context) error       { return a.do(ctx, a.w.Flush) }
func (a *AsyncWriter) FlushBuffer(ctx context.Context) error { return a.do(ctx, a.w.FlushBuffer) }
func (a *AsyncWriter) WriteNull(ctx context.Context) error   { return a.do(ctx, a.w.WriteNull) }

func (a *AsyncWriter) WriteName(ctx context.Context, name string) error {
	return a.do(ctx, func() error { return a.w.WriteName(name) })
}

func (a *AsyncWriter) WriteRawValue(ctx context.Context, raw string) error {
	return a.do(ctx, func() error { return a.w.WriteRawValue(raw) })
}

func (a *AsyncWriter) WriteJSONTree(ctx context.Context, v any) error {
	return a.do(ctx, func() error { return a.w.WriteJSONTree(v) })
}

func (a *AsyncWriter) WriteBool(ctx context.Context, v bool) error {
	return a.do(ctx, func() error { return a.w.WriteBool(v) })
}

func (a *AsyncWriter) WriteInt(ctx context.Context, v int32) error {
	return a.do(ctx, func() error { return a.w.WriteInt(v) })
}

func (a *AsyncWriter) WriteInt64(ctx context.Context, v int64) error {
	return a.do(ctx, func() error { return a.w.WriteInt64(v) })
}

func (a *AsyncWriter) WriteDecimal(ctx context.Context, v codec.Decimal) error {
	return a.do(ctx, func() error { return a.w.WriteDecimal(v) })
}

func (a *AsyncWriter) WriteDouble(ctx context.Context, v float64) error {
	return a.do(ctx, func() error { return a.w.WriteDouble(v) })
}

func (a *AsyncWriter) WriteSingle(ctx context.Context, v float32) error {
	return a.do(ctx, func() error { return a.w.WriteSingle(v) })
}

func (a *AsyncWriter) WriteString(ctx context.Context, v string) error {
	return a.do(ctx, func() error { return a.w.WriteString(v) })
}

func (a *AsyncWriter) WriteBinary(ctx context.Context, v []byte) error {
	return a.do(ctx, func() error { return a.w.WriteBinary(v) })
}

func (a *AsyncWriter) WriteGuid(ctx context.Context, v uuid.UUID) error {
	return a.do(ctx, func() error { return a.w.WriteGuid(v) })
}

func (a *AsyncWriter) WriteDate(ctx context.Context, v codec.Date) error {
	return a.do(ctx, func() error { return a.w.WriteDate(v) })
}

func (a *AsyncWriter) WriteDateTimeOffset(ctx context.Context, v time.Time) error {
	return a.do(ctx, func() error { return a.w.WriteDateTimeOffset(v) })
}

func (a *AsyncWriter) WriteDuration(ctx context.Context, v time.Duration) error {
	return a.do(ctx, func() error { return a.w.WriteDuration(v) })
}

func (a *AsyncWriter) WriteTimeOfDay(ctx context.Context, v codec.TimeOfDay) error {
	return a.do(ctx, func() error { return a.w.WriteTimeOfDay(v) })
}

func (a *AsyncWriter) WritePrimitive(ctx context.Context, p *odatajson.Primitive) error {
	return a.do(ctx, func() error { return a.w.WritePrimitive(p) })
}

func (a *AsyncWriter) StreamText(ctx context.Context, r io.Reader) error {
	return a.do(ctx, func() error { return a.w.StreamText(r) })
}

func (a *AsyncWriter) StreamBinary(ctx context.Context, r io.Reader) error {
	return a.do(ctx, func() error { return a.w.StreamBinary(r) })
}
