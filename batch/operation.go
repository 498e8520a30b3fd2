package batch

import (
	"bytes"
	"context"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	odatajson "github.com/reoring/odatajson"
)

type header struct{ name, value string }

// OperationMessage is one request or response inside a batch. Headers and
// the status code may be changed until the body stream is requested; the
// operation is written when its stream is closed or when the writer moves on
// to the next transition.
type OperationMessage struct {
	w         *Writer
	contentID string
	group     string
	dependsOn []string
	method    string
	url       string
	status    int
	headers   []header
	stream    *bodyStream
	written   bool
}

func (o *OperationMessage) ContentID() string { return o.contentID }

// URL returns the URL as it will be written.
func (o *OperationMessage) URL() string { return o.url }

func (o *OperationMessage) mutable(op string) error {
	if o.w.state == Faulted {
		return odatajson.NewError(odatajson.CodeWriterFaulted)
	}
	if o.stream != nil {
		return o.w.fail(odatajson.NewError(odatajson.CodeModifiedAfterStreamRequest))
	}
	if o.written {
		return o.w.fail(odatajson.NewError(odatajson.CodeWriterProtocol, "op", op, "detail", "operation already written"))
	}
	return nil
}

// SetHeader sets a header, replacing an earlier value of the same name
// (case-insensitively). Headers are written in the order first set.
func (o *OperationMessage) SetHeader(name, value string) error {
	if err := o.mutable("SetHeader"); err != nil {
		return err
	}
	for i := range o.headers {
		if strings.EqualFold(o.headers[i].name, name) {
			o.headers[i].value = value
			return nil
		}
	}
	o.headers = append(o.headers, header{name, value})
	return nil
}

// SetStatusCode sets the status of a response operation (default 200).
func (o *OperationMessage) SetStatusCode(code int) error {
	if err := o.mutable("SetStatusCode"); err != nil {
		return err
	}
	if !o.w.responses {
		return o.w.fail(odatajson.NewError(odatajson.CodeWriterProtocol, "op", "SetStatusCode", "detail", "status code on a request operation"))
	}
	o.status = code
	return nil
}

func (o *OperationMessage) header(name string) string {
	for _, h := range o.headers {
		if strings.EqualFold(h.name, name) {
			return h.value
		}
	}
	return ""
}

// Stream returns the body stream. The stream must be closed before the next
// batch-level call.
func (o *OperationMessage) Stream() (io.WriteCloser, error) {
	if err := o.w.guard("Stream", false); err != nil {
		return nil, err
	}
	return o.requestStream(context.Background())
}

// StreamAsync is Stream for async writers; ctx is used when the stream is
// closed.
func (o *OperationMessage) StreamAsync(ctx context.Context) (io.WriteCloser, error) {
	if err := o.w.guard("StreamAsync", true); err != nil {
		return nil, err
	}
	return o.requestStream(ctx)
}

func (o *OperationMessage) requestStream(ctx context.Context) (io.WriteCloser, error) {
	w := o.w
	if o.stream != nil {
		return nil, w.fail(odatajson.NewError(odatajson.CodeStreamAlreadyRequested))
	}
	if err := w.check(OperationStreamRequested); err != nil {
		return nil, err
	}
	if w.current != o {
		return nil, w.fail(odatajson.NewError(odatajson.CodeWriterProtocol, "op", "Stream", "detail", "operation is not the current operation"))
	}
	o.stream = &bodyStream{op: o, ctx: ctx}
	w.enter(OperationStreamRequested)
	return o.stream, nil
}

// bodyStream buffers the body until Close writes the operation.
type bodyStream struct {
	op     *OperationMessage
	ctx    context.Context
	buf    bytes.Buffer
	closed bool
}

func (s *bodyStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	return s.buf.Write(p)
}

// Close writes the operation with its body. Closing twice is a no-op.
func (s *bodyStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.op.w.disposeStream(s.ctx, s.op, s.buf.Bytes())
}

func (w *Writer) disposeStream(ctx context.Context, op *OperationMessage, body []byte) error {
	if err := w.check(OperationStreamDisposed); err != nil {
		return err
	}
	if err := w.io(ctx, func() error { return w.writeEntry(op, body, true) }); err != nil {
		return err
	}
	w.opts.Metrics.BodyWritten(len(body))
	w.enter(OperationStreamDisposed)
	return nil
}

func (w *Writer) writeStringProp(name, value string) error {
	if err := w.jw.WriteName(name); err != nil {
		return err
	}
	return w.jw.WriteString(value)
}

// writeEntry writes one element of the requests or responses array.
func (w *Writer) writeEntry(op *OperationMessage, body []byte, hasBody bool) error {
	jw := w.jw
	if err := jw.StartObject(); err != nil {
		return err
	}
	if op.contentID != "" {
		if err := w.writeStringProp("id", op.contentID); err != nil {
			return err
		}
	}
	if op.group != "" {
		if err := w.writeStringProp("atomicityGroup", op.group); err != nil {
			return err
		}
	}
	if len(op.dependsOn) > 0 {
		if err := jw.WriteName("dependsOn"); err != nil {
			return err
		}
		if err := jw.StartArray(); err != nil {
			return err
		}
		for _, d := range op.dependsOn {
			if err := jw.WriteString(d); err != nil {
				return err
			}
		}
		if err := jw.EndArray(); err != nil {
			return err
		}
	}
	if w.responses {
		if err := jw.WriteName("status"); err != nil {
			return err
		}
		if err := jw.WriteInt(int32(op.status)); err != nil {
			return err
		}
	} else {
		if err := w.writeStringProp("method", op.method); err != nil {
			return err
		}
		if err := w.writeStringProp("url", op.url); err != nil {
			return err
		}
	}
	if err := jw.WriteName("headers"); err != nil {
		return err
	}
	if err := jw.StartObject(); err != nil {
		return err
	}
	for _, h := range op.headers {
		if err := w.writeStringProp(h.name, h.value); err != nil {
			return err
		}
	}
	if err := jw.EndObject(); err != nil {
		return err
	}
	if hasBody {
		if err := jw.WriteName("body"); err != nil {
			return err
		}
		if err := w.writeBody(op, body); err != nil {
			return err
		}
	}
	op.written = true
	w.opts.Metrics.OperationWritten(w.mode(), op.group != "")
	return jw.EndObject()
}

// writeBody embeds JSON bodies as values. Other textual bodies become JSON
// strings and binary bodies base64 strings.
func (w *Writer) writeBody(op *OperationMessage, body []byte) error {
	if jsonContent(op.header("Content-Type")) && json.Valid(body) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err != nil {
			return odatajson.NewError(odatajson.CodeInvalidBatchPayload, "detail", err.Error())
		}
		return w.jw.WriteRawValue(buf.String())
	}
	if utf8.Valid(body) {
		return w.jw.WriteString(string(body))
	}
	return w.jw.WriteBinary(body)
}

// jsonContent reports whether a Content-Type allows embedding the body as
// JSON. A missing Content-Type does.
func jsonContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
