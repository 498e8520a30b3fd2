// Package batch writes and reads OData JSON batch payloads.
//
// A Writer is a state machine over one payload. Every transition is checked
// before any output is produced, and a failed call leaves the writer in the
// Faulted state. Writers are created either for synchronous use or, with
// Options.Async, for the context-taking ...Async methods; calling the other
// family is an error.
package batch

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/jsonwriter"
	"github.com/reoring/odatajson/metrics"
)

// Options configures a Writer. Zero values select no limits and no base URL.
type Options struct {
	// Async selects the context-taking method family.
	Async bool
	// BaseURL resolves relative operation URLs.
	BaseURL string
	// MaxPartsPerBatch limits top-level operations plus changesets.
	MaxPartsPerBatch int
	// MaxOperationsPerChangeset limits operations inside one changeset.
	MaxOperationsPerChangeset int
	JSON                      jsonwriter.Options
	Logger                    *slog.Logger
	Metrics                   *metrics.Collector
}

// Writer writes a {"requests":[...]} or {"responses":[...]} payload. It is
// not safe for concurrent use.
type Writer struct {
	opts      Options
	responses bool
	jw        *jsonwriter.Writer
	aw        *jsonwriter.AsyncWriter
	log       *slog.Logger
	base      *url.URL
	baseErr   error

	state    State
	group    string
	parts    int
	groupOps int
	ids      *registry
	current  *OperationMessage
}

// NewRequestWriter returns a Writer for a request batch.
func NewRequestWriter(out io.Writer, opts Options) *Writer { return newWriter(out, opts, false) }

// NewResponseWriter returns a Writer for a response batch.
func NewResponseWriter(out io.Writer, opts Options) *Writer { return newWriter(out, opts, true) }

func newWriter(out io.Writer, opts Options, responses bool) *Writer {
	w := &Writer{opts: opts, responses: responses, log: opts.Logger, ids: newRegistry()}
	if opts.Async {
		w.aw = jsonwriter.NewAsync(out, opts.JSON)
		w.jw = w.aw.Writer()
	} else {
		w.jw = jsonwriter.New(out, opts.JSON)
	}
	if w.log == nil {
		w.log = slog.New(slog.DiscardHandler)
	}
	w.base, w.baseErr = parseBase(opts.BaseURL)
	return w
}

// State returns the current state.
func (w *Writer) State() State { return w.state }

func (w *Writer) mode() string {
	if w.responses {
		return "responses"
	}
	return "requests"
}

// fail moves the writer to Faulted and returns err.
func (w *Writer) fail(err error) error {
	if err == nil {
		return nil
	}
	if w.state != Faulted {
		w.log.Debug("batch writer faulted", "from", w.state.String(), "error", err)
		w.state = Faulted
	}
	code := "io_error"
	if e, ok := odatajson.AsError(err); ok {
		code = e.Code
	}
	w.opts.Metrics.Error(code)
	return err
}

// guard rejects calls on a faulted writer and calls from the wrong method
// family.
func (w *Writer) guard(method string, async bool) error {
	if w.state == Faulted {
		return odatajson.NewError(odatajson.CodeWriterFaulted)
	}
	switch {
	case async && !w.opts.Async:
		return w.fail(odatajson.NewError(odatajson.CodeAsyncCallOnSyncWriter, "method", method))
	case !async && w.opts.Async:
		return w.fail(odatajson.NewError(odatajson.CodeSyncCallOnAsyncWriter, "method", method))
	}
	return nil
}

func (w *Writer) check(to State) error {
	if err := checkTransition(w.state, to, w.group); err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *Writer) enter(to State) {
	w.log.Debug("batch transition", "from", w.state.String(), "to", to.String(), "group", w.group)
	w.state = to
}

// io runs f with ctx bound to the sink.
func (w *Writer) io(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return w.fail(odatajson.WrapIO(err))
	}
	release := w.jw.Bind(ctx)
	defer release()
	return w.fail(f())
}

// finishCurrent writes the pending operation without a body.
func (w *Writer) finishCurrent() error {
	op := w.current
	w.current = nil
	if op == nil || op.written {
		return nil
	}
	return w.writeEntry(op, nil, false)
}

func (w *Writer) WriteStartBatch() error {
	if err := w.guard("WriteStartBatch", false); err != nil {
		return err
	}
	return w.startBatch(context.Background())
}

func (w *Writer) WriteStartBatchAsync(ctx context.Context) error {
	if err := w.guard("WriteStartBatchAsync", true); err != nil {
		return err
	}
	return w.startBatch(ctx)
}

func (w *Writer) startBatch(ctx context.Context) error {
	if err := w.check(BatchStarted); err != nil {
		return err
	}
	err := w.io(ctx, func() error {
		if err := w.jw.StartObject(); err != nil {
			return err
		}
		if err := w.jw.WriteName(w.mode()); err != nil {
			return err
		}
		return w.jw.StartArray()
	})
	if err != nil {
		return err
	}
	w.enter(BatchStarted)
	return nil
}

// WriteStartChangeset opens an atomicity group. An empty groupID is replaced
// by a random one; GroupID reports the id in use.
func (w *Writer) WriteStartChangeset(groupID string) error {
	if err := w.guard("WriteStartChangeset", false); err != nil {
		return err
	}
	return w.startChangeset(context.Background(), groupID)
}

func (w *Writer) WriteStartChangesetAsync(ctx context.Context, groupID string) error {
	if err := w.guard("WriteStartChangesetAsync", true); err != nil {
		return err
	}
	return w.startChangeset(ctx, groupID)
}

func (w *Writer) startChangeset(ctx context.Context, groupID string) error {
	if err := w.check(ChangesetStarted); err != nil {
		return err
	}
	if limit := w.opts.MaxPartsPerBatch; limit > 0 && w.parts+1 > limit {
		return w.fail(odatajson.NewError(odatajson.CodeQuotaBatchParts, "limit", limit))
	}
	if groupID == "" {
		groupID = uuid.NewString()
	}
	if err := w.ids.openGroup(groupID); err != nil {
		return w.fail(err)
	}
	if err := w.io(ctx, w.finishCurrent); err != nil {
		return err
	}
	w.parts++
	w.groupOps = 0
	w.group = groupID
	w.enter(ChangesetStarted)
	return nil
}

// GroupID returns the id of the open changeset, or "".
func (w *Writer) GroupID() string { return w.group }

func (w *Writer) WriteEndChangeset() error {
	if err := w.guard("WriteEndChangeset", false); err != nil {
		return err
	}
	return w.endChangeset(context.Background())
}

func (w *Writer) WriteEndChangesetAsync(ctx context.Context) error {
	if err := w.guard("WriteEndChangesetAsync", true); err != nil {
		return err
	}
	return w.endChangeset(ctx)
}

func (w *Writer) endChangeset(ctx context.Context) error {
	if err := w.check(ChangesetCompleted); err != nil {
		return err
	}
	if err := w.io(ctx, w.finishCurrent); err != nil {
		return err
	}
	w.ids.closeGroup(w.group)
	w.opts.Metrics.ChangesetCompleted()
	w.enter(ChangesetCompleted)
	w.group = ""
	return nil
}

// CreateOperationRequestMessage adds a request operation. contentID is
// required inside a changeset; dependsOn entries must name earlier top-level
// operations, earlier operations of the same changeset or closed changesets.
func (w *Writer) CreateOperationRequestMessage(method, rawURL, contentID string, opt URIOption, dependsOn []string) (*OperationMessage, error) {
	if err := w.guard("CreateOperationRequestMessage", false); err != nil {
		return nil, err
	}
	return w.createRequest(context.Background(), method, rawURL, contentID, opt, dependsOn)
}

func (w *Writer) CreateOperationRequestMessageAsync(ctx context.Context, method, rawURL, contentID string, opt URIOption, dependsOn []string) (*OperationMessage, error) {
	if err := w.guard("CreateOperationRequestMessageAsync", true); err != nil {
		return nil, err
	}
	return w.createRequest(ctx, method, rawURL, contentID, opt, dependsOn)
}

func (w *Writer) createRequest(ctx context.Context, method, rawURL, contentID string, opt URIOption, dependsOn []string) (*OperationMessage, error) {
	if w.responses {
		return nil, w.fail(odatajson.NewError(odatajson.CodeRequestOnResponseWriter))
	}
	if err := w.check(OperationCreated); err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)
	if w.group != "" {
		if method == "GET" {
			return nil, w.fail(odatajson.NewError(odatajson.CodeMethodInChangeset, "method", method))
		}
		if contentID == "" {
			return nil, w.fail(odatajson.NewError(odatajson.CodeContentIDRequired))
		}
	}
	if err := w.checkQuota(); err != nil {
		return nil, err
	}
	if err := w.ids.resolveAll(dependsOn, w.group); err != nil {
		return nil, w.fail(err)
	}
	if id, ok := referencedID(rawURL); ok {
		if err := w.ids.resolve(id, w.group); err != nil {
			return nil, w.fail(err)
		}
	}
	if w.baseErr != nil {
		return nil, w.fail(w.baseErr)
	}
	u, err := formatURL(w.base, rawURL, opt)
	if err != nil {
		return nil, w.fail(err)
	}
	op := &OperationMessage{w: w, contentID: contentID, group: w.group, dependsOn: dependsOn, method: method, url: u}
	return op, w.addOperation(ctx, op)
}

// CreateOperationResponseMessage adds a response operation. An empty
// contentID is replaced by a random one.
func (w *Writer) CreateOperationResponseMessage(contentID string) (*OperationMessage, error) {
	if err := w.guard("CreateOperationResponseMessage", false); err != nil {
		return nil, err
	}
	return w.createResponse(context.Background(), contentID)
}

func (w *Writer) CreateOperationResponseMessageAsync(ctx context.Context, contentID string) (*OperationMessage, error) {
	if err := w.guard("CreateOperationResponseMessageAsync", true); err != nil {
		return nil, err
	}
	return w.createResponse(ctx, contentID)
}

func (w *Writer) createResponse(ctx context.Context, contentID string) (*OperationMessage, error) {
	if !w.responses {
		return nil, w.fail(odatajson.NewError(odatajson.CodeResponseOnRequestWriter))
	}
	if err := w.check(OperationCreated); err != nil {
		return nil, err
	}
	if err := w.checkQuota(); err != nil {
		return nil, err
	}
	if contentID == "" {
		contentID = uuid.NewString()
	}
	op := &OperationMessage{w: w, contentID: contentID, group: w.group, status: 200}
	return op, w.addOperation(ctx, op)
}

func (w *Writer) checkQuota() error {
	if w.group != "" {
		if limit := w.opts.MaxOperationsPerChangeset; limit > 0 && w.groupOps+1 > limit {
			return w.fail(odatajson.NewError(odatajson.CodeQuotaChangesetOperations, "limit", limit))
		}
		return nil
	}
	if limit := w.opts.MaxPartsPerBatch; limit > 0 && w.parts+1 > limit {
		return w.fail(odatajson.NewError(odatajson.CodeQuotaBatchParts, "limit", limit))
	}
	return nil
}

func (w *Writer) addOperation(ctx context.Context, op *OperationMessage) error {
	if op.contentID != "" {
		if err := w.ids.addContentID(op.contentID, op.group); err != nil {
			return w.fail(err)
		}
	}
	if err := w.io(ctx, w.finishCurrent); err != nil {
		return err
	}
	if w.group != "" {
		w.groupOps++
	} else {
		w.parts++
	}
	w.current = op
	w.enter(OperationCreated)
	return nil
}

func (w *Writer) WriteEndBatch() error {
	if err := w.guard("WriteEndBatch", false); err != nil {
		return err
	}
	return w.endBatch(context.Background())
}

func (w *Writer) WriteEndBatchAsync(ctx context.Context) error {
	if err := w.guard("WriteEndBatchAsync", true); err != nil {
		return err
	}
	return w.endBatch(ctx)
}

func (w *Writer) endBatch(ctx context.Context) error {
	if err := w.check(BatchCompleted); err != nil {
		return err
	}
	err := w.io(ctx, func() error {
		if err := w.finishCurrent(); err != nil {
			return err
		}
		if err := w.jw.EndArray(); err != nil {
			return err
		}
		if err := w.jw.EndObject(); err != nil {
			return err
		}
		return w.jw.Flush()
	})
	if err != nil {
		return err
	}
	w.opts.Metrics.BatchCompleted(w.mode())
	w.enter(BatchCompleted)
	return nil
}

// Flush pushes buffered output to the sink. Operations whose body stream is
// still open are not yet part of the output.
func (w *Writer) Flush() error {
	if err := w.guard("Flush", false); err != nil {
		return err
	}
	return w.io(context.Background(), w.jw.FlushBuffer)
}

func (w *Writer) FlushAsync(ctx context.Context) error {
	if err := w.guard("FlushAsync", true); err != nil {
		return err
	}
	return w.fail(w.aw.FlushBuffer(ctx))
}
