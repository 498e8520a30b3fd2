package odatajson

import (
	"errors"
	"fmt"

	"github.com/reoring/odatajson/i18n"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	// Reader/writer protocol
	CodeParse              = "parse_error"
	CodeUnexpectedNode     = "unexpected_node"
	CodeUnexpectedProperty = "unexpected_property"
	CodeWriterProtocol     = "writer_protocol"
	CodeUnbalancedScopes   = "unbalanced_scopes"
	CodeBufferingActive    = "buffering_active"
	// Validation
	CodeInvalidPrimitive       = "invalid_primitive"
	CodeUnresolvedType         = "unresolved_type"
	CodeDuplicateAnnotation    = "duplicate_annotation"
	CodeAnnotationTypeMismatch = "annotation_type_mismatch"
	CodeNullForNonNullable     = "null_for_non_nullable"
	CodeInvalidAnnotationName  = "invalid_annotation_name"
	CodeInvalidFilter          = "invalid_filter"
	CodeMissingTypeName        = "missing_type_name"
	CodeInvalidModel           = "invalid_model"
	// Batch state machine
	CodeInvalidTransition          = "invalid_transition"
	CodeChangesetNotEnded          = "changeset_not_ended"
	CodeStreamNotDisposed          = "stream_not_disposed"
	CodeNestedChangeset            = "nested_changeset"
	CodeNoChangeset                = "no_changeset"
	CodeSyncCallOnAsyncWriter      = "sync_call_on_async_writer"
	CodeAsyncCallOnSyncWriter      = "async_call_on_sync_writer"
	CodeRequestOnResponseWriter    = "request_on_response_writer"
	CodeResponseOnRequestWriter    = "response_on_request_writer"
	CodeMethodInChangeset          = "method_in_changeset"
	CodeContentIDRequired          = "content_id_required"
	CodeDuplicateContentID         = "duplicate_content_id"
	CodeDependsOnUnknown           = "depends_on_unknown"
	CodeDependsOnCrossGroup        = "depends_on_cross_group"
	CodeWriterFaulted              = "writer_faulted"
	CodeInvalidURL                 = "invalid_url"
	CodeInvalidBatchPayload        = "invalid_batch_payload"
	CodeStreamAlreadyRequested     = "stream_already_requested"
	CodeModifiedAfterStreamRequest = "status_after_stream_requested"
	// Quotas
	CodeQuotaBatchParts          = "quota_batch_parts"
	CodeQuotaChangesetOperations = "quota_changeset_operations"
)

// Category groups error codes by how callers are expected to react.
type Category int

const (
	// CategoryProtocol marks out-of-order calls and malformed input.
	CategoryProtocol Category = iota
	// CategoryValidation marks type, nullability and uniqueness violations.
	CategoryValidation
	// CategoryQuota marks configured limits being exceeded.
	CategoryQuota
	// CategoryIO marks failures of the underlying sink or source.
	CategoryIO
)

func (c Category) String() string {
	switch c {
	case CategoryProtocol:
		return "protocol"
	case CategoryValidation:
		return "validation"
	case CategoryQuota:
		return "quota"
	case CategoryIO:
		return "io"
	default:
		return "unknown"
	}
}

var categories = map[string]Category{
	CodeInvalidPrimitive:         CategoryValidation,
	CodeUnresolvedType:           CategoryValidation,
	CodeDuplicateAnnotation:      CategoryValidation,
	CodeAnnotationTypeMismatch:   CategoryValidation,
	CodeNullForNonNullable:       CategoryValidation,
	CodeInvalidAnnotationName:    CategoryValidation,
	CodeInvalidFilter:            CategoryValidation,
	CodeMissingTypeName:          CategoryValidation,
	CodeInvalidModel:             CategoryValidation,
	CodeDuplicateContentID:       CategoryValidation,
	CodeDependsOnUnknown:         CategoryValidation,
	CodeDependsOnCrossGroup:      CategoryValidation,
	CodeContentIDRequired:        CategoryValidation,
	CodeMethodInChangeset:        CategoryValidation,
	CodeInvalidURL:               CategoryValidation,
	CodeQuotaBatchParts:          CategoryQuota,
	CodeQuotaChangesetOperations: CategoryQuota,
}

// CategoryOf reports the category of an error code. Unlisted codes are
// protocol errors.
func CategoryOf(code string) Category {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryProtocol
}

// Error is the single error type surfaced by this module. Code is stable;
// Message is rendered from the i18n catalog using Params.
type Error struct {
	Code     string
	Category Category
	Message  string
	// Params carries the offending names/types/limits (e.g., {"term":"NS.T"})
	// for diagnostics and i18n.
	Params map[string]any
	Cause  error // Optional: underlying error.
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Category == CategoryIO {
		return fmt.Sprintf("odatajson: %s: %v", e.Message, e.Cause)
	}
	return "odatajson: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Param returns a single parameter value, or nil when absent.
func (e *Error) Param(name string) any {
	if e == nil || e.Params == nil {
		return nil
	}
	return e.Params[name]
}

// NewError builds an Error for code with alternating key/value params:
//
//	NewError(CodeDuplicateContentID, "contentID", "1")
func NewError(code string, kv ...any) *Error {
	var params map[string]any
	if len(kv) > 0 {
		params = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			k, _ := kv[i].(string)
			params[k] = kv[i+1]
		}
	}
	return &Error{Code: code, Category: CategoryOf(code), Message: i18n.T(code, params), Params: params}
}

// WithCause attaches an underlying error and returns e.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WrapIO converts a sink/source failure into a CategoryIO error. nil stays nil
// and errors that already are *Error pass through unchanged.
func WrapIO(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: "io_error", Category: CategoryIO, Message: "i/o failure", Cause: err}
}

// AsError extracts an *Error using errors.As internally.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}
