package odatajson_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	odatajson "github.com/reoring/odatajson"
)

func TestNewError_RendersMessageAndCategory(t *testing.T) {
	err := odatajson.NewError(odatajson.CodeDuplicateContentID, "contentID", "1")
	if err.Category != odatajson.CategoryValidation {
		t.Fatalf("category = %v, want validation", err.Category)
	}
	if got := err.Error(); got != "odatajson: the Content-ID 1 was already used in this batch" {
		t.Fatalf("unexpected message: %q", got)
	}
	if err.Param("contentID") != "1" {
		t.Fatalf("param contentID = %v", err.Param("contentID"))
	}
	if err.Param("missing") != nil {
		t.Fatal("expected nil for absent param")
	}

	q := odatajson.NewError(odatajson.CodeQuotaBatchParts, "limit", 2)
	if q.Category != odatajson.CategoryQuota {
		t.Fatalf("category = %v, want quota", q.Category)
	}
	if odatajson.CategoryOf(odatajson.CodeInvalidTransition) != odatajson.CategoryProtocol {
		t.Fatal("unlisted codes must be protocol errors")
	}
}

func TestErrorHelpers_AsErrorAndHasCode(t *testing.T) {
	base := odatajson.NewError(odatajson.CodeUnbalancedScopes)
	wrapped := fmt.Errorf("writing payload: %w", base)

	e, ok := odatajson.AsError(wrapped)
	if !ok || e != base {
		t.Fatalf("AsError did not unwrap: %v", wrapped)
	}
	if !odatajson.HasCode(wrapped, odatajson.CodeUnbalancedScopes) {
		t.Fatal("HasCode should see through wrapping")
	}
	if odatajson.HasCode(io.EOF, odatajson.CodeUnbalancedScopes) {
		t.Fatal("plain errors carry no code")
	}
	if _, ok := odatajson.AsError(nil); ok {
		t.Fatal("nil is not an *Error")
	}
}

func TestWrapIO(t *testing.T) {
	if odatajson.WrapIO(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	err := odatajson.WrapIO(io.ErrShortWrite)
	e, ok := odatajson.AsError(err)
	if !ok || e.Category != odatajson.CategoryIO {
		t.Fatalf("expected io category, got %v", err)
	}
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatal("cause must be reachable through errors.Is")
	}
	if got := err.Error(); got != "odatajson: i/o failure: short write" {
		t.Fatalf("unexpected message: %q", got)
	}

	typed := odatajson.NewError(odatajson.CodeWriterFaulted)
	if odatajson.WrapIO(typed) != error(typed) {
		t.Fatal("*Error must pass through unchanged")
	}
}

func TestVersion_ControlNames(t *testing.T) {
	tests := []struct {
		v        odatajson.Version
		control  string
		property string
	}{
		{odatajson.V4, "@odata.count", "Name@odata.type"},
		{odatajson.V401, "@count", "Name@type"},
	}
	for _, tt := range tests {
		if got := tt.v.ControlName(odatajson.ControlCount); got != tt.control {
			t.Errorf("%s ControlName = %q, want %q", tt.v, got, tt.control)
		}
		if got := tt.v.PropertyControlName("Name", odatajson.ControlType); got != tt.property {
			t.Errorf("%s PropertyControlName = %q, want %q", tt.v, got, tt.property)
		}
	}

	if name, ok := odatajson.V4.ParseControlName("@odata.nextLink"); !ok || name != "nextLink" {
		t.Fatalf("V4 parse = %q %v", name, ok)
	}
	if _, ok := odatajson.V4.ParseControlName("@count"); ok {
		t.Fatal("V4 must not accept the bare form")
	}
	if name, ok := odatajson.V401.ParseControlName("@count"); !ok || name != "count" {
		t.Fatalf("V401 parse = %q %v", name, ok)
	}
	if _, ok := odatajson.V401.ParseControlName("@NS.Term"); ok {
		t.Fatal("custom annotations are not control information")
	}
}

func TestWireTypeName(t *testing.T) {
	tests := []struct{ name, wire string }{
		{"Edm.String", "#String"},
		{"NS.Customer", "#NS.Customer"},
		{"Collection(Edm.Int32)", "#Collection(Int32)"},
		{"Collection(NS.Address)", "#Collection(NS.Address)"},
	}
	for _, tt := range tests {
		if got := odatajson.WireTypeName(tt.name); got != tt.wire {
			t.Errorf("WireTypeName(%q) = %q, want %q", tt.name, got, tt.wire)
		}
		if got := odatajson.ParseWireTypeName(tt.wire); got != tt.name {
			t.Errorf("ParseWireTypeName(%q) = %q, want %q", tt.wire, got, tt.name)
		}
	}
}
