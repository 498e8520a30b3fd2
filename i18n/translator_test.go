package i18n

import "testing"

func TestTranslator_DefaultAndJapanese(t *testing.T) {
	// default is en
	if msg := T("duplicate_annotation", map[string]any{"term": "NS.Term"}); msg != "the annotation NS.Term was specified more than once" {
		t.Fatalf("unexpected english message: %q", msg)
	}

	SetLanguage("ja")
	if msg := T("duplicate_annotation", map[string]any{"term": "NS.Term"}); msg == "the annotation NS.Term was specified more than once" {
		t.Fatalf("expected japanese message, got %q", msg)
	}
	// codes without a japanese entry fall back to english
	if msg := T("quota_changeset_operations", map[string]any{"limit": 3}); msg != "the changeset exceeds the maximum of 3 operations" {
		t.Fatalf("expected english fallback, got %q", msg)
	}

	// reset to en
	SetLanguage("en")
}

func TestTranslator_UnknownCodeListsParams(t *testing.T) {
	msg := T("no_such_code", map[string]any{"b": 2, "a": "x"})
	if msg != "no_such_code (a=x, b=2)" {
		t.Fatalf("unexpected fallback message: %q", msg)
	}
	if msg := T("no_such_code", nil); msg != "no_such_code" {
		t.Fatalf("unexpected bare fallback: %q", msg)
	}
}

type upperTranslator struct{}

func (upperTranslator) Message(code string, _ map[string]any) string { return "X:" + code }

func TestSetTranslator_NilRestoresDefault(t *testing.T) {
	SetTranslator(upperTranslator{})
	if msg := T("parse_error", nil); msg != "X:parse_error" {
		t.Fatalf("custom translator not used: %q", msg)
	}
	SetTranslator(nil)
	if msg := T("writer_faulted", nil); msg != "the writer is in a faulted state and cannot be used" {
		t.Fatalf("default translator not restored: %q", msg)
	}
}
