package i18n

import (
	"fmt"
	"sort"
	"strings"
)

// Translator retrieves localized messages for error codes.
// params carries the values substituted into {name} placeholders (for
// example "term" or "contentID").
type Translator interface {
	Message(code string, params map[string]any) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var english = map[string]string{
	"parse_error":                   "invalid JSON: {detail}",
	"unexpected_node":               "unexpected node type: expected {expected}, found {actual}",
	"unexpected_property":           "unexpected property {name} found after the value array",
	"writer_protocol":               "invalid JSON writer call: {detail}",
	"unbalanced_scopes":             "cannot flush with {open} unclosed scope(s)",
	"invalid_primitive":             "cannot convert {value} to {type}",
	"unresolved_type":               "type {type} is not defined in the model",
	"duplicate_annotation":          "the annotation {term} was specified more than once",
	"annotation_type_mismatch":      "the value of annotation {term} is of type {actual}, which is not compatible with the declared type {expected}",
	"null_for_non_nullable":         "a null value was found for the annotation {term}, whose declared type is not nullable",
	"invalid_annotation_name":       "{term} is not a valid instance annotation name",
	"invalid_transition":            "cannot transition from state {from} to state {to}",
	"changeset_not_ended":           "cannot end the batch while the changeset {group} is still open",
	"stream_not_disposed":           "cannot change state while the content stream of an operation is still open",
	"nested_changeset":              "cannot start a changeset inside the open changeset {group}",
	"no_changeset":                  "cannot end a changeset that was never started",
	"sync_call_on_async_writer":     "synchronous call {method} on a writer configured for asynchronous use",
	"async_call_on_sync_writer":     "asynchronous call {method} on a writer configured for synchronous use",
	"request_on_response_writer":    "cannot create a request operation on a writer configured for responses",
	"response_on_request_writer":    "cannot create a response operation on a writer configured for requests",
	"method_in_changeset":           "the HTTP method {method} is not allowed inside a changeset",
	"content_id_required":           "a Content-ID is required for operations inside a changeset",
	"duplicate_content_id":          "the Content-ID {contentID} was already used in this batch",
	"depends_on_unknown":            "dependsOn references {contentID}, which was not defined earlier in the batch",
	"depends_on_cross_group":        "dependsOn references {contentID}, which belongs to the different atomicity group {group}",
	"quota_batch_parts":             "the batch exceeds the maximum of {limit} parts",
	"quota_changeset_operations":    "the changeset exceeds the maximum of {limit} operations",
	"writer_faulted":                "the writer is in a faulted state and cannot be used",
	"invalid_url":                   "invalid operation URL {url}: {detail}",
	"invalid_batch_payload":         "invalid batch payload: {detail}",
	"invalid_filter":                "invalid annotation filter {pattern}",
	"missing_type_name":             "a type name is required for {what}",
	"invalid_model":                 "invalid model: {detail}",
	"stream_already_requested":      "the content stream of this operation was already requested",
	"status_after_stream_requested": "cannot modify an operation after its content stream was requested",
	"buffering_active":              "the reader is already buffering",
}

var japanese = map[string]string{
	"parse_error":          "JSONの解析エラー: {detail}",
	"unexpected_node":      "予期しないノードです: {expected} を期待しましたが {actual} でした",
	"duplicate_annotation": "アノテーション {term} が重複しています",
	"duplicate_content_id": "Content-ID {contentID} が重複しています",
	"invalid_transition":   "状態 {from} から {to} へは遷移できません",
	"quota_batch_parts":    "バッチのパート数が上限 {limit} を超えました",
	"writer_faulted":       "ライターは障害状態のため使用できません",
}

func (t dictTranslator) Message(code string, params map[string]any) string {
	var tmpl string
	var ok bool
	if t.lang == "ja" {
		tmpl, ok = japanese[code]
	}
	if !ok {
		tmpl, ok = english[code]
	}
	if !ok {
		return fallback(code, params)
	}
	return expand(tmpl, params)
}

func expand(tmpl string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// fallback renders unknown codes as "code (k=v, ...)" with sorted keys.
func fallback(code string, params map[string]any) string {
	if len(params) == 0 {
		return code
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := &strings.Builder{}
	b.WriteString(code)
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s=%v", k, params[k])
	}
	b.WriteString(")")
	return b.String()
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, params map[string]any) string { return currentTranslator.Message(code, params) }
