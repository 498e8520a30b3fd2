package annotation

import (
	"testing"

	odatajson "github.com/reoring/odatajson"
)

func TestParseFilter(t *testing.T) {
	cases := []struct {
		value string
		in    []string
		out   []string
	}{
		{value: "", out: []string{"NS.A"}},
		{value: "*", in: []string{"NS.A", "Core.Description"}},
		{value: "*,-Display.*", in: []string{"NS.A"}, out: []string{"Display.Label", "Display.Hidden.X"}},
		{value: "Display.*,-Display.Label", in: []string{"Display.Hidden"}, out: []string{"Display.Label", "NS.A"}},
		{value: "-NS.*,NS.Keep", in: []string{"NS.Keep"}, out: []string{"NS.Drop"}},
		{value: "NS.A, NS.B", in: []string{"NS.A", "NS.B"}, out: []string{"NS.C"}},
		{value: "NS.*,-NS.*", out: []string{"NS.A"}},
	}
	for _, tc := range cases {
		f, err := ParseFilter(tc.value)
		if err != nil {
			t.Fatalf("%q: %v", tc.value, err)
		}
		for _, term := range tc.in {
			if !f(term) {
				t.Errorf("%q should include %s", tc.value, term)
			}
		}
		for _, term := range tc.out {
			if f(term) {
				t.Errorf("%q should exclude %s", tc.value, term)
			}
		}
	}
}

func TestParseFilter_Invalid(t *testing.T) {
	for _, v := range []string{"*.x", "NS", "NS.", "-", "1NS.A", "NS.*.*"} {
		_, err := ParseFilter(v)
		if !odatajson.HasCode(err, odatajson.CodeInvalidFilter) {
			t.Errorf("%q: expected invalid_filter, got %v", v, err)
		}
	}
}
