package codec

import (
	"math"
	"testing"
	"time"
)

func TestDateTimeOffset_Roundtrip(t *testing.T) {
	in := "2025-01-01T00:00:00Z"
	got, err := ParseDateTimeOffset(in)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}
	if out := FormatDateTimeOffset(got); out != in {
		t.Fatalf("roundtrip mismatch: %s != %s", out, in)
	}
}

func TestDateTimeOffset_KeepsOffsetAndTruncatesToTicks(t *testing.T) {
	loc := time.FixedZone("", -8*3600)
	v := time.Date(2013, 1, 25, 9, 50, 21, 123456789, loc)
	if got := FormatDateTimeOffset(v); got != "2013-01-25T09:50:21.1234567-08:00" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestDateTimeOffset_Invalid(t *testing.T) {
	if _, err := ParseDateTimeOffset("2025-13-01"); err == nil {
		t.Fatalf("expected error for invalid timestamp")
	}
}

func TestDate_FormatParse(t *testing.T) {
	d, err := ParseDate("2012-04-03")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if d != (Date{Year: 2012, Month: time.April, Day: 3}) {
		t.Fatalf("unexpected date: %+v", d)
	}
	if d.String() != "2012-04-03" {
		t.Fatalf("unexpected format: %s", d)
	}
	if _, err := ParseDate("2012-4-3"); err == nil {
		t.Fatalf("expected error for non-padded date")
	}
}

func TestTimeOfDay_FractionOnlyWhenNonzero(t *testing.T) {
	whole, _ := NewTimeOfDay(12, 30, 5, 0)
	if whole.String() != "12:30:05" {
		t.Fatalf("unexpected: %s", whole)
	}
	frac, _ := NewTimeOfDay(12, 30, 5, 100_000_000)
	if frac.String() != "12:30:05.1000000" {
		t.Fatalf("unexpected: %s", frac)
	}
	back, err := ParseTimeOfDay("12:30:05.1000000")
	if err != nil || back != frac {
		t.Fatalf("parse mismatch: %v %v", back, err)
	}
	if _, err := NewTimeOfDay(24, 0, 0, 0); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestDuration_Format(t *testing.T) {
	cases := map[time.Duration]string{
		0: "PT0S",
		24*time.Hour + 2*time.Hour + 3*time.Minute + 4500*time.Millisecond: "P1DT2H3M4.5S",
		48 * time.Hour:   "P2D",
		-90 * time.Minute: "-PT1H30M",
		time.Microsecond:  "PT0.000001S",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %s, want %s", d, got, want)
		}
		back, err := ParseDuration(want)
		if err != nil {
			t.Errorf("ParseDuration(%s): %v", want, err)
			continue
		}
		if back != d {
			t.Errorf("ParseDuration(%s) = %v, want %v", want, back, d)
		}
	}
	for _, bad := range []string{"P", "PT", "1D", "P1H"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDecimalAndSpecialFloats(t *testing.T) {
	if _, err := ParseDecimal("42.2"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := ParseDecimal("4x"); err == nil {
		t.Fatalf("expected error")
	}
	if s, ok := FormatSpecialFloat(math.Inf(-1)); !ok || s != "-INF" {
		t.Fatalf("unexpected special: %q %v", s, ok)
	}
	if _, ok := FormatSpecialFloat(1.5); ok {
		t.Fatalf("finite float reported as special")
	}
	f, err := ParseFloat("NaN", 64)
	if err != nil || !math.IsNaN(f) {
		t.Fatalf("unexpected NaN parse: %v %v", f, err)
	}
}

func TestBinaryAndGUID(t *testing.T) {
	if FormatBinary([]byte("hi")) != "aGk=" {
		t.Fatalf("unexpected base64")
	}
	b, err := ParseBinary("aGk=")
	if err != nil || string(b) != "hi" {
		t.Fatalf("unexpected decode: %q %v", b, err)
	}
	id, err := ParseGUID("38cf68c2-4010-4ccc-8922-868217f03ddc")
	if err != nil || id.String() != "38cf68c2-4010-4ccc-8922-868217f03ddc" {
		t.Fatalf("unexpected guid: %v %v", id, err)
	}
	if _, err := ParseGUID("{38cf68c2-4010-4ccc-8922-868217f03ddc}"); err == nil {
		t.Fatalf("expected error for braced guid")
	}
}
