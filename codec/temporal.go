package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date is an Edm.Date value (no time, no offset).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day) }

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid Edm.Date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// TimeOfDay is an Edm.TimeOfDay value: the elapsed time since midnight,
// in [0, 24h), with 100ns resolution.
type TimeOfDay time.Duration

const (
	ticks     = 100 * time.Nanosecond
	ticksFrac = 7 // decimal digits of a 100ns tick count within one second
)

// NewTimeOfDay builds a TimeOfDay from clock components.
func NewTimeOfDay(hour, minute, second int, nanos int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 || nanos < 0 || nanos >= int(time.Second) {
		return 0, fmt.Errorf("invalid Edm.TimeOfDay %02d:%02d:%02d.%09d", hour, minute, second, nanos)
	}
	d := time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second + time.Duration(nanos)
	return TimeOfDay(d.Truncate(ticks)), nil
}

// String renders HH:MM:SS, followed by exactly seven fractional digits when
// the sub-second part is nonzero.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	out := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	if frac := d / ticks; frac != 0 {
		out += fmt.Sprintf(".%07d", frac)
	}
	return out
}

var timeOfDayPattern = regexp.MustCompile(`^(\d{2}):(\d{2})(?::(\d{2})(?:\.(\d{1,12}))?)?$`)

// ParseTimeOfDay parses HH:MM[:SS[.fffffff]].
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid Edm.TimeOfDay %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	nanos := 0
	if m[4] != "" {
		nanos = parseFraction(m[4])
	}
	t, err := NewTimeOfDay(h, mi, sec, nanos)
	if err != nil {
		return 0, fmt.Errorf("invalid Edm.TimeOfDay %q", s)
	}
	return t, nil
}

// parseFraction converts fractional-second digits to nanoseconds, dropping
// digits beyond nanosecond precision.
func parseFraction(digits string) int {
	if len(digits) > 9 {
		digits = digits[:9]
	}
	digits += strings.Repeat("0", 9-len(digits))
	n, _ := strconv.Atoi(digits)
	return n
}

// FormatDateTimeOffset renders t as ISO 8601 with its own offset ("Z" for
// UTC) and at most seven fractional digits, trailing zeros trimmed.
func FormatDateTimeOffset(t time.Time) string {
	return t.Truncate(ticks).Format(time.RFC3339Nano)
}

// ParseDateTimeOffset accepts RFC 3339 timestamps (fraction optional).
func ParseDateTimeOffset(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, fmt.Errorf("invalid Edm.DateTimeOffset %q: %w", s, err)
	}
	return t, nil
}

// FormatDuration renders d as an ISO 8601 day-time period, e.g. P1DT2H3M4.5S.
// The zero duration is PT0S; negative durations carry a leading "-".
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	b := &strings.Builder{}
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		fmt.Fprintf(b, "%dD", days)
	}
	if d == 0 {
		return b.String()
	}
	b.WriteByte('T')
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	if h > 0 {
		fmt.Fprintf(b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(b, "%dM", m)
	}
	if d > 0 {
		s := d / time.Second
		frac := (d - s*time.Second) / ticks
		if frac == 0 {
			fmt.Fprintf(b, "%dS", s)
		} else {
			f := strings.TrimRight(fmt.Sprintf("%07d", frac), "0")
			fmt.Fprintf(b, "%d.%sS", s, f)
		}
	}
	return b.String()
}

var durationPattern = regexp.MustCompile(`^(-)?P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.(\d+))?S)?)?$`)

// ParseDuration parses the ISO 8601 day-time period produced by FormatDuration.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "-P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("invalid Edm.Duration %q", s)
	}
	var d time.Duration
	add := func(field string, unit time.Duration) {
		if field == "" {
			return
		}
		n, _ := strconv.ParseInt(field, 10, 64)
		d += time.Duration(n) * unit
	}
	add(m[2], 24*time.Hour)
	add(m[3], time.Hour)
	add(m[4], time.Minute)
	add(m[5], time.Second)
	if m[6] != "" {
		d += time.Duration(parseFraction(m[6]))
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
