package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// Decimal is an Edm.Decimal value kept in its exact lexical form so that no
// precision is lost on the way through the codec.
type Decimal string

var decimalPattern = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?$`)

// ParseDecimal validates s as a decimal literal.
func ParseDecimal(s string) (Decimal, error) {
	if !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("invalid Edm.Decimal %q", s)
	}
	return Decimal(s), nil
}

// MustDecimal is ParseDecimal for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) String() string { return string(d) }

// Special floating-point literals used on the wire.
const (
	NaN         = "NaN"
	Infinity    = "INF"
	NegInfinity = "-INF"
)

// FormatSpecialFloat returns the quoted-literal spelling of NaN/±Inf and
// false for finite values.
func FormatSpecialFloat(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return NaN, true
	case math.IsInf(f, 1):
		return Infinity, true
	case math.IsInf(f, -1):
		return NegInfinity, true
	}
	return "", false
}

// ParseFloat accepts JSON numbers, numeric strings, and the special literals.
func ParseFloat(s string, bitSize int) (float64, error) {
	switch s {
	case NaN:
		return math.NaN(), nil
	case Infinity:
		return math.Inf(1), nil
	case NegInfinity:
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, bitSize)
}

// FormatBinary encodes b as standard base64.
func FormatBinary(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// ParseBinary decodes standard base64, accepting the URL-safe alphabet too.
func ParseBinary(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid Edm.Binary: %w", err)
	}
	return b, nil
}

// ParseGUID parses the canonical 8-4-4-4-12 form.
func ParseGUID(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, fmt.Errorf("invalid Edm.Guid %q", s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid Edm.Guid %q: %w", s, err)
	}
	return id, nil
}
