// Package gojson adapts a goccy/go-json Decoder into an engine.TokenSource.
//
// Decoder.Token skips ',' and ':' without checking where they appear, so the
// source keeps the bytes between tokens and verifies the separators against
// the container state itself.
package gojson

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"

	eng "github.com/reoring/odatajson/internal/engine"
)

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	expectingKey bool
	count        int
}

// tee keeps the bytes the decoder consumed from the end of the last token
// onwards; token boundaries are found by scanning them.
type tee struct {
	r    io.Reader
	buf  []byte
	base int64
}

func (t *tee) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.buf = append(t.buf, p[:n]...)
	return n, err
}

// from returns the buffered bytes at and after pos.
func (t *tee) from(pos int64) []byte {
	lo := pos - t.base
	if lo < 0 || lo > int64(len(t.buf)) {
		return nil
	}
	return t.buf[lo:]
}

func (t *tee) discard(before int64) {
	drop := before - t.base
	if drop < 4096 || drop > int64(len(t.buf)) {
		return
	}
	t.buf = append(t.buf[:0], t.buf[drop:]...)
	t.base = before
}

type source struct {
	dec     *j.Decoder
	in      *tee
	stack   []frame
	lastEnd int64
	rootEnd bool
}

// NewReader wraps an io.Reader into an engine.TokenSource.
func NewReader(r io.Reader) eng.TokenSource {
	in := &tee{r: r}
	dec := j.NewDecoder(in)
	dec.UseNumber()
	return &source{dec: dec, in: in}
}

// NewBytes wraps a byte slice into an engine.TokenSource.
func NewBytes(b []byte) eng.TokenSource { return NewReader(bytes.NewReader(b)) }

// SyntaxError reports a misplaced or missing separator.
type SyntaxError struct {
	Offset int64
	Msg    string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset) }

func (s *source) NextToken() (eng.Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return eng.Token{}, s.checkTail()
		}
		return eng.Token{}, err
	}
	rest := s.in.from(s.lastEnd)
	seps, start := separators(rest)
	off := s.lastEnd + int64(start)
	end := off + int64(rawLen(rest[start:]))
	s.lastEnd = end
	defer s.in.discard(end)

	t, err := s.classify(tok, off)
	if err != nil {
		return eng.Token{}, err
	}
	if err := s.checkSeparators(t, seps, off); err != nil {
		return eng.Token{}, err
	}
	s.apply(t)
	return t, nil
}

// rawLen returns the length of the token literal at the start of b. The
// decoder's InputOffset cannot be used for this: it undercounts strings that
// contain escapes.
func rawLen(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	switch b[0] {
	case '{', '}', '[', ']':
		return 1
	case '"':
		for i := 1; i < len(b); i++ {
			switch b[i] {
			case '\\':
				i++
			case '"':
				return i + 1
			}
		}
		return len(b)
	}
	for i, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n', ',', ':', '{', '}', '[', ']', '"':
			return i
		}
	}
	return len(b)
}

// separators returns the ',' and ':' characters preceding the first
// significant byte of gap, and that byte's index.
func separators(gap []byte) (string, int) {
	var seps []byte
	for i, c := range gap {
		switch c {
		case ' ', '\t', '\r', '\n':
		case ',', ':':
			seps = append(seps, c)
		default:
			return string(seps), i
		}
	}
	return string(seps), len(gap)
}

func (s *source) classify(tok any, off int64) (eng.Token, error) {
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			return eng.Token{Kind: eng.KindBeginObject, Offset: off}, nil
		case '[':
			return eng.Token{Kind: eng.KindBeginArray, Offset: off}, nil
		case '}':
			return eng.Token{Kind: eng.KindEndObject, Offset: off}, nil
		case ']':
			return eng.Token{Kind: eng.KindEndArray, Offset: off}, nil
		}
	case string:
		if n := len(s.stack); n > 0 && s.stack[n-1].kind == kindObject && s.stack[n-1].expectingKey {
			return eng.Token{Kind: eng.KindKey, String: v, Offset: off}, nil
		}
		return eng.Token{Kind: eng.KindString, String: v, Offset: off}, nil
	case bool:
		return eng.Token{Kind: eng.KindBool, Bool: v, Offset: off}, nil
	case j.Number:
		// the decoder's number text aliases its read buffer
		return eng.Token{Kind: eng.KindNumber, Number: strings.Clone(string(v)), Offset: off}, nil
	case float64:
		return eng.Token{Kind: eng.KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Offset: off}, nil
	case nil:
		return eng.Token{Kind: eng.KindNull, Offset: off}, nil
	}
	return eng.Token{}, &SyntaxError{Offset: off, Msg: fmt.Sprintf("unsupported token %v", tok)}
}

func (s *source) checkSeparators(t eng.Token, seps string, off int64) error {
	want := ""
	n := len(s.stack)
	switch {
	case n == 0:
		if s.rootEnd {
			return &SyntaxError{Offset: off, Msg: "unexpected content after the top-level value"}
		}
		if t.Kind == eng.KindEndObject || t.Kind == eng.KindEndArray {
			return &SyntaxError{Offset: off, Msg: "unexpected closing delimiter"}
		}
	case s.stack[n-1].kind == kindObject:
		top := s.stack[n-1]
		switch {
		case top.expectingKey && t.Kind == eng.KindEndObject:
		case top.expectingKey && t.Kind != eng.KindKey:
			return &SyntaxError{Offset: off, Msg: "object key must be a string"}
		case top.expectingKey && top.count > 0:
			want = ","
		case !top.expectingKey:
			if t.Kind == eng.KindEndObject || t.Kind == eng.KindEndArray {
				return &SyntaxError{Offset: off, Msg: "missing value after object key"}
			}
			want = ":"
		}
	default:
		top := s.stack[n-1]
		if t.Kind == eng.KindEndObject {
			return &SyntaxError{Offset: off, Msg: "mismatched closing delimiter"}
		}
		if t.Kind != eng.KindEndArray && top.count > 0 {
			want = ","
		}
	}
	if seps != want {
		if want == "" {
			return &SyntaxError{Offset: off, Msg: fmt.Sprintf("unexpected %q", seps)}
		}
		return &SyntaxError{Offset: off, Msg: fmt.Sprintf("expected %q", want)}
	}
	return nil
}

func (s *source) apply(t eng.Token) {
	switch t.Kind {
	case eng.KindBeginObject:
		s.valueStarted()
		s.stack = append(s.stack, frame{kind: kindObject, expectingKey: true})
	case eng.KindBeginArray:
		s.valueStarted()
		s.stack = append(s.stack, frame{kind: kindArray})
	case eng.KindEndObject, eng.KindEndArray:
		s.stack = s.stack[:len(s.stack)-1]
		s.valueDone()
	case eng.KindKey:
		top := &s.stack[len(s.stack)-1]
		top.expectingKey = false
		top.count++
	default:
		s.valueStarted()
		s.valueDone()
	}
}

// valueStarted counts an array element.
func (s *source) valueStarted() {
	if n := len(s.stack); n > 0 && s.stack[n-1].kind == kindArray {
		s.stack[n-1].count++
	}
}

// valueDone flips the enclosing object back to expecting a key.
func (s *source) valueDone() {
	n := len(s.stack)
	if n == 0 {
		s.rootEnd = true
		return
	}
	top := &s.stack[n-1]
	if top.kind == kindObject && !top.expectingKey {
		top.expectingKey = true
	}
}

// checkTail rejects separators left after the last token.
func (s *source) checkTail() error {
	rest := s.in.buf
	if lo := s.lastEnd - s.in.base; lo >= 0 && lo <= int64(len(rest)) {
		rest = rest[lo:]
	}
	if seps, i := separators(rest); seps != "" || i < len(rest) {
		return &SyntaxError{Offset: s.lastEnd, Msg: "unexpected trailing content"}
	}
	return io.EOF
}

func (s *source) Location() int64 { return s.lastEnd }
