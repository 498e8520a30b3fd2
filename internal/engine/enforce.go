package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Limits configures Enforce.
type Limits struct {
	// RejectDuplicates fails on the second occurrence of a key in one object.
	RejectDuplicates bool
	// MaxDepth bounds container nesting; 0 disables the check.
	MaxDepth int
}

// Violation rules.
const (
	RuleDuplicateKey = "duplicate_key"
	RuleMaxDepth     = "max_depth"
)

// Violation is returned by an enforcing source when input breaks a limit.
// Pointer is an RFC 6901 JSON pointer to the offending member.
type Violation struct {
	Rule    string
	Pointer string
	Offset  int64
	Detail  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s at %s (offset %d)", v.Detail, v.Pointer, v.Offset)
}

// frame is one open container. The pointer is only materialized when a
// violation is reported.
type frame struct {
	object bool
	keys   map[string]struct{}
	key    string // last key read in an object
	index  int    // next element index in an array
	inKey  bool   // object: a key was read and its value is pending
}

// Enforce wraps inner with duplicate key and depth checks.
func Enforce(inner TokenSource, l Limits) TokenSource {
	return &enforcer{inner: inner, limits: l}
}

type enforcer struct {
	inner  TokenSource
	limits Limits
	frames []frame
}

func (e *enforcer) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}
	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		e.frames = append(e.frames, frame{object: tok.Kind == KindBeginObject})
		if l := e.limits.MaxDepth; l > 0 && len(e.frames) > l {
			return Token{}, e.violation(RuleMaxDepth, tok, "nesting deeper than "+strconv.Itoa(l))
		}
	case KindEndObject, KindEndArray:
		if n := len(e.frames); n > 0 {
			e.frames = e.frames[:n-1]
		}
		e.valueDone()
	case KindKey:
		if n := len(e.frames); n > 0 && e.frames[n-1].object {
			top := &e.frames[n-1]
			if e.limits.RejectDuplicates {
				if top.keys == nil {
					top.keys = make(map[string]struct{})
				}
				if _, dup := top.keys[tok.String]; dup {
					top.key, top.inKey = tok.String, true
					return Token{}, e.violation(RuleDuplicateKey, tok, "duplicate key "+strconv.Quote(tok.String))
				}
				top.keys[tok.String] = struct{}{}
			}
			top.key, top.inKey = tok.String, true
		}
	default:
		e.valueDone()
	}
	return tok, nil
}

// valueDone closes the member or element that just finished.
func (e *enforcer) valueDone() {
	n := len(e.frames)
	if n == 0 {
		return
	}
	top := &e.frames[n-1]
	if top.object {
		top.inKey = false
	} else {
		top.index++
	}
}

func (e *enforcer) violation(rule string, tok Token, detail string) *Violation {
	return &Violation{Rule: rule, Pointer: e.pointer(), Offset: tok.Offset, Detail: detail}
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// pointer renders the path of the member currently being read. A container
// that was just opened is addressed by the member that holds it.
func (e *enforcer) pointer() string {
	var b strings.Builder
	for i := range e.frames {
		f := &e.frames[i]
		switch {
		case f.object && f.inKey:
			b.WriteByte('/')
			b.WriteString(pointerEscaper.Replace(f.key))
		case !f.object && i < len(e.frames)-1:
			b.WriteByte('/')
			b.WriteString(strconv.Itoa(f.index))
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

func (e *enforcer) Location() int64 { return e.inner.Location() }
