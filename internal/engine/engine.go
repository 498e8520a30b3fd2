// Package engine holds the token model shared by the JSON reader and its
// drivers: token kinds, the TokenSource contract, enforcement and replay
// wrappers.
package engine

import (
	"encoding/json"
	"io"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindBeginObject:
		return "begin_object"
	case KindEndObject:
		return "end_object"
	case KindBeginArray:
		return "begin_array"
	case KindEndArray:
		return "end_array"
	case KindKey:
		return "key"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// IsScalar reports whether k is a single-token value.
func (k Kind) IsScalar() bool {
	return k == KindString || k == KindNumber || k == KindBool || k == KindNull
}

// Token represents a streaming token with approximate input offset.
// Number keeps the literal text so exact-precision types survive.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// TokenSource is a minimal interface required by the engine.
// Implementations return io.EOF once the input is exhausted.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// DecodeTree reads one complete value from src as maps, slices, strings,
// json.Number, bools and nil. Containers are tracked on an explicit stack so
// deep input does not grow the goroutine stack.
func DecodeTree(src TokenSource) (any, error) {
	type open struct {
		obj map[string]any
		arr []any
		key string
	}
	var stack []open
	for {
		tok, err := src.NextToken()
		if err != nil {
			if len(stack) > 0 {
				return nil, eofAsUnexpected(err)
			}
			return nil, err
		}

		var v any
		switch tok.Kind {
		case KindBeginObject:
			stack = append(stack, open{obj: map[string]any{}})
			continue
		case KindBeginArray:
			stack = append(stack, open{arr: []any{}})
			continue
		case KindKey:
			if len(stack) == 0 || stack[len(stack)-1].obj == nil {
				return nil, io.ErrUnexpectedEOF
			}
			stack[len(stack)-1].key = tok.String
			continue
		case KindEndObject, KindEndArray:
			if len(stack) == 0 {
				return nil, io.ErrUnexpectedEOF
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.obj != nil {
				v = top.obj
			} else {
				v = top.arr
			}
		case KindString:
			v = tok.String
		case KindNumber:
			v = json.Number(tok.Number)
		case KindBool:
			v = tok.Bool
		}

		if len(stack) == 0 {
			return v, nil
		}
		top := &stack[len(stack)-1]
		if top.obj != nil {
			top.obj[top.key] = v
		} else {
			top.arr = append(top.arr, v)
		}
	}
}

// eofAsUnexpected reports input that ends inside a value.
func eofAsUnexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
