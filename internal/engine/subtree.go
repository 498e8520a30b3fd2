package engine

import (
	"errors"
	"io"
)

// PreloadedSource is a subtree source that first returns a preloaded token
// (typically the first token of a value already consumed by the caller) and
// then continues to stream the remaining tokens for the same subtree from the
// underlying source. It returns io.EOF once the subtree end is reached.
type PreloadedSource struct {
	inner  TokenSource
	first  Token
	served bool
	depth  int
	done   bool
}

// NewPreloadedSource constructs a subtree source that will return first
// before consuming further tokens from inner.
func NewPreloadedSource(inner TokenSource, first Token) *PreloadedSource {
	return &PreloadedSource{inner: inner, first: first}
}

func (p *PreloadedSource) NextToken() (Token, error) {
	if p.done {
		return Token{}, io.EOF
	}
	var tok Token
	if !p.served {
		tok = p.first
		p.served = true
	} else {
		t, err := p.inner.NextToken()
		if err != nil {
			return Token{}, eofAsUnexpected(err)
		}
		tok = t
	}
	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		p.depth++
	case KindEndObject, KindEndArray:
		p.depth--
	}
	// A scalar first token is a single-token subtree.
	if p.depth <= 0 && tok.Kind != KindKey {
		p.done = true
	}
	return tok, nil
}

func (p *PreloadedSource) Location() int64 { return p.inner.Location() }

// ErrAlreadyMarked is returned by Mark while a previous mark is active.
var ErrAlreadyMarked = errors.New("engine: replay mark already set")

// ReplaySource records tokens after Mark and serves them again after Rewind,
// before resuming the inner source.
type ReplaySource struct {
	inner     TokenSource
	recording bool
	log       []Token
	pending   []Token
}

// NewReplaySource wraps inner with mark/rewind support.
func NewReplaySource(inner TokenSource) *ReplaySource { return &ReplaySource{inner: inner} }

// Mark starts recording. Only one mark may be active.
func (r *ReplaySource) Mark() error {
	if r.recording {
		return ErrAlreadyMarked
	}
	r.recording = true
	r.log = r.log[:0]
	return nil
}

// Marked reports whether a mark is active.
func (r *ReplaySource) Marked() bool { return r.recording }

// Rewind stops recording and queues every token read since Mark for replay.
func (r *ReplaySource) Rewind() {
	if !r.recording {
		return
	}
	r.recording = false
	replay := make([]Token, 0, len(r.log)+len(r.pending))
	replay = append(replay, r.log...)
	r.pending = append(replay, r.pending...)
	r.log = r.log[:0]
}

func (r *ReplaySource) NextToken() (Token, error) {
	var tok Token
	if len(r.pending) > 0 {
		tok = r.pending[0]
		r.pending = r.pending[1:]
	} else {
		t, err := r.inner.NextToken()
		if err != nil {
			return Token{}, err
		}
		tok = t
	}
	if r.recording {
		r.log = append(r.log, tok)
	}
	return tok, nil
}

func (r *ReplaySource) Location() int64 {
	if len(r.pending) > 0 {
		return r.pending[0].Offset
	}
	return r.inner.Location()
}
