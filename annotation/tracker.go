package annotation

import "golang.org/x/text/cases"

// Tracker remembers which terms have already been written for one resource,
// resource set or property. Terms compare case-insensitively.
type Tracker struct {
	written map[string]struct{}
}

func NewTracker() *Tracker { return &Tracker{written: map[string]struct{}{}} }

func (t *Tracker) IsAnnotationWritten(term string) bool {
	_, ok := t.written[foldTerm(term)]
	return ok
}

func (t *Tracker) MarkAnnotationWritten(term string) { t.written[foldTerm(term)] = struct{}{} }

// Len returns the number of distinct terms written.
func (t *Tracker) Len() int { return len(t.written) }

// foldTerm uses a fresh Caser per call; Casers carry state.
func foldTerm(term string) string { return cases.Fold().String(term) }
