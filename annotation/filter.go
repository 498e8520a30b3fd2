package annotation

import (
	"strings"

	odatajson "github.com/reoring/odatajson"
)

// Filter decides whether an instance annotation with the given term is
// written.
type Filter func(term string) bool

// ExcludeAll is the default filter.
func ExcludeAll(string) bool { return false }

// IncludeAll writes every annotation.
func IncludeAll(string) bool { return true }

type pattern struct {
	namespace string // "" with wildcard set means "*"
	term      string // exact term; empty for wildcards
	wildcard  bool
	exclude   bool
}

// specificity orders matches: exact terms beat namespace wildcards, longer
// namespaces beat shorter ones, and "*" matches weakest.
func (p pattern) specificity() int {
	if !p.wildcard {
		return 1 << 30
	}
	return len(p.namespace)
}

func (p pattern) matches(term string) bool {
	switch {
	case !p.wildcard:
		return term == p.term
	case p.namespace == "":
		return true
	default:
		return strings.HasPrefix(term, p.namespace+".")
	}
}

// ParseFilter builds a Filter from an include-annotations preference value
// such as "*,-Display.*" or "NS.Title,NS.Description". The most specific
// matching pattern decides; among equally specific patterns exclusion wins.
// An empty value excludes everything.
func ParseFilter(value string) (Filter, error) {
	var patterns []pattern
	for _, raw := range strings.Split(value, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		p, ok := parsePattern(s)
		if !ok {
			return nil, odatajson.NewError(odatajson.CodeInvalidFilter, "pattern", s)
		}
		patterns = append(patterns, p)
	}
	if len(patterns) == 0 {
		return ExcludeAll, nil
	}
	return func(term string) bool {
		best, include := -1, false
		for _, p := range patterns {
			if !p.matches(term) {
				continue
			}
			sp := p.specificity()
			switch {
			case sp > best:
				best, include = sp, !p.exclude
			case sp == best && p.exclude:
				include = false
			}
		}
		return include
	}, nil
}

func parsePattern(s string) (pattern, bool) {
	var p pattern
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		p.exclude = true
		s = rest
	}
	if s == "*" {
		p.wildcard = true
		return p, true
	}
	if ns, ok := strings.CutSuffix(s, ".*"); ok {
		if !validQualifiedName(ns, true) {
			return p, false
		}
		p.wildcard, p.namespace = true, ns
		return p, true
	}
	if !validQualifiedName(s, false) {
		return p, false
	}
	p.term = s
	return p, true
}

// validQualifiedName accepts dotted identifiers; a term needs at least one
// dot, a namespace does not.
func validQualifiedName(s string, namespace bool) bool {
	parts := strings.Split(s, ".")
	if !namespace && len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for i, r := range part {
			letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 0x7f
			if !letter && (i == 0 || r < '0' || r > '9') {
				return false
			}
		}
	}
	return true
}
