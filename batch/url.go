package batch

import (
	"net/url"
	"strings"

	odatajson "github.com/reoring/odatajson"
)

// URIOption selects how operation URLs appear in request payloads.
type URIOption int

const (
	// URIAbsolute writes absolute URLs; relative input is resolved against
	// Options.BaseURL.
	URIAbsolute URIOption = iota
	// URIRelativeToBase writes URLs relative to Options.BaseURL.
	URIRelativeToBase
	// URIResourcePath writes the absolute path and query only.
	URIResourcePath
)

func (o URIOption) String() string {
	switch o {
	case URIAbsolute:
		return "absolute"
	case URIRelativeToBase:
		return "relative"
	case URIResourcePath:
		return "path"
	}
	return "unknown"
}

func invalidURL(raw, detail string) error {
	return odatajson.NewError(odatajson.CodeInvalidURL, "url", raw, "detail", detail)
}

func parseBase(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := url.Parse(raw)
	if err != nil {
		return nil, invalidURL(raw, err.Error())
	}
	if !b.IsAbs() {
		return nil, invalidURL(raw, "base URL must be absolute")
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b, nil
}

// formatURL renders raw per opt. Content-ID references ("$1/Orders") are
// written unchanged.
func formatURL(base *url.URL, raw string, opt URIOption) (string, error) {
	if _, ok := referencedID(raw); ok {
		return raw, nil
	}
	if raw == "" {
		return "", invalidURL(raw, "empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", invalidURL(raw, err.Error())
	}
	if opt == URIRelativeToBase {
		if !u.IsAbs() {
			return raw, nil
		}
		if base != nil {
			if rest, ok := strings.CutPrefix(u.String(), base.String()); ok {
				return rest, nil
			}
		}
		return "", invalidURL(raw, "URL is not under the base URL")
	}
	abs := u
	if !u.IsAbs() {
		if base == nil {
			return "", invalidURL(raw, "relative URL without a base URL")
		}
		abs = base.ResolveReference(u)
	}
	if opt == URIResourcePath {
		p := abs.EscapedPath()
		if abs.RawQuery != "" {
			p += "?" + abs.RawQuery
		}
		return p, nil
	}
	return abs.String(), nil
}
