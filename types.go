package odatajson

import "strings"

// Version selects the OData protocol version, which controls how odata
// control information is named on the wire.
type Version int

const (
	V4   Version = iota // control names are prefixed "@odata." (e.g., @odata.type)
	V401                // control names use the bare "@" prefix (e.g., @type)
)

func (v Version) String() string {
	if v == V401 {
		return "4.01"
	}
	return "4.0"
}

// MetadataLevel selects the odata.metadata policy of the writer.
type MetadataLevel int

const (
	MetadataMinimal MetadataLevel = iota // write control information only when it cannot be inferred
	MetadataFull                         // write type names more liberally
	MetadataNone                         // write no type names at all
)

func (m MetadataLevel) String() string {
	switch m {
	case MetadataFull:
		return "full"
	case MetadataNone:
		return "none"
	default:
		return "minimal"
	}
}

// Control information names without prefix.
const (
	ControlContext          = "context"
	ControlType             = "type"
	ControlID               = "id"
	ControlETag             = "etag"
	ControlCount            = "count"
	ControlNextLink         = "nextLink"
	ControlDeltaLink        = "deltaLink"
	ControlMediaReadLink    = "mediaReadLink"
	ControlMediaEditLink    = "mediaEditLink"
	ControlMediaContentType = "mediaContentType"
	ControlMediaETag        = "mediaEtag"
	ControlRemoved          = "removed"
)

// ControlName returns the JSON name of a control annotation for the
// resource/resource-set level ("@odata.count" / "@count").
func (v Version) ControlName(name string) string {
	if v == V401 {
		return "@" + name
	}
	return "@odata." + name
}

// PropertyControlName returns the JSON name of a control annotation applied
// to a property or instance annotation ("Prop@odata.type" / "Prop@type").
func (v Version) PropertyControlName(property, name string) string {
	return property + v.ControlName(name)
}

// ParseControlName recognises an odata control name. It accepts both the
// "@odata." form and, for V401 readers, the bare "@" form. The returned name
// is unprefixed.
func (v Version) ParseControlName(jsonName string) (string, bool) {
	if rest, ok := strings.CutPrefix(jsonName, "@odata."); ok {
		return rest, true
	}
	if v == V401 && strings.HasPrefix(jsonName, "@") {
		rest := jsonName[1:]
		if isControlName(rest) {
			return rest, true
		}
	}
	return "", false
}

func isControlName(name string) bool {
	switch name {
	case ControlContext, ControlType, ControlID, ControlETag, ControlCount, ControlNextLink, ControlDeltaLink,
		ControlMediaReadLink, ControlMediaEditLink, ControlMediaContentType, ControlMediaETag, ControlRemoved:
		return true
	}
	return false
}

// WireTypeName renders a qualified type name as written in an odata.type
// value: "#" prefix with the "Edm." namespace dropped for primitives,
// including inside Collection(...).
func WireTypeName(name string) string {
	if elem := ElementTypeName(name); elem != "" {
		return "#Collection(" + strings.TrimPrefix(elem, "Edm.") + ")"
	}
	return "#" + strings.TrimPrefix(name, "Edm.")
}

// ParseWireTypeName reverses WireTypeName, restoring the Edm namespace for
// primitive names.
func ParseWireTypeName(s string) string {
	s = strings.TrimPrefix(s, "#")
	if elem := ElementTypeName(s); elem != "" {
		return CollectionTypeName(qualifyPrimitive(elem))
	}
	return qualifyPrimitive(s)
}

func qualifyPrimitive(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	if k, ok := PrimitiveKindOf(name); ok {
		return k.TypeName()
	}
	return name
}
