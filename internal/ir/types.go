package ir

import "strings"

// NoSubSpec marks an entry that does not descend into another spec.
const NoSubSpec = -1

// Spec variants.
const (
	VariantBase       = "base"
	VariantAnnotation = "annotation"
)

// Spec is a compiled delete specification for one root type.
//
// The spec name is the name of its root type: every entry path starts
// with it. Entries are kept in declaration order, which is the order in
// which rows are collected and deleted.
type Spec struct {
	Name    string  `json:"name"`
	Variant string  `json:"variant"`
	Entries []Entry `json:"entries"`
}

// Entry is one declared edge of the ownership graph.
type Entry struct {
	// Path is the declared path, e.g. "/Image/Pixels/RenderingDef".
	Path string `json:"path"`

	// Segments are the type names along Path.
	Segments []string `json:"segments"`

	// Op is the declared operation.
	Op Op `json:"op"`

	// Qualifier is the optional literal path suffix, e.g. "/Pixels/related_to"
	// for NULL entries.
	Qualifier string `json:"qualifier,omitempty"`

	// SubSpec is the registry index of the spec this entry descends into,
	// or NoSubSpec.
	SubSpec int `json:"sub_spec"`
}

// Name returns the last path segment.
func (e Entry) Name() string {
	if len(e.Segments) == 0 {
		return ""
	}
	return e.Segments[len(e.Segments)-1]
}

// HasSubSpec reports whether the entry descends into another spec.
func (e Entry) HasSubSpec() bool {
	return e.SubSpec != NoSubSpec
}

// QualifierParts splits the qualifier into its type and column, e.g.
// "/Pixels/related_to" into ("Pixels", "related_to").
func (e Entry) QualifierParts() (typeName, column string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(e.Qualifier, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// SubPath returns the logical path of this entry when its spec is reached
// through an entry with logical path prefix. The first segment of the entry
// path is the spec root and is already the last segment of prefix.
func (e Entry) SubPath(prefix string) string {
	if prefix == "" {
		return e.Path
	}
	if len(e.Segments) <= 1 {
		return prefix
	}
	return prefix + "/" + strings.Join(e.Segments[1:], "/")
}
