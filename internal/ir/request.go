package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Principal is the acting user of a delete request.
type Principal struct {
	UserID   int64   `json:"user_id" yaml:"user_id"`
	GroupID  int64   `json:"group_id" yaml:"group_id"`
	Admin    bool    `json:"admin" yaml:"admin"`
	LeaderOf []int64 `json:"leader_of,omitempty" yaml:"leader_of,omitempty"`
}

// Leads reports whether the principal leads the given group.
func (p Principal) Leads(groupID int64) bool {
	for _, g := range p.LeaderOf {
		if g == groupID {
			return true
		}
	}
	return false
}

// Option keys understood by ParseOptions besides path overrides.
const (
	OptionForce        = "force"
	OptionTypeIncludes = "type.includes"
	OptionTypeExcludes = "type.excludes"
	OptionNSIncludes   = "ns.includes"
	OptionNSExcludes   = "ns.excludes"
)

// Options are the per-request knobs of a delete.
type Options struct {
	// Overrides maps a path to the operation used instead of the declared
	// one. Keys match either the logical path or the declared entry path.
	Overrides map[string]Op `json:"overrides,omitempty"`

	// Force skips the ownership predicate on deletes.
	Force bool `json:"force,omitempty"`

	TypeIncludes []string `json:"type_includes,omitempty"`
	TypeExcludes []string `json:"type_excludes,omitempty"`
	NSIncludes   []string `json:"ns_includes,omitempty"`
	NSExcludes   []string `json:"ns_excludes,omitempty"`
}

// ParseOptions converts the flat string map accepted at the service
// boundary. Keys starting with "/" are path overrides; the rest must be one
// of the Option* keys.
func ParseOptions(raw map[string]string) (Options, error) {
	opts := Options{Overrides: make(map[string]Op)}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		switch {
		case strings.HasPrefix(key, "/"):
			op, err := ParseOp(value)
			if err != nil {
				return Options{}, fmt.Errorf("option %s: %w", key, err)
			}
			opts.Overrides[key] = op
		case key == OptionForce:
			force, err := strconv.ParseBool(value)
			if err != nil {
				return Options{}, fmt.Errorf("option %s: %w", key, err)
			}
			opts.Force = force
		case key == OptionTypeIncludes:
			opts.TypeIncludes = splitList(value)
		case key == OptionTypeExcludes:
			opts.TypeExcludes = splitList(value)
		case key == OptionNSIncludes:
			opts.NSIncludes = splitList(value)
		case key == OptionNSExcludes:
			opts.NSExcludes = splitList(value)
		default:
			return Options{}, fmt.Errorf("unknown option %q", key)
		}
	}
	return opts, nil
}

// OpFor returns the effective operation for an entry reached at logical
// path. The logical path wins over the declared path.
func (o Options) OpFor(logical string, e Entry) Op {
	if op, ok := o.Overrides[logical]; ok {
		return op
	}
	if op, ok := o.Overrides[e.Path]; ok {
		return op
	}
	return e.Op
}

// IncludesType applies type.includes and type.excludes to a type name.
func (o Options) IncludesType(name string) bool {
	if len(o.TypeIncludes) > 0 && !contains(o.TypeIncludes, name) {
		return false
	}
	return !contains(o.TypeExcludes, name)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Event is a notification about committed row deletions of one type.
type Event struct {
	RequestID string  `json:"request_id"`
	Op        string  `json:"op"`
	Type      string  `json:"type"`
	IDs       []int64 `json:"ids"`
}

// EventDelete is the only event operation the engine emits.
const EventDelete = "DELETE"

// Summary compares what was found with what was deleted.
type Summary struct {
	Steps    int `json:"steps"`
	Found    int `json:"found"`
	Deleted  int `json:"deleted"`
	Warnings int `json:"warnings"`
}

// Report is the outcome of a committed delete request.
type Report struct {
	RequestID string             `json:"request_id"`
	Type      string             `json:"type"`
	ID        int64              `json:"id"`
	Summary   Summary            `json:"summary"`
	Deleted   map[string][]int64 `json:"deleted"`
	Warnings  []string           `json:"warnings"`
}

// CanonicalMap converts the report for canonical JSON encoding. The request
// id is left out so that reports compare across runs.
func (r *Report) CanonicalMap() map[string]any {
	deleted := make(map[string]any, len(r.Deleted))
	for table, ids := range r.Deleted {
		list := make([]any, len(ids))
		for i, id := range ids {
			list[i] = id
		}
		deleted[table] = list
	}
	warnings := make([]any, len(r.Warnings))
	for i, w := range r.Warnings {
		warnings[i] = w
	}
	return map[string]any{
		"type":    r.Type,
		"id":      r.ID,
		"deleted": deleted,
		"summary": map[string]any{
			"steps":    r.Summary.Steps,
			"found":    r.Summary.Found,
			"deleted":  r.Summary.Deleted,
			"warnings": r.Summary.Warnings,
		},
		"warnings": warnings,
	}
}
