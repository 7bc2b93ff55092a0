// Package feature holds the immutable set of named toggles that drives service
// composition.
//
// Names are dot- or colon-hierarchical ("OpenApi:Profiler") and compared
// case-insensitively. A child toggle is looked up on its own: enabling
// "OpenApi:Profiler" does not depend on the value of "OpenApi".
package feature

import (
	"sort"
	"strings"
)

// Well-known toggle names consulted by the composition engine.
const (
	Mongo       = "Mongo"
	EfCore      = "EfCore"
	CleanArch   = "CleanArch"
	APIVersion  = "ApiVersion"
	AuthN       = "AuthN"
	OpenAPI     = "OpenApi"
	APIProfiler = "OpenApi:Profiler"
)

// Checker is the narrow contract consumers depend on.
type Checker interface {
	IsEnabled(name string) bool
}

// Set is an immutable feature toggle lookup. The zero value has every feature
// disabled.
type Set struct {
	flags map[string]bool
	names map[string]string
}

// NewSet copies flags into a new Set. Later mutations of flags are not
// observed by the returned Set.
func NewSet(flags map[string]bool) Set {
	s := Set{
		flags: make(map[string]bool, len(flags)),
		names: make(map[string]string, len(flags)),
	}
	for name, enabled := range flags {
		key := normalize(name)
		if key == "" {
			continue
		}
		s.flags[key] = enabled
		s.names[key] = strings.TrimSpace(name)
	}

	return s
}

// IsEnabled reports whether name is switched on. Unknown names are disabled.
func (s Set) IsEnabled(name string) bool {
	return s.flags[normalize(name)]
}

// Names returns the declared feature names in sorted order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// Enabled returns the names of the features that are switched on, sorted.
func (s Set) Enabled() []string {
	out := make([]string, 0, len(s.flags))
	for key, on := range s.flags {
		if on {
			out = append(out, s.names[key])
		}
	}
	sort.Strings(out)

	return out
}

// With returns a copy of s with name set to enabled.
func (s Set) With(name string, enabled bool) Set {
	flags := make(map[string]bool, len(s.flags)+1)
	for key, on := range s.flags {
		flags[s.names[key]] = on
	}
	for declared := range flags {
		if normalize(declared) == normalize(name) {
			delete(flags, declared)
		}
	}
	flags[name] = enabled

	return NewSet(flags)
}

// normalize lower-cases the name and accepts "." as a hierarchy separator
// equivalent to ":".
func normalize(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.ReplaceAll(name, ".", ":")
}
