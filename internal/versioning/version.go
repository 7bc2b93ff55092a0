// Package versioning parses API version strings and routes requests to the
// version they ask for.
package versioning

import (
	"fmt"
	"strconv"
	"strings"
)

// APIVersion is a parsed (major, minor, optional label) triple.
type APIVersion struct {
	Major int
	Minor int
	Label string
}

// Parse splits s on "." and "-" separators, discards empty tokens and builds
// an APIVersion from the first two tokens. A third token, if any, becomes the
// label verbatim; the rest are ignored.
//
//	"1.2"        -> 1.2
//	"1.2-beta"   -> 1.2-beta
//	"1.2.3-rc"   -> 1.2-3
func Parse(s string) (APIVersion, error) {
	if strings.TrimSpace(s) == "" {
		return APIVersion{}, ErrEmptyVersion
	}

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '-'
	})
	if len(tokens) < 2 {
		return APIVersion{}, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
	}

	major, err := parseComponent(tokens[0])
	if err != nil {
		return APIVersion{}, fmt.Errorf("%w: %q major: %w", ErrMalformedVersion, s, err)
	}
	minor, err := parseComponent(tokens[1])
	if err != nil {
		return APIVersion{}, fmt.Errorf("%w: %q minor: %w", ErrMalformedVersion, s, err)
	}

	v := APIVersion{Major: major, Minor: minor}
	if len(tokens) > 2 {
		v.Label = tokens[2]
	}

	return v, nil
}

// MustParse is Parse for package-level constants; it panics on error.
func MustParse(s string) APIVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func parseComponent(token string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative component %d", n)
	}
	return n, nil
}

// String renders major.minor with the label appended after a dash.
func (v APIVersion) String() string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
	if v.Label != "" {
		s += "-" + v.Label
	}
	return s
}

// GroupName renders the documentation group of v: a "v" prefix, the major
// version, the minor version only when it is not zero, then the label.
//
//	1.0      -> v1
//	1.2      -> v1.2
//	2.0-beta -> v2-beta
func (v APIVersion) GroupName() string {
	s := "v" + strconv.Itoa(v.Major)
	if v.Minor != 0 {
		s += "." + strconv.Itoa(v.Minor)
	}
	if v.Label != "" {
		s += "-" + v.Label
	}
	return s
}

// Equal compares label case-insensitively.
func (v APIVersion) Equal(o APIVersion) bool {
	return v.Major == o.Major && v.Minor == o.Minor && strings.EqualFold(v.Label, o.Label)
}

// Less orders by major, minor, then label; an unlabelled version sorts after
// labelled ones of the same number.
func (v APIVersion) Less(o APIVersion) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	if v.Label == "" || o.Label == "" {
		return v.Label != "" && o.Label == ""
	}
	return strings.ToLower(v.Label) < strings.ToLower(o.Label)
}

// ParseRequested accepts the looser forms clients send: "1", "1.0", "v2",
// "2.1-beta". A bare major implies minor 0.
func ParseRequested(s string) (APIVersion, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "v"), "V")
	if s != "" && !strings.ContainsAny(s, ".-") {
		s += ".0"
	} else if i := strings.IndexByte(s, '-'); i > 0 && !strings.Contains(s[:i], ".") {
		s = s[:i] + ".0" + s[i:]
	}
	return Parse(s)
}
