package versioning

import "errors"

var (
	// ErrEmptyVersion is returned by Parse for a blank version string.
	ErrEmptyVersion = errors.New("api version is empty")

	// ErrMalformedVersion is returned by Parse when fewer than two tokens
	// remain after splitting or when major/minor are not non-negative integers.
	ErrMalformedVersion = errors.New("could not parse api version")

	// ErrUnsupportedVersion is reported when a request asks for a version the
	// service does not serve.
	ErrUnsupportedVersion = errors.New("unsupported api version")
)
