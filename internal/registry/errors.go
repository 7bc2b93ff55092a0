package registry

import "errors"

var (
	// ErrSealed is returned by every mutation attempted after Seal.
	ErrSealed = errors.New("registry is sealed")

	// ErrEmptyCapability is returned when a binding is made without a name.
	ErrEmptyCapability = errors.New("capability name is empty")

	// ErrNilImplementation is returned when a nil value is bound.
	ErrNilImplementation = errors.New("implementation is nil")
)
