package compose

import (
	"errors"
	"fmt"
)

// Fatal configuration errors. Composition stops at the first one and the
// service must not serve traffic.
var (
	ErrConflictingPersistence = errors.New("features Mongo and EfCore are mutually exclusive: enable only one persistence backend")
	ErrInvalidAPIVersion      = errors.New("invalid default API version")
	ErrOpenAPIConfigMissing   = errors.New("feature OpenApi is enabled but no OpenApi configuration section was found: add the configuration or disable the feature")
)

// StepError reports the step a composition failure happened in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("compose step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
