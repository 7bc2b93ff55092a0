package health

//go:generate mockgen -source=interfaces.go -destination=../mock/health_checker_mock.go -package=mock

import "context"

// Checker probes one dependency of the service.
type Checker interface {
	// Name labels the check in the report.
	Name() string
	// Check returns nil when the dependency is usable.
	Check(ctx context.Context) error
}
