package auth

//go:generate mockgen -source=interfaces.go -destination=../mock/auth_validator_mock.go -package=mock

import "context"

// Validator turns a raw bearer token into a Principal.
type Validator interface {
	Validate(ctx context.Context, token string) (Principal, error)
}
