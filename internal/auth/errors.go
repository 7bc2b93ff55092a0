package auth

import "errors"

var (
	ErrEmptyAuthorizationHeader   = errors.New("empty authorization header")
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")
	ErrEmptyToken                 = errors.New("empty token")
	ErrInvalidToken               = errors.New("invalid token")
	ErrTokenExpired               = errors.New("token is expired")
	ErrMissingSignKey             = errors.New("auth sign key is not configured")
	ErrUnknownPolicy              = errors.New("unknown authorization policy")
)
