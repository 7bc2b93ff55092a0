package health

import "errors"

var (
	// ErrNilProvider is returned by NewProviderChecker for a nil provider.
	ErrNilProvider = errors.New("health: provider is nil")

	// ErrEmptyPeerURL is returned by NewPeerChecker when the peer has no URL.
	ErrEmptyPeerURL = errors.New("health: peer url is empty")

	// ErrPeerUnhealthy is returned when a peer answers with an unhealthy report.
	ErrPeerUnhealthy = errors.New("health: peer reports unhealthy")
)
