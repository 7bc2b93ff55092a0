// Package persistence holds the storage providers a miniservice can bind:
// a MongoDB document store and relational databases (PostgreSQL, SQLite)
// with goose migrations.
package persistence

//go:generate mockgen -source=provider.go -destination=../mock/persistence_provider_mock.go -package=mock

import "context"

// Provider is a storage backend bound under the persistence capability.
type Provider interface {
	// Name identifies the backend, e.g. "mongo" or "postgres".
	Name() string
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases connections.
	Close(ctx context.Context) error
}
