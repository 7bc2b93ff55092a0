// Package migrations embeds the schema of the relational store a miniservice
// host binds when EfCore is enabled.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/MKhiriev/go-miniservice/internal/persistence"
)

//go:embed *.sql
var embedMigrations embed.FS

// FS returns the embedded migration files.
func FS() fs.FS {
	return embedMigrations
}

// Migrate applies the embedded migrations to db.
func Migrate(ctx context.Context, db *persistence.DB) error {
	if db == nil {
		return fmt.Errorf("%w: db is nil", persistence.ErrMigration)
	}
	return db.Migrate(ctx, embedMigrations)
}
