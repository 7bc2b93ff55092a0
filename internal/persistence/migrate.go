package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

// goose keeps its base FS and dialect in package state
var gooseMu sync.Mutex

// Migrate applies every pending goose migration found in fsys to db.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, fsys fs.FS) error {
	if db == nil {
		return fmt.Errorf("%w: db is nil", ErrMigration)
	}
	if fsys == nil {
		return fmt.Errorf("%w: migrations fs is nil", ErrMigration)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect(dialect)); err != nil {
		return fmt.Errorf("%w: setting dialect for db: %w", ErrMigration, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}

// Migrate applies the migrations in fsys to db.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	if err := Migrate(ctx, db.DB, db.dialect, fsys); err != nil {
		db.logger.Err(err).Str("func", "Migrate").Msg("migration failed")
		return err
	}
	db.logger.Info().Str("func", "Migrate").Msg("migrations applied")
	return nil
}

func gooseDialect(d Dialect) string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "pgx"
}
