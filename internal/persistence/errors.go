package persistence

import "errors"

var (
	ErrEmptyDSN              = errors.New("database DSN is empty")
	ErrEmptyMongoURI         = errors.New("mongo URI is empty")
	ErrUnsupportedDriver     = errors.New("unsupported database driver")
	ErrMigration             = errors.New("migration error")
	ErrQueryingSchemaVersion = errors.New("error querying schema version")
)
