package persistence

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// gooseVersionTable is the table goose records applied migrations in.
const gooseVersionTable = "goose_db_version"

// SchemaVersionQuery builds the query returning the highest applied
// migration version.
func SchemaVersionQuery(dialect Dialect) (string, []any, error) {
	return sq.Select("COALESCE(MAX(version_id), 0)").
		From(gooseVersionTable).
		Where(sq.Eq{"is_applied": true}).
		PlaceholderFormat(dialect.Placeholder()).
		ToSql()
}

// Placeholder returns the bind parameter style of the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == DialectSQLite {
		return sq.Question
	}
	return sq.Dollar
}

// SchemaVersion returns the highest applied migration version, or zero when
// nothing was applied.
func (db *DB) SchemaVersion(ctx context.Context) (int64, error) {
	query, args, err := SchemaVersionQuery(db.dialect)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryingSchemaVersion, err)
	}

	var version sql.NullInt64
	if err = db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryingSchemaVersion, err)
	}

	return version.Int64, nil
}
