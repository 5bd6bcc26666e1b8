package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type migration struct {
	name string
	up   string
}

var migrations = []migration{
	{
		name: "001_create_credentials",
		up: `
			CREATE TABLE credentials (
				name TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`,
	},
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if err := runMigration(ctx, db, m); err != nil {
			return errors.Wrapf(err, "migration %s", m.name)
		}
	}
	return nil
}

func runMigration(ctx context.Context, db *sql.DB, m migration) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM migrations WHERE name = ?`, m.name).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO migrations (name) VALUES (?)`, m.name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
