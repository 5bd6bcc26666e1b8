// Package sqlitestore persists credentials in a SQLite database. Unlike the
// key/value backends, every write is a single transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jrsteele09/go-cooking-client/credentials"
)

var _ credentials.Store = (*Store)(nil)

// Store keeps the four credential entries as rows of one table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "[sqlitestore.Open] create directory")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] open database")
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] ping database")
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] migrate")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (*credentials.StoredCredentials, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM credentials`)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Load] query")
	}
	defer rows.Close()

	entries := make(map[string]string, len(credentials.Keys))
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errors.Wrap(err, "[Store.Load] scan")
		}
		entries[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[Store.Load] rows")
	}
	return credentials.Decode(entries)
}

func (s *Store) Save(ctx context.Context, creds credentials.StoredCredentials) error {
	entries, err := credentials.Encode(creds)
	if err != nil {
		return errors.Wrap(err, "[Store.Save]")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, key := range credentials.Keys {
			if err := upsert(ctx, tx, key, entries[key]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveTokens(ctx context.Context, tokens credentials.TokenPair) error {
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.ExpiresAt.IsZero() {
		return errors.Wrap(credentials.ErrInvalid, "[Store.SaveTokens] incomplete token pair")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE name = ?`, credentials.KeyUserInfo); err != nil {
			return errors.Wrap(err, "delete user entry")
		}
		if err := upsert(ctx, tx, credentials.KeyAccessToken, tokens.AccessToken); err != nil {
			return err
		}
		if err := upsert(ctx, tx, credentials.KeyRefreshToken, tokens.RefreshToken); err != nil {
			return err
		}
		return upsert(ctx, tx, credentials.KeyExpiresTime, credentials.FormatExpiry(tokens.ExpiresAt))
	})
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return errors.Wrap(err, "[Store.Clear]")
	}
	return nil
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE name = ?`, credentials.KeyAccessToken).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && token == "") {
		return "", credentials.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[Store.AccessToken]")
	}
	return token, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

func upsert(ctx context.Context, tx *sql.Tx, name, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value)
	return errors.Wrapf(err, "upsert %s", name)
}
