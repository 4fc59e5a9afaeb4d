package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
)

// PostgresSnapshots is a Snapshots backed by Postgres, one row per key with
// the whole JSON array as the payload. The upsert makes each Write an
// atomic replace.
type PostgresSnapshots struct {
	DB *sql.DB
}

func NewPostgresSnapshots(dsn string) (*PostgresSnapshots, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresSnapshots{DB: db}, nil
}

func (s *PostgresSnapshots) Close() error { return s.DB.Close() }

func (s *PostgresSnapshots) Read(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE key = $1`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *PostgresSnapshots) Write(ctx context.Context, key string, data []byte) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO snapshots (key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, key, string(data)) // string, not []byte: pq would send bytea to the jsonb column
	return err
}
