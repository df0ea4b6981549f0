package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgKV persiste el historial en postgres sobre una tabla clave-valor:
//
//	CREATE TABLE kv_store (
//	    key        TEXT PRIMARY KEY,
//	    value      BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PgKV struct {
	pool *pgxpool.Pool
}

func NewPgKV(pool *pgxpool.Pool) *PgKV {
	return &PgKV{pool: pool}
}

func (p *PgKV) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `
		SELECT value
		FROM kv_store
		WHERE key = $1
	`
	var value []byte
	err := p.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *PgKV) Set(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	_, err := p.pool.Exec(ctx, query, key, value)
	return err
}

func (p *PgKV) Delete(ctx context.Context, key string) error {
	const query = `
		DELETE FROM kv_store
		WHERE key = $1
	`
	_, err := p.pool.Exec(ctx, query, key)
	return err
}

// Close no cierra el pool: lo posee el punto de composición.
func (p *PgKV) Close() error { return nil }
