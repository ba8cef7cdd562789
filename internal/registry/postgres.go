package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Registry backed by a `channels` table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL with bounded pool tuning and
// verifies reachability with a ping.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("registry: parsing database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("registry: pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the channels table if it doesn't exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS channels (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			source     TEXT NOT NULL,
			headers    JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (p *Postgres) GetByID(ctx context.Context, id string) (*Channel, error) {
	var name, source string
	var headersJSON []byte

	err := p.pool.QueryRow(ctx,
		`SELECT name, source, headers FROM channels WHERE id = $1`, id,
	).Scan(&name, &source, &headersJSON)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: querying channel %s: %w", id, err)
	}

	var headers map[string]string
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &headers); err != nil {
			return nil, fmt.Errorf("registry: decoding headers for %s: %w", id, err)
		}
	}

	return &Channel{ID: id, Name: name, Source: source, Headers: headers}, nil
}
