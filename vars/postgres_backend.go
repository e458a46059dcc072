package vars

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresBackend persists the scope map in a variables table, one row
// per (scope, name). Suitable for deployments that already carry a
// Postgres dependency for application data.
type PostgresBackend struct {
	pool *pgxpool.Pool
	dsn  string
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN          string
	MaxConns     int32
	RunMigration bool
}

// NewPostgresBackend connects, optionally runs schema migrations, and
// verifies the connection.
func NewPostgresBackend(ctx context.Context, config PostgresConfig) (*PostgresBackend, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	backend := &PostgresBackend{pool: pool, dsn: config.DSN}
	if config.RunMigration {
		if err := backend.runMigrations(); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return backend, nil
}

// runMigrations applies the embedded goose migrations. goose needs a
// database/sql connection, so a short-lived lib/pq connection is used
// alongside the pgx pool.
func (p *PostgresBackend) runMigrations() error {
	db, err := sql.Open("postgres", p.dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Load reads every row into a snapshot.
func (p *PostgresBackend) Load(ctx context.Context) (map[string]map[string]Entry, error) {
	rows, err := p.pool.Query(ctx, `SELECT scope, name, type, value FROM variables`)
	if err != nil {
		return nil, fmt.Errorf("loading variables: %w", err)
	}
	defer rows.Close()

	snapshot := map[string]map[string]Entry{}
	for rows.Next() {
		var scope, name, typeTag string
		var raw []byte
		if err := rows.Scan(&scope, &name, &typeTag, &raw); err != nil {
			return nil, fmt.Errorf("scanning variable row: %w", err)
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("decoding %s.%s: %w", scope, name, err)
		}
		if snapshot[scope] == nil {
			snapshot[scope] = map[string]Entry{}
		}
		snapshot[scope][name] = Entry{Type: typeTag, Value: value}
	}
	return snapshot, rows.Err()
}

// Save upserts every entry and deletes rows absent from the snapshot,
// all in one transaction.
func (p *PostgresBackend) Save(ctx context.Context, snapshot map[string]map[string]Entry) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM variables`); err != nil {
		return fmt.Errorf("clearing variables: %w", err)
	}
	for scope, entries := range snapshot {
		for name, entry := range entries {
			raw, err := json.Marshal(entry.Value)
			if err != nil {
				return fmt.Errorf("encoding %s.%s: %w", scope, name, err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO variables (scope, name, type, value, updated_at)
				 VALUES ($1, $2, $3, $4, now())`,
				scope, name, entry.Type, raw)
			if err != nil {
				return fmt.Errorf("storing %s.%s: %w", scope, name, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing save: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
