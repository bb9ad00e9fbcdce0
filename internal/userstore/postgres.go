package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the user_addresses table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS user_addresses (
    user_id    TEXT PRIMARY KEY,
    addresses  JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. The per-role address map
// is stored as a single JSONB column so that adding one role never disturbs
// the other.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] using the given connection or
// pool. Call [PostgresStore.Migrate] once before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the user_addresses table if it
// does not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("userstore: migrate: %w", err)
	}
	return nil
}

// Get returns the user's stored addresses, or an empty map when the user has
// no row.
func (s *PostgresStore) Get(ctx context.Context, userID string) (map[Role]Address, error) {
	const query = `SELECT addresses FROM user_addresses WHERE user_id = $1`

	var raw []byte
	err := s.db.QueryRow(ctx, query, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[Role]Address{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("userstore: get %q: %w", userID, err)
	}

	addrs := make(map[Role]Address)
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return nil, fmt.Errorf("userstore: decode addresses for %q: %w", userID, err)
	}
	return addrs, nil
}

// Update upserts one role's address, merging into any existing row.
func (s *PostgresStore) Update(ctx context.Context, userID string, role Role, addr Address) error {
	if !role.IsValid() {
		return fmt.Errorf("userstore: invalid role %q", role)
	}

	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("userstore: marshal address: %w", err)
	}

	const query = `
		INSERT INTO user_addresses (user_id, addresses)
		VALUES ($1, jsonb_build_object($2::text, $3::jsonb))
		ON CONFLICT (user_id) DO UPDATE
		SET addresses  = user_addresses.addresses || EXCLUDED.addresses,
		    updated_at = now()`

	if _, err := s.db.Exec(ctx, query, userID, string(role), addrJSON); err != nil {
		return fmt.Errorf("userstore: update %q: %w", userID, err)
	}
	return nil
}

// Delete removes the user's row entirely.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM user_addresses WHERE user_id = $1`
	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("userstore: delete %q: %w", userID, err)
	}
	return nil
}
