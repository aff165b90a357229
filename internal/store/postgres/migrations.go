package postgres

import (
	"context"
	"fmt"
)

// Schema creates the point tables. It is idempotent and shared with cmd/seeder.
const Schema = `
CREATE TABLE IF NOT EXISTS account_points (
    id         BIGINT PRIMARY KEY,
    point      BIGINT NOT NULL DEFAULT 0 CHECK (point >= 0 AND point <= 10000),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS point_histories (
    id         BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL,
    amount     BIGINT NOT NULL CHECK (amount > 0),
    type       VARCHAR(10) NOT NULL CHECK (type IN ('CHARGE', 'USE')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_point_histories_account_id ON point_histories (account_id, id);
`

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("pointledger/postgres: migration failed: %w", err)
	}
	return nil
}
