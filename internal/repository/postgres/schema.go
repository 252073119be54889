package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS entitlements (
	user_id                  TEXT PRIMARY KEY,
	email                    TEXT NOT NULL DEFAULT '',
	membership_tier          TEXT NOT NULL DEFAULT 'none'
		CHECK (membership_tier IN ('none', 'basic', 'pro', 'family')),
	is_active                BOOLEAN NOT NULL DEFAULT FALSE,
	provider_customer_id     TEXT,
	provider_subscription_id TEXT,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT entitlements_tier_active CHECK ((membership_tier <> 'none') = is_active)
);

CREATE INDEX IF NOT EXISTS entitlements_provider_customer_idx
	ON entitlements (provider_customer_id, updated_at DESC);
`

// Migrate создает таблицу entitlements, если ее нет
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
