package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const Schema = `
CREATE TABLE IF NOT EXISTS instances (
	id UUID PRIMARY KEY,
	resource_group VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	extend_by_sec BIGINT NOT NULL,
	respond_within_sec BIGINT NOT NULL,
	phase TEXT NOT NULL DEFAULT 'notification_pending',
	response_deadline TIMESTAMPTZ,
	signaled_at TIMESTAMPTZ,
	failure TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS instance_checkpoints (
	instance_id UUID NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
	step VARCHAR(255) NOT NULL,
	data BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (instance_id, step)
);

CREATE INDEX IF NOT EXISTS idx_instances_phase ON instances(phase);
CREATE INDEX IF NOT EXISTS idx_instances_resource_group_phase ON instances(resource_group, phase);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
