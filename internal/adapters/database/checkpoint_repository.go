package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresCheckpointRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCheckpointRepository(pool *pgxpool.Pool) *PostgresCheckpointRepository {
	return &PostgresCheckpointRepository{pool: pool}
}

func (r *PostgresCheckpointRepository) GetCheckpoint(ctx context.Context, instanceID, step string) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM instance_checkpoints WHERE instance_id = $1 AND step = $2`,
		instanceID, step,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		// Row exists; a nil payload still means "step completed".
		data = []byte{}
	}
	return data, nil
}

func (r *PostgresCheckpointRepository) SaveCheckpoint(ctx context.Context, instanceID, step string, data []byte) error {
	// First write wins. A replayed step racing its own earlier write must
	// not replace the recorded result.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO instance_checkpoints (instance_id, step, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (instance_id, step) DO NOTHING`,
		instanceID, step, data,
	)
	return err
}
