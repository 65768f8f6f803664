package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
)

type PostgresInstanceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresInstanceRepository(pool *pgxpool.Pool) *PostgresInstanceRepository {
	return &PostgresInstanceRepository{pool: pool}
}

const instanceColumns = `id, resource_group, email, extend_by_sec, respond_within_sec, phase, response_deadline, signaled_at, failure, created_at, updated_at`

func (r *PostgresInstanceRepository) CreateInstance(ctx context.Context, instance *domain.Instance) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO instances (id, resource_group, email, extend_by_sec, respond_within_sec, phase, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		instance.ID,
		instance.ResourceGroup,
		instance.Email,
		int64(instance.ExtendBy/time.Second),
		int64(instance.RespondWithin/time.Second),
		string(instance.Phase),
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	return err
}

func (r *PostgresInstanceRepository) GetInstance(ctx context.Context, id string) (*domain.Instance, error) {
	// The id column is UUID-typed; postgres rejects a malformed identifier
	// with a cast error rather than an empty result. A mangled emailed link
	// is an unknown instance, not a query failure.
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
	instance, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (r *PostgresInstanceRepository) ArmDeadline(ctx context.Context, id string, deadline time.Time) error {
	// COALESCE keeps the first recorded deadline: a replayed transition can
	// never move the race.
	_, err := r.pool.Exec(ctx, `
		UPDATE instances
		SET response_deadline = COALESCE(response_deadline, $2),
		    phase = $3,
		    updated_at = NOW()
		WHERE id = $1`,
		id, deadline, string(domain.PhaseAwaitingResponse),
	)
	return err
}

func (r *PostgresInstanceRepository) RecordSignal(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE instances
		SET signaled_at = $2, updated_at = NOW()
		WHERE id = $1
		  AND signaled_at IS NULL
		  AND phase IN ($3, $4)`,
		id, at,
		string(domain.PhaseNotificationPending),
		string(domain.PhaseAwaitingResponse),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresInstanceRepository) MarkPhase(ctx context.Context, id string, phase domain.Phase) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE instances SET phase = $2, updated_at = NOW() WHERE id = $1`,
		id, string(phase),
	)
	return err
}

func (r *PostgresInstanceRepository) RecordFailure(ctx context.Context, id string, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE instances SET failure = $2, updated_at = NOW() WHERE id = $1`,
		id, message,
	)
	return err
}

func (r *PostgresInstanceRepository) HasActiveInstance(ctx context.Context, resourceGroup string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM instances
			WHERE resource_group = $1 AND phase IN ($2, $3)
		)`,
		resourceGroup,
		string(domain.PhaseNotificationPending),
		string(domain.PhaseAwaitingResponse),
	).Scan(&active)
	return active, err
}

func (r *PostgresInstanceRepository) ListActiveInstances(ctx context.Context) ([]*domain.Instance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+instanceColumns+` FROM instances
		WHERE phase IN ($1, $2)
		ORDER BY created_at`,
		string(domain.PhaseNotificationPending),
		string(domain.PhaseAwaitingResponse),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*domain.Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func scanInstance(row pgx.Row) (*domain.Instance, error) {
	var (
		instance         domain.Instance
		phase            string
		extendBySec      int64
		respondWithinSec int64
	)
	err := row.Scan(
		&instance.ID,
		&instance.ResourceGroup,
		&instance.Email,
		&extendBySec,
		&respondWithinSec,
		&phase,
		&instance.ResponseDeadline,
		&instance.SignaledAt,
		&instance.Failure,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	instance.Phase = domain.Phase(phase)
	instance.ExtendBy = time.Duration(extendBySec) * time.Second
	instance.RespondWithin = time.Duration(respondWithinSec) * time.Second
	return &instance, nil
}
