package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirmex/helpdesk/internal/domain"
)

// EquipmentRepository manages the equipment registry.
type EquipmentRepository interface {
	Create(ctx context.Context, eq *domain.Equipment) error
	Update(ctx context.Context, eq *domain.Equipment) error
	GetByID(ctx context.Context, id string) (*domain.Equipment, error)
	GetBySerial(ctx context.Context, serial string) (*domain.Equipment, error)
	List(ctx context.Context, limit, offset int) ([]domain.Equipment, error)
}

type equipmentRepository struct {
	pool *pgxpool.Pool
}

// NewEquipmentRepository instantiates repository.
func NewEquipmentRepository(pool *pgxpool.Pool) EquipmentRepository {
	return &equipmentRepository{pool: pool}
}

func (r *equipmentRepository) Create(ctx context.Context, eq *domain.Equipment) error {
	const query = `
        INSERT INTO equipment (serial, model, location, status, purchased_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		eq.Serial,
		eq.Model,
		eq.Location,
		eq.Status,
		eq.PurchasedAt,
	).Scan(&eq.ID, &eq.CreatedAt, &eq.UpdatedAt)
}

func (r *equipmentRepository) Update(ctx context.Context, eq *domain.Equipment) error {
	const query = `
        UPDATE equipment SET serial=$1, model=$2, location=$3, status=$4, purchased_at=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		eq.Serial,
		eq.Model,
		eq.Location,
		eq.Status,
		eq.PurchasedAt,
		eq.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *equipmentRepository) GetByID(ctx context.Context, id string) (*domain.Equipment, error) {
	const query = `
        SELECT id, serial, model, location, status, purchased_at, created_at, updated_at
        FROM equipment WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *equipmentRepository) GetBySerial(ctx context.Context, serial string) (*domain.Equipment, error) {
	const query = `
        SELECT id, serial, model, location, status, purchased_at, created_at, updated_at
        FROM equipment WHERE serial=$1`
	return r.fetchSingle(ctx, query, serial)
}

func (r *equipmentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Equipment, error) {
	var eq domain.Equipment
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&eq.ID,
		&eq.Serial,
		&eq.Model,
		&eq.Location,
		&eq.Status,
		&eq.PurchasedAt,
		&eq.CreatedAt,
		&eq.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &eq, nil
}

func (r *equipmentRepository) List(ctx context.Context, limit, offset int) ([]domain.Equipment, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, serial, model, location, status, purchased_at, created_at, updated_at
        FROM equipment ORDER BY model ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Equipment
	for rows.Next() {
		var eq domain.Equipment
		if err := rows.Scan(
			&eq.ID,
			&eq.Serial,
			&eq.Model,
			&eq.Location,
			&eq.Status,
			&eq.PurchasedAt,
			&eq.CreatedAt,
			&eq.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, eq)
	}
	return result, rows.Err()
}
