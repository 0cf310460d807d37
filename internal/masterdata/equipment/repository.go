package equipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snd-est/snd-rental/internal/shared"
)

// Repository is the equipment persistence contract.
type Repository interface {
	List(ctx context.Context, search, status string) ([]Equipment, error)
	Get(ctx context.Context, id int64) (*Equipment, error)
	Create(ctx context.Context, e *Equipment) error
	Update(ctx context.Context, e *Equipment) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository is the PostgreSQL implementation.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, name, model_number, license_plate, serial_number, category,
hourly_rate, daily_rate, weekly_rate, monthly_rate, status, created_at, updated_at`

func scanEquipment(row pgx.Row, e *Equipment) error {
	return row.Scan(&e.ID, &e.Name, &e.ModelNumber, &e.LicensePlate, &e.SerialNumber, &e.Category,
		&e.HourlyRate, &e.DailyRate, &e.WeeklyRate, &e.MonthlyRate, &e.Status, &e.CreatedAt, &e.UpdatedAt)
}

func (r *PGRepository) List(ctx context.Context, search, status string) ([]Equipment, error) {
	query := `SELECT ` + columns + ` FROM equipment WHERE 1=1`
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR license_plate ILIKE $%d)`, len(args), len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("equipment: list: %w", err)
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		var e Equipment
		if err := scanEquipment(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (*Equipment, error) {
	var e Equipment
	err := scanEquipment(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM equipment WHERE id = $1`, id), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: equipment %d", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("equipment: get: %w", err)
	}
	return &e, nil
}

func (r *PGRepository) Create(ctx context.Context, e *Equipment) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO equipment
(name, model_number, license_plate, serial_number, category, hourly_rate, daily_rate, weekly_rate, monthly_rate, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11) RETURNING id, created_at, updated_at`,
		e.Name, e.ModelNumber, e.LicensePlate, e.SerialNumber, e.Category,
		e.HourlyRate, e.DailyRate, e.WeeklyRate, e.MonthlyRate, e.Status, time.Now().UTC(),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("equipment: create: %w", err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, e *Equipment) error {
	tag, err := r.pool.Exec(ctx, `UPDATE equipment SET name=$2, model_number=$3, license_plate=$4, serial_number=$5,
category=$6, hourly_rate=$7, daily_rate=$8, weekly_rate=$9, monthly_rate=$10, status=$11, updated_at=$12 WHERE id=$1`,
		e.ID, e.Name, e.ModelNumber, e.LicensePlate, e.SerialNumber, e.Category,
		e.HourlyRate, e.DailyRate, e.WeeklyRate, e.MonthlyRate, e.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("equipment: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: equipment %d", shared.ErrNotFound, e.ID)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM equipment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("equipment: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: equipment %d", shared.ErrNotFound, id)
	}
	return nil
}
