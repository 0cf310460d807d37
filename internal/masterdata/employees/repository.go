package employees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snd-est/snd-rental/internal/shared"
)

// Repository is the employee persistence contract.
type Repository interface {
	List(ctx context.Context, search string) ([]Employee, error)
	Get(ctx context.Context, id int64) (*Employee, error)
	Create(ctx context.Context, e *Employee) error
	Update(ctx context.Context, e *Employee) error
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

const columns = `id, name, file_number, designation, phone, status, created_at, updated_at`

func (r *PGRepository) List(ctx context.Context, search string) ([]Employee, error) {
	query := `SELECT ` + columns + ` FROM employees`
	args := []any{}
	if search != "" {
		query += ` WHERE name ILIKE $1 OR file_number ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("employees: list: %w", err)
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.FileNumber, &e.Designation, &e.Phone, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (*Employee, error) {
	var e Employee
	err := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM employees WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.FileNumber, &e.Designation, &e.Phone, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: employee %d", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("employees: get: %w", err)
	}
	return &e, nil
}

func (r *PGRepository) Create(ctx context.Context, e *Employee) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO employees (name, file_number, designation, phone, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6) RETURNING id, created_at, updated_at`,
		e.Name, e.FileNumber, e.Designation, e.Phone, e.Status, time.Now().UTC(),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("employees: create: %w", err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, e *Employee) error {
	tag, err := r.pool.Exec(ctx, `UPDATE employees SET name=$2, file_number=$3, designation=$4, phone=$5, status=$6, updated_at=$7 WHERE id=$1`,
		e.ID, e.Name, e.FileNumber, e.Designation, e.Phone, e.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("employees: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: employee %d", shared.ErrNotFound, e.ID)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("employees: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: employee %d", shared.ErrNotFound, id)
	}
	return nil
}
