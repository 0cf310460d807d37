package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snd-est/snd-rental/internal/shared"
)

// Repository is the customer persistence contract.
type Repository interface {
	List(ctx context.Context, search string) ([]Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
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

const columns = `id, name, erpnext_name, vat_number, email, phone, address, status, created_at, updated_at`

func (r *PGRepository) List(ctx context.Context, search string) ([]Customer, error) {
	query := `SELECT ` + columns + ` FROM customers`
	args := []any{}
	if search != "" {
		query += ` WHERE name ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("customers: list: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.ERPNextName, &c.VATNumber, &c.Email, &c.Phone, &c.Address, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.ERPNextName, &c.VATNumber, &c.Email, &c.Phone, &c.Address, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("customers: get: %w", err)
	}
	return &c, nil
}

func (r *PGRepository) Create(ctx context.Context, c *Customer) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (name, erpnext_name, vat_number, email, phone, address, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8) RETURNING id, created_at, updated_at`,
		c.Name, c.ERPNextName, c.VATNumber, c.Email, c.Phone, c.Address, c.Status, time.Now().UTC(),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("customers: create: %w", err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, c *Customer) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers SET name=$2, erpnext_name=$3, vat_number=$4, email=$5, phone=$6, address=$7, status=$8, updated_at=$9 WHERE id=$1`,
		c.ID, c.Name, c.ERPNextName, c.VATNumber, c.Email, c.Phone, c.Address, c.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("customers: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", shared.ErrNotFound, c.ID)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("customers: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return nil
}
