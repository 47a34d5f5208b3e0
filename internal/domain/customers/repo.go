package customers

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetByID(ctx context.Context, id int64) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, phone, flat_hours, created_at, updated_at
		FROM customers WHERE id = $1
	`, id)

	var c Customer
	if err := row.Scan(&c.ID, &c.FullName, &c.Phone, &c.FlatHours, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// GetByBadge resolves a scanned badge code to the customer it names.
func (r *Repo) GetByBadge(ctx context.Context, code string) (*Customer, error) {
	id, err := ParseBadgeCode(code)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
