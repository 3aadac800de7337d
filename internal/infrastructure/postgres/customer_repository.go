package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo implementação Postgres de CustomerRepository.
type CustomerRepo struct {
	q Querier
}

func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

func (r *CustomerRepo) Create(ctx context.Context, c *entity.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO customers (id, tax_id, name, telephone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, q, c.ID, c.TaxID, c.Name, nullIfEmpty(c.Telephone), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: cliente com NIF %s já existe", domain.ErrDuplicate, c.TaxID)
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	const q = `
		SELECT id, tax_id, name, telephone, created_at, updated_at
		FROM customers WHERE id = $1`
	var c entity.Customer
	var telephone *string
	err := r.q.QueryRow(ctx, q, id).Scan(&c.ID, &c.TaxID, &c.Name, &telephone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.Telephone = derefStr(telephone)
	return &c, nil
}

func (r *CustomerRepo) List(ctx context.Context) ([]*entity.Customer, error) {
	const q = `
		SELECT id, tax_id, name, telephone, created_at, updated_at
		FROM customers ORDER BY name`
	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Customer
	for rows.Next() {
		var c entity.Customer
		var telephone *string
		if err := rows.Scan(&c.ID, &c.TaxID, &c.Name, &telephone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.Telephone = derefStr(telephone)
		list = append(list, &c)
	}
	return list, rows.Err()
}
