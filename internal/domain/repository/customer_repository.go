package repository

import (
	"context"

	"github.com/kriolpos/fiscal-api/internal/domain/entity"
)

// CustomerRepository registo mestre de clientes para o MasterFiles do SAF-T.
type CustomerRepository interface {
	Create(ctx context.Context, c *entity.Customer) error
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	List(ctx context.Context) ([]*entity.Customer, error)
}
