package postgres

import (
	"context"
	"fmt"

	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

var _ repository.SeriesRepository = (*SeriesRepo)(nil)

// SeriesRepo implementa SeriesRepository sobre PostgreSQL. Deve ser usado com
// a transação de assinatura (Querier da tx), nunca com o pool diretamente.
type SeriesRepo struct {
	q Querier
}

// NewSeriesRepository constrói o adaptador. Passar a tx da assinatura.
func NewSeriesRepository(q Querier) *SeriesRepo {
	return &SeriesRepo{q: q}
}

// AllocateNext aloca o próximo número da (série, ano) num único statement:
// o UPSERT adquire lock exclusivo na linha do contador, por isso chamadores
// concorrentes ficam serializados e nunca recebem números duplicados nem com
// saltos. O lock mantém-se até ao fim da transação, serializando também a
// consulta do hash anterior feita a seguir pelo signer.
func (r *SeriesRepo) AllocateNext(ctx context.Context, series string, year int) (int64, error) {
	if series == "" || year <= 0 {
		return 0, fmt.Errorf("%w: série e ano são obrigatórios", domain.ErrInvalidInput)
	}
	const q = `
		INSERT INTO series_counters (series, year, last_number, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (series, year)
		DO UPDATE SET last_number = series_counters.last_number + 1, updated_at = now()
		RETURNING last_number`
	var number int64
	if err := r.q.QueryRow(ctx, q, series, year).Scan(&number); err != nil {
		if isSerializationFailure(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrCounterContention, err)
		}
		return 0, fmt.Errorf("allocate series number: %w", err)
	}
	return number, nil
}
