package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kriolpos/fiscal-api/internal/application/billing"
	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

// Ensure TxRunner implementa billing.SigningTxRunner.
var _ billing.SigningTxRunner = (*TxRunner)(nil)

// TxRunner executa callbacks dentro de uma transação PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constrói o runner com o pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunSigning inicia a transação de assinatura com repositórios atados à tx e
// faz Commit ou Rollback. A alocação do número, a consulta do hash anterior e
// a gravação do documento acontecem todas dentro desta fronteira: uma falha a
// meio reverte tudo, incluindo o incremento do contador, por isso nenhum
// estado parcial é jamais durável.
//
// Falhas de serialização no commit são mapeadas para ErrCounterContention,
// que o caso de uso retenta com limite de tentativas.
func (r *TxRunner) RunSigning(ctx context.Context, fn func(
	docRepo repository.DocumentRepository,
	seriesRepo repository.SeriesRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	docRepo := NewDocumentRepository(tx)
	seriesRepo := NewSeriesRepository(tx)

	if err := fn(docRepo, seriesRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", domain.ErrCounterContention, err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
