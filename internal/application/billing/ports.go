package billing

import (
	"context"

	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

// SigningTxRunner executa a assinatura numa única transação com repositórios
// atados à tx. A alocação do número, a consulta do hash anterior e a gravação
// final acontecem dentro da mesma secção crítica; se alguma falhar, a
// transação inteira reverte, incluindo o incremento do contador.
type SigningTxRunner interface {
	RunSigning(ctx context.Context, fn func(
		docRepo repository.DocumentRepository,
		seriesRepo repository.SeriesRepository,
	) error) error
}

// SignedNotifier é invocado depois do commit da assinatura, para o subsistema
// de pedidos/pagamentos atualizar o seu próprio estado. Nunca é chamado dentro
// da transação.
type SignedNotifier func(ctx context.Context, doc *entity.FiscalDocument)
