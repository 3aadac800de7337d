package billing

import (
	"context"
	"errors"
	"time"

	"github.com/kriolpos/fiscal-api/internal/application/dto"
	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/fiscal"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

// maxSignAttempts tentativas internas quando a alocação do número sofre
// contenção transitória (serialização Postgres). Depois disto o erro sobe.
const maxSignAttempts = 3

// SignUseCase assina um documento fiscal: aloca o número sequencial, liga a
// cadeia de hash, gera o IUD e marca o documento imutável. Transição única
// Draft -> Signed; não existe reversão.
type SignUseCase struct {
	txRunner SigningTxRunner
	company  entity.CompanyConfig
	chain    *fiscal.HashChain
	iudGen   *fiscal.IUDGenerator
	notifier SignedNotifier

	// now injetável para testes determinísticos.
	now func() time.Time
}

// NewSignUseCase constrói o caso de uso. notifier pode ser nil.
func NewSignUseCase(
	txRunner SigningTxRunner,
	company entity.CompanyConfig,
	chain *fiscal.HashChain,
	iudGen *fiscal.IUDGenerator,
	notifier SignedNotifier,
) *SignUseCase {
	return &SignUseCase{
		txRunner: txRunner,
		company:  company,
		chain:    chain,
		iudGen:   iudGen,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock substitui o relógio (testes).
func (uc *SignUseCase) WithClock(now func() time.Time) *SignUseCase {
	uc.now = now
	return uc
}

// Sign executa a assinatura do documento. Não é idempotente: uma segunda
// chamada sobre um documento assinado devolve domain.ErrAlreadySigned sem
// alterar campo nenhum.
//
// Todos os passos correm numa única transação. Uma falha depois da alocação
// do número reverte também o contador, por isso nunca fica um número
// consumido sem documento assinado nem um estado parcial durável.
func (uc *SignUseCase) Sign(ctx context.Context, documentID string) (*dto.DocumentResponse, error) {
	if documentID == "" {
		return nil, domain.ErrInvalidInput
	}

	var signed *entity.FiscalDocument
	var err error
	for attempt := 1; attempt <= maxSignAttempts; attempt++ {
		signed, err = uc.signOnce(ctx, documentID)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrCounterContention) || attempt == maxSignAttempts {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	// Callback fora da transação: o subsistema de pedidos atualiza o estado
	// do pagamento; falhas dele não desfazem a assinatura.
	if uc.notifier != nil {
		uc.notifier(ctx, signed)
	}
	return ToDocumentResponse(signed, nil), nil
}

func (uc *SignUseCase) signOnce(ctx context.Context, documentID string) (*entity.FiscalDocument, error) {
	var signed *entity.FiscalDocument

	err := uc.txRunner.RunSigning(ctx, func(
		docRepo repository.DocumentRepository,
		seriesRepo repository.SeriesRepository,
	) error {
		// Lock exclusivo na linha do documento: o teste de "já assinado" e a
		// escrita são uma operação atómica, não ler-comparar-gravar.
		doc, err := docRepo.GetForSigning(ctx, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return domain.ErrNotFound
		}
		if doc.IsSigned {
			return domain.ErrAlreadySigned
		}
		if err := doc.ValidateAmounts(); err != nil {
			return err
		}

		// Notas de crédito: revalidar as regras referenciais no momento da
		// assinatura (o original pode ter mudado entre rascunho e assinatura).
		if doc.DocumentType == entity.DocTypeCreditNote || doc.ReferencedDocumentID != "" {
			var referenced *entity.FiscalDocument
			if doc.ReferencedDocumentID != "" {
				referenced, err = docRepo.GetByID(ctx, doc.ReferencedDocumentID)
				if err != nil {
					return err
				}
			}
			if err := fiscal.ValidateCreditNote(doc, referenced, nil); err != nil {
				return err
			}
		}

		now := uc.now()
		if doc.IssueDate.IsZero() {
			doc.IssueDate = now
		}

		// Número sequencial por (série, ano): lock de linha no contador. O
		// mesmo lock serializa a consulta do hash anterior logo a seguir, por
		// isso dois signers concorrentes nunca reclamam o mesmo predecessor.
		if doc.InvoiceNumber == "" {
			series := uc.company.SeriesFor(doc.DocumentType)
			number, err := seriesRepo.AllocateNext(ctx, series, doc.IssueDate.Year())
			if err != nil {
				return err
			}
			doc.InvoiceNumber = entity.FormatInvoiceNumber(series, doc.IssueDate.Year(), number)
		}

		previousHash, err := docRepo.LastSignedHash(ctx, doc.DocumentType)
		if err != nil {
			return err
		}
		doc.PreviousHash = previousHash

		doc.Hash, err = uc.chain.Compute(doc.IssueDate, doc.InvoiceNumber, doc.GrandTotal, previousHash)
		if err != nil {
			return err
		}
		doc.HashAlgorithm = entity.HashAlgorithmSHA256

		doc.IUD, err = uc.iudGen.Generate(doc.DocumentType, doc.IssueDate, uc.company.NIF, doc.InvoiceNumber)
		if err != nil {
			return err
		}

		doc.SoftwareCertNumber = uc.company.SoftwareCertNumber
		doc.IsSigned = true
		signedAt := now
		doc.SignedAt = &signedAt
		doc.UpdatedAt = now

		if err := docRepo.MarkSigned(ctx, doc); err != nil {
			return err
		}
		signed = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}
