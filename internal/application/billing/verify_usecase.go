package billing

import (
	"context"
	"fmt"

	"github.com/kriolpos/fiscal-api/internal/application/dto"
	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/fiscal"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

// VerifyUseCase verifica a integridade de um documento assinado: recalcula o
// hash a partir dos campos armazenados e confirma o elo com o predecessor da
// cadeia (chain-of-custody, não só autoconsistência).
type VerifyUseCase struct {
	docRepo repository.DocumentRepository
	chain   *fiscal.HashChain
}

// NewVerifyUseCase constrói o caso de uso.
func NewVerifyUseCase(docRepo repository.DocumentRepository, chain *fiscal.HashChain) *VerifyUseCase {
	return &VerifyUseCase{docRepo: docRepo, chain: chain}
}

// Verify devolve o veredicto e o detalhe de cada verificação falhada.
// Leitura pura; nunca altera nem assina documentos.
func (uc *VerifyUseCase) Verify(ctx context.Context, documentID string) (*dto.VerifyResponse, error) {
	doc, err := uc.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if !doc.IsSigned {
		return nil, domain.ErrNotSigned
	}

	var details []string

	// 1) Autoconsistência: hash recalculado == hash armazenado.
	if err := uc.chain.VerifyDocument(doc); err != nil {
		details = append(details, err.Error())
	}

	// 2) Elo da cadeia: o previousHash tem de ser o hash de um documento
	// assinado do mesmo tipo, ou "" se este foi o primeiro da cadeia.
	if doc.PreviousHash == "" {
		count, err := uc.docRepo.CountSignedBefore(ctx, doc.DocumentType, *doc.SignedAt, doc.ID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			details = append(details, fmt.Sprintf(
				"documento %s declara-se primeiro da cadeia %s mas existem %d documentos assinados antes dele",
				doc.InvoiceNumber, doc.DocumentType, count))
		}
	} else {
		predecessor, err := uc.docRepo.FindSignedByHash(ctx, doc.DocumentType, doc.PreviousHash)
		if err != nil {
			return nil, err
		}
		if predecessor == nil {
			details = append(details, fmt.Sprintf(
				"previousHash de %s não corresponde a nenhum documento assinado do tipo %s",
				doc.InvoiceNumber, doc.DocumentType))
		} else if predecessor.SignedAt != nil && doc.SignedAt != nil && predecessor.SignedAt.After(*doc.SignedAt) {
			details = append(details, fmt.Sprintf(
				"predecessor %s foi assinado depois de %s",
				predecessor.InvoiceNumber, doc.InvoiceNumber))
		}
	}

	return &dto.VerifyResponse{
		DocumentID:    doc.ID,
		InvoiceNumber: doc.InvoiceNumber,
		Valid:         len(details) == 0,
		Details:       details,
	}, nil
}
