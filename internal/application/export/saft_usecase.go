// Package export gera o ficheiro de auditoria SAF-T CV para um intervalo de
// datas. A exportação é leitura pura: nunca assina nem altera documentos, e
// pode correr em paralelo com assinaturas (leituras consistentes por snapshot).
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/fiscal"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
	"github.com/kriolpos/fiscal-api/internal/infrastructure/saft"
)

// Result ficheiro exportado mais os avisos de integridade encontrados.
// Uma quebra na cadeia nunca é silenciada: o XML sai na mesma, mas cada
// problema fica registado em Warnings.
type Result struct {
	XML      []byte
	Warnings []string
}

// SAFTUseCase monta o AuditFile a partir do conjunto assinado.
type SAFTUseCase struct {
	docRepo      repository.DocumentRepository
	customerRepo repository.CustomerRepository
	chain        *fiscal.HashChain
	builder      *saft.AuditFileBuilder
	company      entity.CompanyConfig

	now func() time.Time
}

// NewSAFTUseCase constrói o caso de uso.
func NewSAFTUseCase(
	docRepo repository.DocumentRepository,
	customerRepo repository.CustomerRepository,
	chain *fiscal.HashChain,
	builder *saft.AuditFileBuilder,
	company entity.CompanyConfig,
) *SAFTUseCase {
	return &SAFTUseCase{
		docRepo:      docRepo,
		customerRepo: customerRepo,
		chain:        chain,
		builder:      builder,
		company:      company,
		now:          time.Now,
	}
}

// WithClock substitui o relógio (testes).
func (uc *SAFTUseCase) WithClock(now func() time.Time) *SAFTUseCase {
	uc.now = now
	return uc
}

// Export seleciona os documentos assinados com data de emissão no intervalo,
// ordenados por (data, número), reverifica a cadeia ao percorrê-los e
// serializa o AuditFile. Rascunhos nunca entram no ficheiro.
func (uc *SAFTUseCase) Export(ctx context.Context, start, end time.Time) (*Result, error) {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: intervalo de datas inválido", domain.ErrInvalidInput)
	}

	docs, err := uc.docRepo.ListSignedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var warnings []string
	withLines := make([]saft.DocumentWithLines, 0, len(docs))
	for _, doc := range docs {
		// Autoconsistência do hash.
		if err := uc.chain.VerifyDocument(doc); err != nil {
			warnings = append(warnings, err.Error())
		}
		// Elo com o predecessor no momento da assinatura.
		if doc.PreviousHash != "" {
			predecessor, err := uc.docRepo.FindSignedByHash(ctx, doc.DocumentType, doc.PreviousHash)
			if err != nil {
				return nil, err
			}
			if predecessor == nil {
				warnings = append(warnings, fmt.Sprintf(
					"%s: previousHash não corresponde a nenhum documento assinado do tipo %s",
					doc.InvoiceNumber, doc.DocumentType))
			}
		}

		lines, err := uc.docRepo.GetLines(ctx, doc.ID)
		if err != nil {
			return nil, err
		}

		referencedNumber := ""
		if doc.ReferencedDocumentID != "" {
			original, err := uc.docRepo.GetByID(ctx, doc.ReferencedDocumentID)
			if err != nil {
				return nil, err
			}
			if original != nil {
				referencedNumber = original.InvoiceNumber
			}
		}

		withLines = append(withLines, saft.DocumentWithLines{
			Doc:              doc,
			Lines:            lines,
			ReferencedNumber: referencedNumber,
		})
	}

	customers, err := uc.customerRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	xml, err := uc.builder.Build(&saft.AuditFileContext{
		Company:   uc.company,
		StartDate: start,
		EndDate:   end,
		Created:   uc.now(),
		Customers: customers,
		Documents: withLines,
	})
	if err != nil {
		return nil, err
	}

	return &Result{XML: xml, Warnings: warnings}, nil
}
