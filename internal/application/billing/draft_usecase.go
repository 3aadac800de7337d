package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kriolpos/fiscal-api/internal/application/dto"
	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/fiscal"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
	"github.com/kriolpos/fiscal-api/pkg/efatura"
)

// DraftUseCase cria e gere rascunhos de documentos fiscais. O rascunho nasce
// do subsistema de pedidos com o snapshot monetário da venda; a assinatura é
// responsabilidade do SignUseCase.
type DraftUseCase struct {
	docRepo repository.DocumentRepository
	company entity.CompanyConfig

	now func() time.Time
}

// NewDraftUseCase constrói o caso de uso.
func NewDraftUseCase(docRepo repository.DocumentRepository, company entity.CompanyConfig) *DraftUseCase {
	return &DraftUseCase{docRepo: docRepo, company: company, now: time.Now}
}

// WithClock substitui o relógio (testes).
func (uc *DraftUseCase) WithClock(now func() time.Time) *DraftUseCase {
	uc.now = now
	return uc
}

// CreateDraft cria um rascunho FT, TV ou FR a partir de uma venda finalizada.
// Notas de crédito têm o seu próprio caminho (CreateCreditNote).
func (uc *DraftUseCase) CreateDraft(ctx context.Context, in dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	if !entity.ValidDocumentTypes[in.DocumentType] {
		return nil, fmt.Errorf("%w: tipo de documento desconhecido %q", domain.ErrInvalidInput, in.DocumentType)
	}
	if in.DocumentType == entity.DocTypeCreditNote {
		return nil, fmt.Errorf("%w: notas de crédito são emitidas via /credit-note sobre o documento original", domain.ErrInvalidInput)
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: documento deve ter pelo menos uma linha", domain.ErrInvalidInput)
	}

	var issueDate time.Time
	if in.IssueDate != "" {
		parsed, err := time.Parse("2006-01-02", in.IssueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: data de emissão deve ser YYYY-MM-DD", domain.ErrInvalidInput)
		}
		issueDate = parsed
	}

	customerTaxID, customerName, err := resolveCustomerSnapshot(in.CustomerTaxID, in.CustomerName)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	doc := &entity.FiscalDocument{
		ID:            uuid.New().String(),
		CompanyNIF:    uc.company.NIF,
		DocumentType:  in.DocumentType,
		IssueDate:     issueDate,
		NetTotal:      in.NetTotal,
		TaxTotal:      in.TaxTotal,
		GrandTotal:    in.GrandTotal,
		PaymentMethod: in.PaymentMethod,
		CustomerTaxID: customerTaxID,
		CustomerName:  customerName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := doc.ValidateAmounts(); err != nil {
		return nil, err
	}

	lines, err := buildLines(doc.ID, in.Lines)
	if err != nil {
		return nil, err
	}

	if err := uc.docRepo.Create(ctx, doc, lines); err != nil {
		return nil, err
	}
	return ToDocumentResponse(doc, lines), nil
}

// CreateCreditNote cria um rascunho NC que referencia um documento assinado.
// O original nunca é alterado; a NC é um documento novo com o seu próprio
// número, hash e IUD (atribuídos na assinatura).
func (uc *DraftUseCase) CreateCreditNote(ctx context.Context, originalID string, in dto.CreditNoteRequest) (*dto.DocumentResponse, error) {
	if originalID == "" {
		return nil, domain.ErrInvalidInput
	}
	original, err := uc.docRepo.GetByID(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, domain.ErrNotFound
	}

	grandTotal := original.GrandTotal
	netTotal := original.NetTotal
	taxTotal := original.TaxTotal
	if in.Amount != nil {
		// Correção parcial: repartir net/iva na proporção do original.
		grandTotal = *in.Amount
		if original.GrandTotal.IsPositive() {
			ratio := grandTotal.Div(original.GrandTotal)
			netTotal = original.NetTotal.Mul(ratio).Round(2)
			taxTotal = grandTotal.Sub(netTotal)
		}
	}

	now := uc.now()
	candidate := &entity.FiscalDocument{
		ID:                   uuid.New().String(),
		CompanyNIF:           uc.company.NIF,
		DocumentType:         entity.DocTypeCreditNote,
		NetTotal:             netTotal,
		TaxTotal:             taxTotal,
		GrandTotal:           grandTotal,
		PaymentMethod:        original.PaymentMethod,
		CustomerTaxID:        original.CustomerTaxID,
		CustomerName:         original.CustomerName,
		ReferencedDocumentID: original.ID,
		ReasonCode:           in.ReasonCode,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := fiscal.ValidateCreditNote(candidate, original, in.Amount); err != nil {
		return nil, err
	}

	// As linhas da NC espelham as do original (sempre positivas no SAF-T).
	originalLines, err := uc.docRepo.GetLines(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	lines := make([]*entity.DocumentLine, 0, len(originalLines))
	for _, l := range originalLines {
		lines = append(lines, &entity.DocumentLine{
			ID:          uuid.New().String(),
			DocumentID:  candidate.ID,
			LineNumber:  l.LineNumber,
			ProductCode: l.ProductCode,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxCode:     l.TaxCode,
			TaxRate:     l.TaxRate,
			LineTotal:   l.LineTotal,
		})
	}

	if err := uc.docRepo.Create(ctx, candidate, lines); err != nil {
		return nil, err
	}
	return ToDocumentResponse(candidate, lines), nil
}

// GetDocument devolve o documento com as linhas.
func (uc *DraftUseCase) GetDocument(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	doc, err := uc.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := uc.docRepo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToDocumentResponse(doc, lines), nil
}

// UpdateDraft altera campos permitidos de um rascunho. O repositório rejeita
// documentos assinados com domain.ErrAlreadySigned na própria escrita.
func (uc *DraftUseCase) UpdateDraft(ctx context.Context, id string, in dto.UpdateDraftRequest) (*dto.DocumentResponse, error) {
	doc, err := uc.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if err := doc.EnsureMutable(); err != nil {
		return nil, err
	}

	if in.PaymentMethod != "" {
		doc.PaymentMethod = in.PaymentMethod
	}
	if in.CustomerTaxID != "" || in.CustomerName != "" {
		taxID, name, err := resolveCustomerSnapshot(in.CustomerTaxID, in.CustomerName)
		if err != nil {
			return nil, err
		}
		doc.CustomerTaxID = taxID
		doc.CustomerName = name
	}
	doc.UpdatedAt = uc.now()

	if err := uc.docRepo.UpdateDraft(ctx, doc); err != nil {
		return nil, err
	}
	lines, err := uc.docRepo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToDocumentResponse(doc, lines), nil
}

// DeleteDraft apaga um rascunho. Documentos assinados nunca são apagados; o
// repositório devolve domain.ErrAlreadySigned.
func (uc *DraftUseCase) DeleteDraft(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}
	return uc.docRepo.DeleteDraft(ctx, id)
}

// resolveCustomerSnapshot normaliza o snapshot do cliente. Sem NIF, a venda é
// anónima e usa o Consumidor Final.
func resolveCustomerSnapshot(taxID, name string) (string, string, error) {
	if taxID == "" {
		return entity.ConsumidorFinalTaxID, entity.ConsumidorFinalName, nil
	}
	if err := efatura.ValidateNIF(taxID); err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if name == "" {
		name = entity.ConsumidorFinalName
	}
	return taxID, name, nil
}

func buildLines(documentID string, in []dto.DocumentLineInput) ([]*entity.DocumentLine, error) {
	lines := make([]*entity.DocumentLine, 0, len(in))
	for i, l := range in {
		if l.ProductCode == "" || l.Description == "" {
			return nil, fmt.Errorf("%w: linha %d sem produto ou descrição", domain.ErrInvalidInput, i+1)
		}
		if !l.Quantity.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("%w: linha %d com quantidade não positiva", domain.ErrMalformedAmount, i+1)
		}
		if l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: linha %d com preço negativo", domain.ErrMalformedAmount, i+1)
		}
		taxCode := l.TaxCode
		if taxCode == "" {
			taxCode = efatura.TaxCodeNormal
		}
		if !efatura.ValidTaxCodes[taxCode] {
			return nil, fmt.Errorf("%w: linha %d com código de imposto desconhecido %q", domain.ErrInvalidInput, i+1, l.TaxCode)
		}
		lines = append(lines, &entity.DocumentLine{
			ID:          uuid.New().String(),
			DocumentID:  documentID,
			LineNumber:  i + 1,
			ProductCode: l.ProductCode,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxCode:     taxCode,
			TaxRate:     l.TaxRate,
			LineTotal:   l.Quantity.Mul(l.UnitPrice).Round(2),
		})
	}
	return lines, nil
}

// ToDocumentResponse converte a entidade em DTO de resposta.
func ToDocumentResponse(doc *entity.FiscalDocument, lines []*entity.DocumentLine) *dto.DocumentResponse {
	resp := &dto.DocumentResponse{
		ID:                   doc.ID,
		DocumentType:         doc.DocumentType,
		InvoiceNumber:        doc.InvoiceNumber,
		NetTotal:             doc.NetTotal,
		TaxTotal:             doc.TaxTotal,
		GrandTotal:           doc.GrandTotal,
		PaymentMethod:        doc.PaymentMethod,
		CustomerTaxID:        doc.CustomerTaxID,
		CustomerName:         doc.CustomerName,
		Hash:                 doc.Hash,
		PreviousHash:         doc.PreviousHash,
		HashAlgorithm:        doc.HashAlgorithm,
		IUD:                  doc.IUD,
		ReferencedDocumentID: doc.ReferencedDocumentID,
		ReasonCode:           doc.ReasonCode,
		IsSigned:             doc.IsSigned,
	}
	if !doc.IssueDate.IsZero() {
		resp.IssueDate = doc.IssueDate.Format("2006-01-02")
	}
	if doc.SignedAt != nil {
		resp.SignedAt = doc.SignedAt.Format(time.RFC3339)
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, dto.DocumentLineResponse{
			LineNumber:  l.LineNumber,
			ProductCode: l.ProductCode,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxCode:     l.TaxCode,
			TaxRate:     l.TaxRate,
			LineTotal:   l.LineTotal,
		})
	}
	return resp
}
