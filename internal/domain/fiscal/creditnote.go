package fiscal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/pkg/efatura"
)

// ValidateCreditNote aplica as regras referenciais dos documentos de correção.
// Cada regra é verificada de forma independente e devolve o seu próprio erro:
//
//   - NC exige documento referenciado e código de motivo;
//   - só se credita um documento assinado;
//   - nunca se credita outra nota de crédito (sem cadeias de correção);
//   - documentos que não são NC não referenciam nada;
//   - correção parcial, se indicada, tem de ser > 0 e <= total do original.
//
// referenced é o documento apontado por candidate.ReferencedDocumentID, ou nil.
// partialAmount é opcional (nil = crédito pelo total).
func ValidateCreditNote(candidate *entity.FiscalDocument, referenced *entity.FiscalDocument, partialAmount *decimal.Decimal) error {
	if candidate == nil {
		return fmt.Errorf("%w: documento nulo", domain.ErrInvalidInput)
	}

	if candidate.DocumentType != entity.DocTypeCreditNote {
		if candidate.ReferencedDocumentID != "" {
			return fmt.Errorf("%w: só notas de crédito podem referenciar um documento", domain.ErrInvalidReference)
		}
		return nil
	}

	if candidate.ReferencedDocumentID == "" || referenced == nil {
		return fmt.Errorf("%w: nota de crédito deve referenciar o documento original", domain.ErrInvalidReference)
	}
	if candidate.ReasonCode == "" {
		return fmt.Errorf("%w: nota de crédito deve ter código de motivo", domain.ErrInvalidReference)
	}
	if !efatura.ValidReasonCodes[candidate.ReasonCode] {
		return fmt.Errorf("%w: código de motivo desconhecido %q", domain.ErrInvalidReference, candidate.ReasonCode)
	}
	if referenced.ID == candidate.ID {
		return fmt.Errorf("%w: nota de crédito não pode referenciar-se a si própria", domain.ErrInvalidReference)
	}
	if !referenced.IsSigned {
		return fmt.Errorf("%w: só é possível creditar documentos assinados", domain.ErrNotSigned)
	}
	if referenced.DocumentType == entity.DocTypeCreditNote {
		return fmt.Errorf("%w: não é possível creditar uma nota de crédito", domain.ErrInvalidReference)
	}

	if partialAmount != nil {
		if partialAmount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: montante de correção parcial deve ser positivo", domain.ErrMalformedAmount)
		}
		if partialAmount.GreaterThan(referenced.GrandTotal) {
			return fmt.Errorf("%w: montante de correção (%s) excede o total do original (%s)",
				domain.ErrMalformedAmount, partialAmount.String(), referenced.GrandTotal.String())
		}
	}
	return nil
}
