// Package fiscal: cadeia de integridade SHA-256, IUD e regras de nota de
// crédito do regime SAF-T CV / e-Fatura (Decreto-Lei n.º 79/2020).
// O hash de cada documento assinado incorpora o hash do anterior do mesmo
// tipo, tornando detetável qualquer adulteração retroativa.
package fiscal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
)

// HashChain calcula e verifica o hash de integridade dos documentos.
// Fórmula (concatenação UTF-8, sem separadores):
//
//	DataEmissão(YYYY-MM-DD) + NúmeroFatura + GrandTotal(2 decimais) + HashAnterior
//
// Algoritmo: SHA-256. O primeiro documento de uma cadeia usa hash anterior ""
// (convenção padrão de arranque de cadeia, não um valor em falta).
type HashChain struct{}

// NewHashChain cria o serviço.
func NewHashChain() *HashChain {
	return &HashChain{}
}

// Compute gera o hash hexadecimal (64 caracteres) a partir dos campos finais
// do documento. Determinístico: inputs iguais produzem sempre o mesmo hash.
func (s *HashChain) Compute(issueDate time.Time, invoiceNumber string, grandTotal decimal.Decimal, previousHash string) (string, error) {
	if invoiceNumber == "" {
		return "", fmt.Errorf("fiscal: número de fatura é obrigatório para o hash")
	}
	if issueDate.IsZero() {
		return "", fmt.Errorf("fiscal: data de emissão é obrigatória para o hash")
	}

	cadeia := issueDate.Format("2006-01-02") +
		invoiceNumber +
		formatAmount(grandTotal) +
		previousHash

	sum := sha256.Sum256([]byte(cadeia))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyDocument recalcula o hash a partir dos campos armazenados e compara
// com o guardado (autoconsistência). A verificação do elo com o predecessor
// é feita por quem conhece o conjunto assinado (signing.VerifyUseCase e o
// exportador), não aqui.
func (s *HashChain) VerifyDocument(doc *entity.FiscalDocument) error {
	if doc == nil {
		return fmt.Errorf("fiscal: documento nulo")
	}
	if !doc.IsSigned {
		return domain.ErrNotSigned
	}
	calculated, err := s.Compute(doc.IssueDate, doc.InvoiceNumber, doc.GrandTotal, doc.PreviousHash)
	if err != nil {
		return err
	}
	if calculated != doc.Hash {
		return fmt.Errorf("%w: hash recalculado (%s) difere do armazenado (%s) no documento %s",
			domain.ErrChainIntegrity, calculated, doc.Hash, doc.InvoiceNumber)
	}
	return nil
}

// formatAmount formata montantes para a cadeia: sem separador de milhares,
// ponto decimal, 2 decimais (ex: 1500.00).
func formatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
