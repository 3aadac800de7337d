package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kriolpos/fiscal-api/internal/domain"
)

// Tipos de documento fiscal (SAF-T CV).
const (
	DocTypeInvoice        = "FT" // Fatura
	DocTypeCreditNote     = "NC" // Nota de Crédito
	DocTypeSalesReceipt   = "TV" // Talão de Venda
	DocTypeInvoiceReceipt = "FR" // Fatura Recibo
)

// ValidDocumentTypes tipos aceites na criação de rascunhos.
var ValidDocumentTypes = map[string]bool{
	DocTypeInvoice:        true,
	DocTypeCreditNote:     true,
	DocTypeSalesReceipt:   true,
	DocTypeInvoiceReceipt: true,
}

// HashAlgorithmSHA256 identificador do algoritmo da cadeia de integridade.
const HashAlgorithmSHA256 = "SHA256"

// Métodos de pagamento aceites (vêm do subsistema de pedidos).
const (
	PaymentCash       = "CASH"
	PaymentCreditCard = "CREDIT_CARD"
	PaymentDebitCard  = "DEBIT_CARD"
	PaymentOnline     = "ONLINE"
)

// FiscalDocument é a entidade assinável: um documento por pagamento/fatura.
// Os montantes são um snapshot da venda na origem e nunca são recalculados
// depois da assinatura. Depois de IsSigned = true todos os campos ficam
// imutáveis; a correção faz-se por nota de crédito, nunca por alteração.
type FiscalDocument struct {
	ID            string
	CompanyNIF    string
	DocumentType  string // FT, NC, TV, FR
	InvoiceNumber string // "SÉRIE/ANO/NNNNN"; vazio até à assinatura
	IssueDate     time.Time

	// Snapshot monetário copiado da venda.
	NetTotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal

	PaymentMethod string

	// Snapshot do cliente no momento da assinatura. O registo do cliente pode
	// existir, mas o snapshot é a fonte autoritativa para auditoria.
	CustomerTaxID string
	CustomerName  string

	// Cadeia de integridade.
	Hash          string // SHA-256, 64 hex, definido uma única vez
	PreviousHash  string // hash do documento anterior do mesmo tipo; "" inicia a cadeia
	HashAlgorithm string

	IUD string // Identificador Único do Documento, exatamente 45 caracteres

	SoftwareCertNumber string

	// Ligação de correção: só notas de crédito referenciam outro documento.
	ReferencedDocumentID string
	ReasonCode           string

	IsSigned bool
	SignedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentLine linha de detalhe do documento (snapshot dos itens da venda).
type DocumentLine struct {
	ID          string
	DocumentID  string
	LineNumber  int
	ProductCode string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxCode     string // NOR, RED, ISE
	TaxRate     decimal.Decimal
	LineTotal   decimal.Decimal
}

// FormatInvoiceNumber devolve o número no formato SÉRIE/ANO/NNNNN.
// A unidade de unicidade é o valor numérico; o formato é apresentação.
func FormatInvoiceNumber(series string, year int, number int64) string {
	return fmt.Sprintf("%s/%d/%05d", series, year, number)
}

// EnsureMutable rejeita qualquer escrita sobre um documento já assinado.
func (d *FiscalDocument) EnsureMutable() error {
	if d.IsSigned {
		return domain.ErrAlreadySigned
	}
	return nil
}

// ValidateAmounts valida o snapshot monetário de um rascunho:
// totais não negativos e GrandTotal = NetTotal + TaxTotal.
func (d *FiscalDocument) ValidateAmounts() error {
	if d.GrandTotal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: total do documento deve ser positivo, recebido %s",
			domain.ErrMalformedAmount, d.GrandTotal.String())
	}
	if d.NetTotal.IsNegative() || d.TaxTotal.IsNegative() {
		return fmt.Errorf("%w: net e iva não podem ser negativos", domain.ErrMalformedAmount)
	}
	expected := d.NetTotal.Add(d.TaxTotal).Round(2)
	if !d.GrandTotal.Round(2).Equal(expected) {
		return fmt.Errorf("%w: grand total (%s) difere de net + iva (%s)",
			domain.ErrMalformedAmount, d.GrandTotal.Round(2).String(), expected.String())
	}
	return nil
}
