package dto

import (
	"github.com/shopspring/decimal"
)

// CreateDocumentRequest rascunho de documento fiscal criado pelo subsistema de
// pedidos a partir de uma venda finalizada. Os montantes são o snapshot da
// venda; este serviço nunca os recalcula.
type CreateDocumentRequest struct {
	DocumentType  string              `json:"document_type"` // FT, TV, FR (NC via /credit-note)
	IssueDate     string              `json:"issue_date"`    // YYYY-MM-DD; vazio = data da assinatura
	NetTotal      decimal.Decimal     `json:"net_total"`
	TaxTotal      decimal.Decimal     `json:"tax_total"`
	GrandTotal    decimal.Decimal     `json:"grand_total"`
	PaymentMethod string              `json:"payment_method"`
	CustomerTaxID string              `json:"customer_tax_id"` // vazio = Consumidor Final
	CustomerName  string              `json:"customer_name"`
	Lines         []DocumentLineInput `json:"lines"`
}

// DocumentLineInput linha da venda (produto, descrição, quantidade, preço).
type DocumentLineInput struct {
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxCode     string          `json:"tax_code"` // NOR, RED, ISE; vazio = NOR
	TaxRate     decimal.Decimal `json:"tax_rate"` // percentagem, ex: 15.00
}

// UpdateDraftRequest campos alteráveis enquanto o documento é rascunho.
type UpdateDraftRequest struct {
	PaymentMethod string `json:"payment_method"`
	CustomerTaxID string `json:"customer_tax_id"`
	CustomerName  string `json:"customer_name"`
}

// CreditNoteRequest emissão de nota de crédito sobre um documento assinado.
// Amount nulo credita o total do original; parcial tem de ser > 0 e <= total.
type CreditNoteRequest struct {
	ReasonCode string           `json:"reason_code"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
}

// DocumentResponse representação completa de um documento fiscal.
type DocumentResponse struct {
	ID                   string                 `json:"id"`
	DocumentType         string                 `json:"document_type"`
	InvoiceNumber        string                 `json:"invoice_number,omitempty"`
	IssueDate            string                 `json:"issue_date,omitempty"`
	NetTotal             decimal.Decimal        `json:"net_total"`
	TaxTotal             decimal.Decimal        `json:"tax_total"`
	GrandTotal           decimal.Decimal        `json:"grand_total"`
	PaymentMethod        string                 `json:"payment_method"`
	CustomerTaxID        string                 `json:"customer_tax_id"`
	CustomerName         string                 `json:"customer_name"`
	Hash                 string                 `json:"hash,omitempty"`
	PreviousHash         string                 `json:"previous_hash"`
	HashAlgorithm        string                 `json:"hash_algorithm,omitempty"`
	IUD                  string                 `json:"iud,omitempty"`
	ReferencedDocumentID string                 `json:"referenced_document_id,omitempty"`
	ReasonCode           string                 `json:"reason_code,omitempty"`
	IsSigned             bool                   `json:"is_signed"`
	SignedAt             string                 `json:"signed_at,omitempty"`
	Lines                []DocumentLineResponse `json:"lines,omitempty"`
}

// DocumentLineResponse linha de detalhe na resposta.
type DocumentLineResponse struct {
	LineNumber  int             `json:"line_number"`
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxCode     string          `json:"tax_code"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// VerifyResponse resultado da verificação de integridade de um documento.
type VerifyResponse struct {
	DocumentID    string   `json:"document_id"`
	InvoiceNumber string   `json:"invoice_number"`
	Valid         bool     `json:"valid"`
	Details       []string `json:"details,omitempty"`
}
