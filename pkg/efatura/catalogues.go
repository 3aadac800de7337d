// Package efatura contém catálogos e validações alinhados ao regime de
// faturação eletrónica de Cabo Verde (SAF-T CV, Portaria n.º 47/2021 e
// Decreto-Lei n.º 79/2020, esquema CV_EFatura_Invoice v1.0).
package efatura

// CountryCode código de jurisdição usado no IUD e no ficheiro de auditoria.
const CountryCode = "CV"

// =============================================================================
// Códigos oficiais DNRE de tipo de documento (atributo DocumentTypeCode).
// =============================================================================

const (
	TypeCodeFatura       = "1" // FT - Fatura
	TypeCodeFaturaRecibo = "2" // FR - Fatura Recibo
	TypeCodeTalaoVenda   = "3" // TV - Talão de Venda
	TypeCodeNotaCredito  = "5" // NC - Nota de Crédito
)

// DocumentTypeCodes mapeia o tipo interno (FT, NC, TV, FR) para o código DNRE.
var DocumentTypeCodes = map[string]string{
	"FT": TypeCodeFatura,
	"FR": TypeCodeFaturaRecibo,
	"TV": TypeCodeTalaoVenda,
	"NC": TypeCodeNotaCredito,
}

// =============================================================================
// Códigos de motivo de nota de crédito (retificação de documentos).
// =============================================================================

const (
	ReasonReturnOfGoods     = "M01" // Devolução de mercadoria
	ReasonPricingError      = "M02" // Erro de preço ou cálculo
	ReasonDiscountGranted   = "M03" // Desconto concedido após emissão
	ReasonOrderCancelled    = "M04" // Anulação da venda
	ReasonTaxCorrection     = "M05" // Correção de imposto
	ReasonOtherRetification = "M06" // Outra retificação fundamentada
)

// ValidReasonCodes códigos de motivo aceites em notas de crédito.
var ValidReasonCodes = map[string]bool{
	ReasonReturnOfGoods:     true,
	ReasonPricingError:      true,
	ReasonDiscountGranted:   true,
	ReasonOrderCancelled:    true,
	ReasonTaxCorrection:     true,
	ReasonOtherRetification: true,
}

// =============================================================================
// Tabela de impostos (IVA CV) para linhas e TaxTable do SAF-T.
// =============================================================================

const (
	TaxCodeNormal  = "NOR" // IVA taxa normal (15%)
	TaxCodeReduced = "RED" // IVA taxa reduzida
	TaxCodeExempt  = "ISE" // Isento
)

// ValidTaxCodes códigos de imposto aceites nas linhas de documento.
var ValidTaxCodes = map[string]bool{
	TaxCodeNormal:  true,
	TaxCodeReduced: true,
	TaxCodeExempt:  true,
}

// TaxTypeIVA tipo de imposto único em uso (Imposto sobre o Valor Acrescentado).
const TaxTypeIVA = "IVA"
