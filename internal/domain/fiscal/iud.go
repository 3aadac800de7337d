package fiscal

import (
	"fmt"
	"strings"
	"time"

	"github.com/kriolpos/fiscal-api/pkg/efatura"
)

// IUDLength tamanho fixo do Identificador Único do Documento.
const IUDLength = 45

// IUDGenerator deriva o IUD de 45 caracteres exigido pela plataforma e-Fatura.
// Composição: "CV" + código do tipo (1) + data AAAAMMDD (8) + NIF (9) +
// série sem espaços nem barras + número com 9 dígitos, truncado ou preenchido
// com '0' à direita até exatamente 45 caracteres.
// A unicidade é garantida pela constraint UNIQUE na coluna iud, não assumida.
type IUDGenerator struct{}

// NewIUDGenerator cria o gerador.
func NewIUDGenerator() *IUDGenerator {
	return &IUDGenerator{}
}

// Generate deriva o IUD de forma determinística a partir do tipo, data de
// emissão, NIF da empresa e número de fatura ("SÉRIE/ANO/NNNNN").
func (g *IUDGenerator) Generate(documentType string, issueDate time.Time, companyNIF, invoiceNumber string) (string, error) {
	if issueDate.IsZero() {
		return "", fmt.Errorf("fiscal: data de emissão é obrigatória para o IUD")
	}
	if companyNIF == "" {
		return "", fmt.Errorf("fiscal: NIF da empresa é obrigatório para o IUD")
	}
	if invoiceNumber == "" {
		return "", fmt.Errorf("fiscal: número de fatura é obrigatório para o IUD")
	}
	typeCode, ok := efatura.DocumentTypeCodes[documentType]
	if !ok {
		return "", fmt.Errorf("fiscal: tipo de documento desconhecido %q", documentType)
	}

	nif := zeroFillLeft(onlyDigits(companyNIF), 9)

	// Série e número a partir de "FT A/2025/00001" -> "FTA" e "000000001".
	serie, number := splitInvoiceNumber(invoiceNumber)

	iud := efatura.CountryCode + typeCode + issueDate.Format("20060102") + nif + serie + number
	if len(iud) > IUDLength {
		iud = iud[:IUDLength]
	}
	return iud + strings.Repeat("0", IUDLength-len(iud)), nil
}

// splitInvoiceNumber extrai a série compacta e o número com 9 dígitos.
// Entrada fora do formato SÉRIE/ANO/NNNNN degrada para a série inteira limpa
// e número "000000000" em vez de falhar; a constraint UNIQUE apanha colisões.
func splitInvoiceNumber(invoiceNumber string) (serie, number string) {
	clean := strings.ReplaceAll(invoiceNumber, " ", "")
	parts := strings.Split(clean, "/")
	if len(parts) >= 3 {
		return parts[0], zeroFillLeft(onlyDigits(parts[len(parts)-1]), 9)
	}
	return strings.ReplaceAll(clean, "/", ""), zeroFillLeft("", 9)
}

func zeroFillLeft(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return strings.Repeat("0", width-len(s)) + s
}

// onlyDigits deixa apenas dígitos 0-9.
func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
