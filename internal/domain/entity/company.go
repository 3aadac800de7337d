package entity

// CompanyConfig é a configuração fiscal da empresa emissora, injetada como
// valor no arranque (nunca uma tabela singleton mutável). Dados de referência
// só de leitura para o signer, o gerador de IUD e o exportador SAF-T.
type CompanyConfig struct {
	Name           string
	NIF            string // 9 dígitos
	StreetName     string
	BuildingNumber string
	City           string
	PostalCode     string
	CountryCode    string // "CV"
	CurrencyCode   string // "CVE"

	// Séries de numeração por tipo de documento.
	InvoiceSeries    string // ex: "FT A" (FT e FR partilham a série)
	CreditNoteSeries string // ex: "NC A"
	ReceiptSeries    string // ex: "TV A"

	SoftwareCertNumber string
	SoftwareVersion    string
}

// SeriesFor devolve a série de numeração para o tipo de documento.
// FR partilha a série das faturas, como no regime SAF-T CV.
func (c CompanyConfig) SeriesFor(documentType string) string {
	switch documentType {
	case DocTypeCreditNote:
		return c.CreditNoteSeries
	case DocTypeSalesReceipt:
		return c.ReceiptSeries
	default:
		return c.InvoiceSeries
	}
}
