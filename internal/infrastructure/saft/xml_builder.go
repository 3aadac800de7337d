// Package saft constrói o ficheiro de auditoria SAF-T CV (Standard Audit File
// for Tax, Portaria n.º 47/2021). Estrutura: Header, MasterFiles (clientes,
// produtos, tabela de impostos) e SourceDocuments/SalesInvoices com uma
// entrada por documento assinado, incluindo Hash e HashControl.
package saft

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/pkg/efatura"
)

// Namespace oficial do AuditFile SAF-T CV.
const (
	NsAuditFile      = "urn:OECD:Standard:AuditFile-CV:PT_1.04_01"
	AuditFileVersion = "1.04_01"
)

// DocumentWithLines documento assinado com as linhas e, para NC, o número do
// documento original referenciado.
type DocumentWithLines struct {
	Doc              *entity.FiscalDocument
	Lines            []*entity.DocumentLine
	ReferencedNumber string
}

// AuditFileContext dados para a construção do ficheiro.
type AuditFileContext struct {
	Company   entity.CompanyConfig
	StartDate time.Time
	EndDate   time.Time
	Created   time.Time
	Customers []*entity.Customer
	Documents []DocumentWithLines
}

// AuditFileBuilder constrói o XML do AuditFile.
type AuditFileBuilder struct{}

// NewAuditFileBuilder cria o serviço.
func NewAuditFileBuilder() *AuditFileBuilder {
	return &AuditFileBuilder{}
}

// Build gera os bytes XML (UTF-8, indentado) do AuditFile.
func (b *AuditFileBuilder) Build(ctx *AuditFileContext) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("saft: contexto é obrigatório")
	}
	if ctx.Company.NIF == "" {
		return nil, fmt.Errorf("saft: NIF da empresa é obrigatório no Header")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("AuditFile")
	root.CreateAttr("xmlns", NsAuditFile)

	b.writeHeader(root, ctx)

	master := root.CreateElement("MasterFiles")
	b.writeCustomers(master, ctx)
	b.writeProducts(master, ctx)
	b.writeTaxTable(master, ctx)

	source := root.CreateElement("SourceDocuments")
	b.writeSalesInvoices(source, ctx)

	doc.Indent(2)
	return doc.WriteToBytes()
}

func (b *AuditFileBuilder) writeHeader(root *etree.Element, ctx *AuditFileContext) {
	header := root.CreateElement("Header")
	addText(header, "AuditFileVersion", AuditFileVersion)
	addText(header, "CompanyID", ctx.Company.NIF)
	addText(header, "TaxRegistrationNumber", ctx.Company.NIF)
	// F = Faturação, C = Caixa
	addText(header, "TaxAccountingBasis", "F")
	addText(header, "CompanyName", ctx.Company.Name)

	addr := header.CreateElement("CompanyAddress")
	addText(addr, "StreetName", ctx.Company.StreetName)
	if ctx.Company.BuildingNumber != "" {
		addText(addr, "Number", ctx.Company.BuildingNumber)
	}
	addText(addr, "City", ctx.Company.City)
	addText(addr, "PostalCode", ctx.Company.PostalCode)
	addText(addr, "Country", ctx.Company.CountryCode)

	addText(header, "FiscalYear", fmt.Sprintf("%d", ctx.StartDate.Year()))
	addText(header, "StartDate", ctx.StartDate.Format("2006-01-02"))
	addText(header, "EndDate", ctx.EndDate.Format("2006-01-02"))
	addText(header, "CurrencyCode", ctx.Company.CurrencyCode)
	addText(header, "DateCreated", ctx.Created.Format("2006-01-02"))
	addText(header, "SoftwareCertificateNumber", ctx.Company.SoftwareCertNumber)
	addText(header, "ProductID", "fiscal-api/"+ctx.Company.SoftwareVersion)
	addText(header, "ProductCompanyTaxID", ctx.Company.NIF)
}

func (b *AuditFileBuilder) writeCustomers(master *etree.Element, ctx *AuditFileContext) {
	for _, c := range ctx.Customers {
		el := master.CreateElement("Customer")
		addText(el, "CustomerID", c.ID)
		addText(el, "AccountID", "CLI-"+c.ID)
		if c.TaxID != "" {
			addText(el, "CustomerTaxID", c.TaxID)
		}
		addText(el, "CompanyName", c.Name)
		tel := c.Telephone
		if tel == "" {
			tel = "N/A"
		}
		addText(el, "Telephone", tel)
		// 0 = Não, 1 = Sim
		addText(el, "SelfBillingIndicator", "0")
	}

	// Cliente sintético para vendas anónimas.
	final := master.CreateElement("Customer")
	addText(final, "CustomerID", entity.ConsumidorFinalID)
	addText(final, "AccountID", "CLI-"+entity.ConsumidorFinalID)
	addText(final, "CustomerTaxID", entity.ConsumidorFinalTaxID)
	addText(final, "CompanyName", entity.ConsumidorFinalName)
	addText(final, "Telephone", "N/A")
	addText(final, "SelfBillingIndicator", "0")
}

// writeProducts deriva a tabela de produtos das linhas exportadas: um registo
// por código de produto distinto.
func (b *AuditFileBuilder) writeProducts(master *etree.Element, ctx *AuditFileContext) {
	seen := map[string]bool{}
	for _, d := range ctx.Documents {
		for _, l := range d.Lines {
			if seen[l.ProductCode] {
				continue
			}
			seen[l.ProductCode] = true
			el := master.CreateElement("Product")
			// P = Produto, S = Serviço
			addText(el, "ProductType", "P")
			addText(el, "ProductCode", l.ProductCode)
			addText(el, "ProductDescription", l.Description)
			addText(el, "ProductNumberCode", l.ProductCode)
		}
	}
}

// writeTaxTable deriva a tabela de IVA dos códigos presentes nas linhas.
// Sem linhas, emite a taxa normal por omissão.
func (b *AuditFileBuilder) writeTaxTable(master *etree.Element, ctx *AuditFileContext) {
	type taxEntry struct {
		code string
		rate decimal.Decimal
	}
	var entries []taxEntry
	seen := map[string]bool{}
	for _, d := range ctx.Documents {
		for _, l := range d.Lines {
			if seen[l.TaxCode] {
				continue
			}
			seen[l.TaxCode] = true
			entries = append(entries, taxEntry{code: l.TaxCode, rate: l.TaxRate})
		}
	}
	if len(entries) == 0 {
		entries = append(entries, taxEntry{code: efatura.TaxCodeNormal, rate: decimal.NewFromInt(15)})
	}

	table := master.CreateElement("TaxTable")
	for _, e := range entries {
		el := table.CreateElement("TaxTableEntry")
		addText(el, "TaxType", efatura.TaxTypeIVA)
		addText(el, "TaxCountryRegion", ctx.Company.CountryCode)
		addText(el, "TaxCode", e.code)
		addText(el, "Description", taxDescription(e.code))
		addText(el, "TaxPercentage", e.rate.StringFixed(2))
	}
}

func (b *AuditFileBuilder) writeSalesInvoices(source *etree.Element, ctx *AuditFileContext) {
	sales := source.CreateElement("SalesInvoices")
	addText(sales, "NumberOfEntries", fmt.Sprintf("%d", len(ctx.Documents)))

	totalCredit := decimal.Zero
	for _, d := range ctx.Documents {
		totalCredit = totalCredit.Add(d.Doc.GrandTotal)
	}
	addText(sales, "TotalDebit", "0.00")
	addText(sales, "TotalCredit", totalCredit.StringFixed(2))

	for _, d := range ctx.Documents {
		b.writeInvoice(sales, d)
	}
}

func (b *AuditFileBuilder) writeInvoice(sales *etree.Element, d DocumentWithLines) {
	doc := d.Doc
	inv := sales.CreateElement("Invoice")
	addText(inv, "InvoiceNo", doc.InvoiceNumber)
	addText(inv, "DocumentType", doc.DocumentType)
	addText(inv, "InvoiceDate", doc.IssueDate.Format("2006-01-02"))
	addText(inv, "IUD", doc.IUD)

	customerID := doc.CustomerTaxID
	if customerID == "" || customerID == entity.ConsumidorFinalTaxID {
		customerID = entity.ConsumidorFinalID
	}
	addText(inv, "CustomerID", customerID)

	// NC: identificação do documento corrigido e do motivo.
	if doc.DocumentType == entity.DocTypeCreditNote {
		refs := inv.CreateElement("References")
		addText(refs, "Reference", d.ReferencedNumber)
		addText(refs, "Reason", doc.ReasonCode)
	}

	for _, l := range d.Lines {
		line := inv.CreateElement("Line")
		addText(line, "LineNumber", fmt.Sprintf("%d", l.LineNumber))
		addText(line, "ProductCode", l.ProductCode)
		addText(line, "ProductDescription", l.Description)
		addText(line, "Quantity", l.Quantity.String())
		addText(line, "UnitOfMeasure", "UN")
		addText(line, "UnitPrice", l.UnitPrice.StringFixed(2))
		addText(line, "TaxPointDate", doc.IssueDate.Format("2006-01-02"))
		addText(line, "TaxType", efatura.TaxTypeIVA)
		addText(line, "TaxCountryRegion", efatura.CountryCode)
		addText(line, "TaxCode", l.TaxCode)
		addText(line, "TaxPercentage", l.TaxRate.StringFixed(2))
		// Montantes sempre positivos no SAF-T.
		addText(line, "CreditAmount", l.LineTotal.Abs().StringFixed(2))
	}

	totals := inv.CreateElement("DocumentTotals")
	addText(totals, "TaxPayable", doc.TaxTotal.StringFixed(2))
	addText(totals, "NetTotal", doc.NetTotal.StringFixed(2))
	addText(totals, "GrossTotal", doc.GrandTotal.StringFixed(2))

	if doc.Hash != "" {
		addText(inv, "Hash", doc.Hash)
		addText(inv, "HashControl", doc.SoftwareCertNumber)
	}
}

func taxDescription(code string) string {
	switch code {
	case efatura.TaxCodeNormal:
		return "IVA Normal"
	case efatura.TaxCodeReduced:
		return "IVA Reduzido"
	case efatura.TaxCodeExempt:
		return "Isento"
	default:
		return code
	}
}

func addText(parent *etree.Element, tag, text string) {
	parent.CreateElement(tag).SetText(text)
}
