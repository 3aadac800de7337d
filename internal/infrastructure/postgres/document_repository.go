package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementação de DocumentRepository (usável com pool ou tx).
//
// O ImmutabilityGuard vive nas próprias queries: toda a escrita sobre um
// documento inclui "AND is_signed = FALSE" e verifica as linhas afetadas.
// A verificação e a gravação são um único statement atómico.
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `
	id, company_nif, document_type, invoice_number, issue_date,
	net_total, tax_total, grand_total, payment_method,
	customer_tax_id, customer_name,
	hash, previous_hash, hash_algorithm, iud, software_cert_number,
	referenced_document_id, reason_code,
	is_signed, signed_at, created_at, updated_at`

// Create persiste um rascunho e as suas linhas.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument, lines []*entity.DocumentLine) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO fiscal_documents
			(id, company_nif, document_type, invoice_number, issue_date,
			 net_total, tax_total, grand_total, payment_method,
			 customer_tax_id, customer_name,
			 referenced_document_id, reason_code,
			 is_signed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, $14, $15)`
	var issueDate *time.Time
	if !doc.IssueDate.IsZero() {
		issueDate = &doc.IssueDate
	}
	_, err := r.q.Exec(ctx, q,
		doc.ID, doc.CompanyNIF, doc.DocumentType, nullIfEmpty(doc.InvoiceNumber), issueDate,
		doc.NetTotal, doc.TaxTotal, doc.GrandTotal, doc.PaymentMethod,
		nullIfEmpty(doc.CustomerTaxID), nullIfEmpty(doc.CustomerName),
		nullIfEmpty(doc.ReferencedDocumentID), nullIfEmpty(doc.ReasonCode),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: documento já existe", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert fiscal document: %w", err)
	}
	for _, l := range lines {
		if err := r.createLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *DocumentRepo) createLine(ctx context.Context, l *entity.DocumentLine) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO document_lines
			(id, document_id, line_number, product_code, description,
			 quantity, unit_price, tax_code, tax_rate, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, q,
		l.ID, l.DocumentID, l.LineNumber, l.ProductCode, l.Description,
		l.Quantity, l.UnitPrice, l.TaxCode, l.TaxRate, l.LineTotal,
	)
	if err != nil {
		return fmt.Errorf("insert document line: %w", err)
	}
	return nil
}

// GetByID obtém um documento por ID. nil, nil se não existir.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE id = $1`
	doc, err := scanDocument(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal document: %w", err)
	}
	return doc, nil
}

// GetForSigning lê o documento com lock exclusivo de linha. O teste de
// "já assinado" e a escrita posterior ficam na mesma secção crítica.
func (r *DocumentRepo) GetForSigning(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	q := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE id = $1 FOR UPDATE`
	doc, err := scanDocument(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isSerializationFailure(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrCounterContention, err)
		}
		return nil, fmt.Errorf("lock fiscal document: %w", err)
	}
	return doc, nil
}

// GetLines obtém as linhas do documento ordenadas.
func (r *DocumentRepo) GetLines(ctx context.Context, documentID string) ([]*entity.DocumentLine, error) {
	const q = `
		SELECT id, document_id, line_number, product_code, description,
		       quantity, unit_price, tax_code, tax_rate, line_total
		FROM document_lines WHERE document_id = $1 ORDER BY line_number`
	rows, err := r.q.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.DocumentLine
	for rows.Next() {
		var l entity.DocumentLine
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.LineNumber, &l.ProductCode, &l.Description,
			&l.Quantity, &l.UnitPrice, &l.TaxCode, &l.TaxRate, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan document line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// LastSignedHash devolve o hash do documento assinado mais recente do tipo.
// "" se a cadeia ainda não começou. Chamar dentro da transação de assinatura.
func (r *DocumentRepo) LastSignedHash(ctx context.Context, documentType string) (string, error) {
	const q = `
		SELECT hash FROM fiscal_documents
		WHERE document_type = $1 AND is_signed = TRUE AND hash IS NOT NULL
		ORDER BY signed_at DESC, invoice_number DESC
		LIMIT 1`
	var hash string
	err := r.q.QueryRow(ctx, q, documentType).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil // primeira da cadeia
		}
		return "", fmt.Errorf("last signed hash: %w", err)
	}
	return hash, nil
}

// MarkSigned grava atomicamente todos os campos fiscais da assinatura.
// O predicado is_signed = FALSE é o guard: se outra transação assinou
// entretanto, nenhuma linha é afetada e devolvemos ErrAlreadySigned.
func (r *DocumentRepo) MarkSigned(ctx context.Context, doc *entity.FiscalDocument) error {
	const q = `
		UPDATE fiscal_documents
		SET invoice_number       = $2,
		    issue_date           = $3,
		    hash                 = $4,
		    previous_hash        = $5,
		    hash_algorithm       = $6,
		    iud                  = $7,
		    software_cert_number = $8,
		    is_signed            = TRUE,
		    signed_at            = $9,
		    updated_at           = $10
		WHERE id = $1 AND is_signed = FALSE`
	tag, err := r.q.Exec(ctx, q,
		doc.ID, doc.InvoiceNumber, doc.IssueDate,
		doc.Hash, doc.PreviousHash, doc.HashAlgorithm,
		doc.IUD, doc.SoftwareCertNumber,
		doc.SignedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Número ou IUD duplicado: outra transação ganhou a corrida.
			return fmt.Errorf("%w: %v", domain.ErrCounterContention, err)
		}
		return fmt.Errorf("mark signed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadySigned
	}
	return nil
}

// UpdateDraft atualiza campos de rascunho. Rejeita documentos assinados.
func (r *DocumentRepo) UpdateDraft(ctx context.Context, doc *entity.FiscalDocument) error {
	const q = `
		UPDATE fiscal_documents
		SET payment_method  = $2,
		    customer_tax_id = $3,
		    customer_name   = $4,
		    updated_at      = $5
		WHERE id = $1 AND is_signed = FALSE`
	tag, err := r.q.Exec(ctx, q,
		doc.ID, doc.PaymentMethod,
		nullIfEmpty(doc.CustomerTaxID), nullIfEmpty(doc.CustomerName),
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.draftWriteRejected(ctx, doc.ID)
	}
	return nil
}

// DeleteDraft apaga um rascunho e as suas linhas. Assinados nunca se apagam.
func (r *DocumentRepo) DeleteDraft(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1
		AND EXISTS (SELECT 1 FROM fiscal_documents d WHERE d.id = $1 AND d.is_signed = FALSE)`, id); err != nil {
		return fmt.Errorf("delete draft lines: %w", err)
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM fiscal_documents WHERE id = $1 AND is_signed = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.draftWriteRejected(ctx, id)
	}
	return nil
}

// draftWriteRejected distingue "não existe" de "já assinado" depois de uma
// escrita condicionada não afetar linhas.
func (r *DocumentRepo) draftWriteRejected(ctx context.Context, id string) error {
	doc, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadySigned
}

// ListSignedBetween devolve os assinados no intervalo, ordenados por
// (issue_date, invoice_number). Leitura pura para a exportação.
func (r *DocumentRepo) ListSignedBetween(ctx context.Context, start, end time.Time) ([]*entity.FiscalDocument, error) {
	q := `SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE is_signed = TRUE AND issue_date >= $1 AND issue_date <= $2
		ORDER BY issue_date, invoice_number`
	rows, err := r.q.Query(ctx, q, start, end)
	if err != nil {
		return nil, fmt.Errorf("list signed documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

// FindSignedByHash localiza o documento assinado do tipo com o hash dado.
func (r *DocumentRepo) FindSignedByHash(ctx context.Context, documentType, hash string) (*entity.FiscalDocument, error) {
	q := `SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE document_type = $1 AND hash = $2 AND is_signed = TRUE`
	doc, err := scanDocument(r.q.QueryRow(ctx, q, documentType, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find signed by hash: %w", err)
	}
	return doc, nil
}

// CountSignedBefore conta os assinados do tipo antes do instante dado.
func (r *DocumentRepo) CountSignedBefore(ctx context.Context, documentType string, signedAt time.Time, excludeID string) (int64, error) {
	const q = `
		SELECT count(*) FROM fiscal_documents
		WHERE document_type = $1 AND is_signed = TRUE AND signed_at < $2 AND id <> $3`
	var count int64
	if err := r.q.QueryRow(ctx, q, documentType, signedAt, excludeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count signed before: %w", err)
	}
	return count, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

// pgxScanner abstrai pgx.Row e pgx.Rows para reutilizar scanDocument.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row pgxScanner) (*entity.FiscalDocument, error) {
	var doc entity.FiscalDocument
	var invoiceNumber, customerTaxID, customerName *string
	var hash, previousHash, hashAlgorithm, iud, softwareCert *string
	var referencedID, reasonCode *string
	var issueDate, signedAt *time.Time
	err := row.Scan(
		&doc.ID, &doc.CompanyNIF, &doc.DocumentType, &invoiceNumber, &issueDate,
		&doc.NetTotal, &doc.TaxTotal, &doc.GrandTotal, &doc.PaymentMethod,
		&customerTaxID, &customerName,
		&hash, &previousHash, &hashAlgorithm, &iud, &softwareCert,
		&referencedID, &reasonCode,
		&doc.IsSigned, &signedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.InvoiceNumber = derefStr(invoiceNumber)
	doc.CustomerTaxID = derefStr(customerTaxID)
	doc.CustomerName = derefStr(customerName)
	doc.Hash = derefStr(hash)
	doc.PreviousHash = derefStr(previousHash)
	doc.HashAlgorithm = derefStr(hashAlgorithm)
	doc.IUD = derefStr(iud)
	doc.SoftwareCertNumber = derefStr(softwareCert)
	doc.ReferencedDocumentID = derefStr(referencedID)
	doc.ReasonCode = derefStr(reasonCode)
	if issueDate != nil {
		doc.IssueDate = *issueDate
	}
	doc.SignedAt = signedAt
	return &doc, nil
}
