package repository

import (
	"context"
	"time"

	"github.com/kriolpos/fiscal-api/internal/domain/entity"
)

// DocumentRepository persistência dos documentos fiscais e das suas linhas.
//
// As implementações devem garantir o ImmutabilityGuard na própria escrita:
// UpdateDraft, MarkSigned e DeleteDraft só tocam linhas com is_signed = FALSE
// e devolvem domain.ErrAlreadySigned quando nenhuma linha é afetada por o
// documento já estar assinado. A verificação e a escrita são uma operação
// atómica, nunca ler-comparar-gravar em passos separados.
type DocumentRepository interface {
	// Create persiste um rascunho com as suas linhas.
	Create(ctx context.Context, doc *entity.FiscalDocument, lines []*entity.DocumentLine) error

	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	GetLines(ctx context.Context, documentID string) ([]*entity.DocumentLine, error)

	// GetForSigning lê o documento com lock exclusivo de linha (FOR UPDATE).
	// Só tem sentido dentro da transação de assinatura.
	GetForSigning(ctx context.Context, id string) (*entity.FiscalDocument, error)

	// LastSignedHash devolve o hash do documento assinado mais recente do tipo
	// dado, ou "" se a cadeia ainda não começou. Deve ser chamado dentro da
	// mesma transação que aloca o número, para que dois signers concorrentes
	// nunca calculem o mesmo predecessor.
	LastSignedHash(ctx context.Context, documentType string) (string, error)

	// MarkSigned grava atomicamente todos os campos fiscais da assinatura.
	// Falha com domain.ErrAlreadySigned se o documento já estava assinado.
	MarkSigned(ctx context.Context, doc *entity.FiscalDocument) error

	// UpdateDraft atualiza campos de um rascunho. Rejeita documentos assinados.
	UpdateDraft(ctx context.Context, doc *entity.FiscalDocument) error

	// DeleteDraft apaga um rascunho. Documentos assinados nunca são apagados.
	DeleteDraft(ctx context.Context, id string) error

	// ListSignedBetween devolve os documentos assinados com data de emissão no
	// intervalo, ordenados por (issue_date, invoice_number). Leitura pura.
	ListSignedBetween(ctx context.Context, start, end time.Time) ([]*entity.FiscalDocument, error)

	// FindSignedByHash localiza o documento assinado do tipo dado com o hash
	// indicado (verificação do elo da cadeia). nil, nil se não existir.
	FindSignedByHash(ctx context.Context, documentType, hash string) (*entity.FiscalDocument, error)

	// CountSignedBefore conta os documentos do tipo assinados antes do instante
	// dado, excluindo o próprio id. Zero significa primeiro da cadeia.
	CountSignedBefore(ctx context.Context, documentType string, signedAt time.Time, excludeID string) (int64, error)
}
