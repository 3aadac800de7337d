package billing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/repository"
)

// memStore guarda documentos e contadores em memória com a mesma disciplina
// de atomicidade do Postgres: escritas condicionadas a is_signed e alocação
// de números serializada pelo mutex do runner.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]*entity.FiscalDocument
	lines    map[string][]*entity.DocumentLine
	counters map[string]int64 // chave "série|ano"
}

func newMemStore() *memStore {
	return &memStore{
		docs:     make(map[string]*entity.FiscalDocument),
		lines:    make(map[string][]*entity.DocumentLine),
		counters: make(map[string]int64),
	}
}

func (s *memStore) put(doc *entity.FiscalDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
}

func (s *memStore) get(id string) *entity.FiscalDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		cp := *d
		return &cp
	}
	return nil
}

func (s *memStore) snapshot() (map[string]*entity.FiscalDocument, map[string]int64) {
	docs := make(map[string]*entity.FiscalDocument, len(s.docs))
	for k, v := range s.docs {
		cp := *v
		docs[k] = &cp
	}
	counters := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	return docs, counters
}

// memDocRepo implementa DocumentRepository sobre o memStore. Assume que o
// chamador (runner ou teste) já serializou o acesso.
type memDocRepo struct {
	store *memStore

	// failMarkSigned injeta um erro na gravação final (teste de rollback).
	failMarkSigned error
}

var _ repository.DocumentRepository = (*memDocRepo)(nil)

func (r *memDocRepo) Create(_ context.Context, doc *entity.FiscalDocument, lines []*entity.DocumentLine) error {
	cp := *doc
	r.store.docs[doc.ID] = &cp
	r.store.lines[doc.ID] = lines
	return nil
}

func (r *memDocRepo) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	if d, ok := r.store.docs[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (r *memDocRepo) GetLines(_ context.Context, documentID string) ([]*entity.DocumentLine, error) {
	return r.store.lines[documentID], nil
}

func (r *memDocRepo) GetForSigning(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	return r.GetByID(ctx, id)
}

func (r *memDocRepo) LastSignedHash(_ context.Context, documentType string) (string, error) {
	var latest *entity.FiscalDocument
	for _, d := range r.store.docs {
		if !d.IsSigned || d.DocumentType != documentType {
			continue
		}
		if latest == nil || d.SignedAt.After(*latest.SignedAt) ||
			(d.SignedAt.Equal(*latest.SignedAt) && d.InvoiceNumber > latest.InvoiceNumber) {
			latest = d
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.Hash, nil
}

func (r *memDocRepo) MarkSigned(_ context.Context, doc *entity.FiscalDocument) error {
	if r.failMarkSigned != nil {
		return r.failMarkSigned
	}
	stored, ok := r.store.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.IsSigned {
		return domain.ErrAlreadySigned
	}
	cp := *doc
	r.store.docs[doc.ID] = &cp
	return nil
}

func (r *memDocRepo) UpdateDraft(_ context.Context, doc *entity.FiscalDocument) error {
	stored, ok := r.store.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.IsSigned {
		return domain.ErrAlreadySigned
	}
	stored.PaymentMethod = doc.PaymentMethod
	stored.CustomerTaxID = doc.CustomerTaxID
	stored.CustomerName = doc.CustomerName
	stored.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r *memDocRepo) DeleteDraft(_ context.Context, id string) error {
	stored, ok := r.store.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.IsSigned {
		return domain.ErrAlreadySigned
	}
	delete(r.store.docs, id)
	delete(r.store.lines, id)
	return nil
}

func (r *memDocRepo) ListSignedBetween(_ context.Context, start, end time.Time) ([]*entity.FiscalDocument, error) {
	var list []*entity.FiscalDocument
	for _, d := range r.store.docs {
		if d.IsSigned && !d.IssueDate.Before(start) && !d.IssueDate.After(end) {
			cp := *d
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].IssueDate.Equal(list[j].IssueDate) {
			return list[i].IssueDate.Before(list[j].IssueDate)
		}
		return list[i].InvoiceNumber < list[j].InvoiceNumber
	})
	return list, nil
}

func (r *memDocRepo) FindSignedByHash(_ context.Context, documentType, hash string) (*entity.FiscalDocument, error) {
	for _, d := range r.store.docs {
		if d.IsSigned && d.DocumentType == documentType && d.Hash == hash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocRepo) CountSignedBefore(_ context.Context, documentType string, signedAt time.Time, excludeID string) (int64, error) {
	var count int64
	for _, d := range r.store.docs {
		if d.IsSigned && d.DocumentType == documentType && d.ID != excludeID && d.SignedAt.Before(signedAt) {
			count++
		}
	}
	return count, nil
}

// memSeriesRepo aloca números sequenciais no memStore.
type memSeriesRepo struct {
	store *memStore

	// failuresLeft força ErrCounterContention nas primeiras N chamadas
	// (teste de retry). Um contador consumido antes da falha NÃO é reposto
	// aqui; o rollback do runner trata disso, como na transação real.
	failuresLeft int
}

var _ repository.SeriesRepository = (*memSeriesRepo)(nil)

func (r *memSeriesRepo) AllocateNext(_ context.Context, series string, year int) (int64, error) {
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return 0, fmt.Errorf("%w: simulada", domain.ErrCounterContention)
	}
	key := fmt.Sprintf("%s|%d", series, year)
	r.store.counters[key]++
	return r.store.counters[key], nil
}

// memTxRunner serializa cada assinatura com um mutex e repõe o estado inteiro
// do store quando fn falha, imitando o rollback da transação Postgres
// (incluindo o incremento do contador).
type memTxRunner struct {
	store   *memStore
	docRepo *memDocRepo
	series  *memSeriesRepo
}

func newMemTxRunner(store *memStore) *memTxRunner {
	return &memTxRunner{
		store:   store,
		docRepo: &memDocRepo{store: store},
		series:  &memSeriesRepo{store: store},
	}
}

func (t *memTxRunner) RunSigning(_ context.Context, fn func(
	docRepo repository.DocumentRepository,
	seriesRepo repository.SeriesRepository,
) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	docsBackup, countersBackup := t.store.snapshot()
	if err := fn(t.docRepo, t.series); err != nil {
		t.store.docs = docsBackup
		t.store.counters = countersBackup
		return err
	}
	return nil
}
