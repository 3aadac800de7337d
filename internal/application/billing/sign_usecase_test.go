package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kriolpos/fiscal-api/internal/application/billing"
	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/fiscal"
)

var testCompany = entity.CompanyConfig{
	Name:               "Mercearia Sal Lda",
	NIF:                "123456789",
	CountryCode:        "CV",
	CurrencyCode:       "CVE",
	InvoiceSeries:      "FT A",
	CreditNoteSeries:   "NC A",
	ReceiptSeries:      "TV A",
	SoftwareCertNumber: "CERT-0042",
	SoftwareVersion:    "1.0.0",
}

var testClock = func() time.Time {
	return time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
}

func newSignFixture(notifier billing.SignedNotifier) (*billing.SignUseCase, *memStore) {
	store := newMemStore()
	runner := newMemTxRunner(store)
	uc := billing.NewSignUseCase(runner, testCompany,
		fiscal.NewHashChain(), fiscal.NewIUDGenerator(), notifier).
		WithClock(testClock)
	return uc, store
}

func draftInvoice(id string, grandTotal float64) *entity.FiscalDocument {
	gt := decimal.NewFromFloat(grandTotal)
	net := gt.Div(decimal.NewFromFloat(1.15)).Round(2)
	return &entity.FiscalDocument{
		ID:            id,
		CompanyNIF:    testCompany.NIF,
		DocumentType:  entity.DocTypeInvoice,
		NetTotal:      net,
		TaxTotal:      gt.Sub(net),
		GrandTotal:    gt,
		PaymentMethod: entity.PaymentCash,
		CustomerTaxID: entity.ConsumidorFinalTaxID,
		CustomerName:  entity.ConsumidorFinalName,
		CreatedAt:     testClock(),
		UpdatedAt:     testClock(),
	}
}

func TestSign_PrimeiroDocumento(t *testing.T) {
	uc, store := newSignFixture(nil)
	store.put(draftInvoice("doc-1", 1250.00))

	res, err := uc.Sign(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, "FT A/2025/00001", res.InvoiceNumber)
	assert.Empty(t, res.PreviousHash, "primeiro da cadeia usa hash anterior vazio")
	assert.Len(t, res.Hash, 64)
	assert.Len(t, res.IUD, fiscal.IUDLength)
	assert.True(t, res.IsSigned)
	assert.Equal(t, entity.HashAlgorithmSHA256, res.HashAlgorithm)

	stored := store.get("doc-1")
	require.NotNil(t, stored)
	assert.Equal(t, "CERT-0042", stored.SoftwareCertNumber)
	require.NotNil(t, stored.SignedAt)
	assert.Equal(t, testClock(), *stored.SignedAt)
}

func TestSign_SegundoDocumentoEncadeia(t *testing.T) {
	uc, store := newSignFixture(nil)
	store.put(draftInvoice("doc-1", 1250.00))
	store.put(draftInvoice("doc-2", 385.50))

	first, err := uc.Sign(context.Background(), "doc-1")
	require.NoError(t, err)
	second, err := uc.Sign(context.Background(), "doc-2")
	require.NoError(t, err)

	assert.Equal(t, "FT A/2025/00002", second.InvoiceNumber)
	assert.Equal(t, first.Hash, second.PreviousHash,
		"o hash do segundo incorpora o hash do primeiro")
}

func TestSign_CadeiasIndependentesPorTipo(t *testing.T) {
	uc, store := newSignFixture(nil)
	store.put(draftInvoice("ft-1", 1000.00))
	tv := draftInvoice("tv-1", 10.00)
	tv.DocumentType = entity.DocTypeSalesReceipt
	store.put(tv)

	ftRes, err := uc.Sign(context.Background(), "ft-1")
	require.NoError(t, err)
	tvRes, err := uc.Sign(context.Background(), "tv-1")
	require.NoError(t, err)

	assert.Equal(t, "FT A/2025/00001", ftRes.InvoiceNumber)
	assert.Equal(t, "TV A/2025/00001", tvRes.InvoiceNumber, "série própria para talões")
	assert.Empty(t, tvRes.PreviousHash,
		"a cadeia TV arranca vazia mesmo com FTs já assinadas")
}

func TestSign_ReassinarDevolveErro(t *testing.T) {
	uc, store := newSignFixture(nil)
	store.put(draftInvoice("doc-1", 100.00))

	first, err := uc.Sign(context.Background(), "doc-1")
	require.NoError(t, err)

	_, err = uc.Sign(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrAlreadySigned)

	stored := store.get("doc-1")
	assert.Equal(t, first.Hash, stored.Hash, "nenhum campo muda na tentativa repetida")
	assert.Equal(t, first.InvoiceNumber, stored.InvoiceNumber)
}

func TestSign_NaoEncontrado(t *testing.T) {
	uc, _ := newSignFixture(nil)
	_, err := uc.Sign(context.Background(), "fantasma")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSign_IDVazio(t *testing.T) {
	uc, _ := newSignFixture(nil)
	_, err := uc.Sign(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSign_MontantesInvalidosNaoConsomemNumero(t *testing.T) {
	uc, store := newSignFixture(nil)

	bad := draftInvoice("doc-bad", 100.00)
	bad.TaxTotal = decimal.NewFromFloat(99.00) // net + tax != grand
	store.put(bad)
	store.put(draftInvoice("doc-ok", 200.00))

	_, err := uc.Sign(context.Background(), "doc-bad")
	require.ErrorIs(t, err, domain.ErrMalformedAmount)

	res, err := uc.Sign(context.Background(), "doc-ok")
	require.NoError(t, err)
	assert.Equal(t, "FT A/2025/00001", res.InvoiceNumber,
		"a falha de validação reverte o contador; o número 1 continua livre")
}

func TestSign_FalhaNaGravacaoReverteContador(t *testing.T) {
	store := newMemStore()
	runner := newMemTxRunner(store)
	runner.docRepo.failMarkSigned = errors.New("disco cheio")
	uc := billing.NewSignUseCase(runner, testCompany,
		fiscal.NewHashChain(), fiscal.NewIUDGenerator(), nil).WithClock(testClock)

	store.put(draftInvoice("doc-1", 100.00))
	_, err := uc.Sign(context.Background(), "doc-1")
	require.Error(t, err)

	runner.docRepo.failMarkSigned = nil
	res, err := uc.Sign(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "FT A/2025/00001", res.InvoiceNumber,
		"sem lacuna: o número alocado na transação falhada foi devolvido")

	stored := store.get("doc-1")
	assert.True(t, stored.IsSigned)
}

func TestSign_RetryEmContencao(t *testing.T) {
	store := newMemStore()
	runner := newMemTxRunner(store)
	runner.series.failuresLeft = 2 // as duas primeiras tentativas falham
	uc := billing.NewSignUseCase(runner, testCompany,
		fiscal.NewHashChain(), fiscal.NewIUDGenerator(), nil).WithClock(testClock)

	store.put(draftInvoice("doc-1", 100.00))
	res, err := uc.Sign(context.Background(), "doc-1")
	require.NoError(t, err, "contenção transitória resolve-se por retry interno")
	assert.Equal(t, "FT A/2025/00001", res.InvoiceNumber)
}

func TestSign_ContencaoPersistenteSobeAoChamador(t *testing.T) {
	store := newMemStore()
	runner := newMemTxRunner(store)
	runner.series.failuresLeft = 99
	uc := billing.NewSignUseCase(runner, testCompany,
		fiscal.NewHashChain(), fiscal.NewIUDGenerator(), nil).WithClock(testClock)

	store.put(draftInvoice("doc-1", 100.00))
	_, err := uc.Sign(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrCounterContention)
}

func TestSign_NotifierDepoisDoCommit(t *testing.T) {
	var notified []*entity.FiscalDocument
	notifier := func(_ context.Context, doc *entity.FiscalDocument) {
		notified = append(notified, doc)
	}
	uc, store := newSignFixture(notifier)
	store.put(draftInvoice("doc-1", 100.00))

	_, err := uc.Sign(context.Background(), "doc-1")
	require.NoError(t, err)

	require.Len(t, notified, 1)
	assert.Equal(t, "doc-1", notified[0].ID)
	assert.True(t, notified[0].IsSigned)
}

func TestSign_NotifierNaoCorreEmFalha(t *testing.T) {
	called := false
	notifier := func(context.Context, *entity.FiscalDocument) { called = true }
	uc, _ := newSignFixture(notifier)

	_, err := uc.Sign(context.Background(), "fantasma")
	require.Error(t, err)
	assert.False(t, called)
}

func TestSign_DataDeEmissaoPreenchidaNaAssinatura(t *testing.T) {
	uc, store := newSignFixture(nil)
	doc := draftInvoice("doc-1", 100.00)
	doc.IssueDate = time.Time{}
	store.put(doc)

	res, err := uc.Sign(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", res.IssueDate)
}

// Assinaturas concorrentes sobre a mesma série: cada documento recebe um
// número único e o conjunto final é exatamente {1..N}, sem lacunas nem
// duplicados. Os hashes formam uma cadeia única.
func TestSign_ConcorrenciaSemLacunas(t *testing.T) {
	const n = 50

	uc, store := newSignFixture(nil)
	for i := 0; i < n; i++ {
		store.put(draftInvoice(fmt.Sprintf("doc-%d", i), 100.00))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Sign(context.Background(), fmt.Sprintf("doc-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "doc-%d", i)
	}

	numbers := make(map[string]bool, n)
	hashes := make(map[string]string, n) // previousHash -> hash
	for i := 0; i < n; i++ {
		doc := store.get(fmt.Sprintf("doc-%d", i))
		require.True(t, doc.IsSigned)
		assert.False(t, numbers[doc.InvoiceNumber], "número duplicado %s", doc.InvoiceNumber)
		numbers[doc.InvoiceNumber] = true
		hashes[doc.PreviousHash] = doc.Hash
	}

	for i := 1; i <= n; i++ {
		expected := entity.FormatInvoiceNumber("FT A", 2025, int64(i))
		assert.True(t, numbers[expected], "falta o número %s", expected)
	}

	// A cadeia percorre-se do hash vazio até ao último sem ramificações.
	seen := 0
	for current := ""; ; {
		next, ok := hashes[current]
		if !ok {
			break
		}
		seen++
		current = next
	}
	assert.Equal(t, n, seen, "os hashes formam uma cadeia única de %d elos", n)
}
