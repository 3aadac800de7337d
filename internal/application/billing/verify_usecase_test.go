package billing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kriolpos/fiscal-api/internal/application/billing"
	"github.com/kriolpos/fiscal-api/internal/domain"
	"github.com/kriolpos/fiscal-api/internal/domain/fiscal"
)

func newVerifyFixture() (*billing.VerifyUseCase, *billing.SignUseCase, *memStore) {
	store := newMemStore()
	runner := newMemTxRunner(store)
	verify := billing.NewVerifyUseCase(runner.docRepo, fiscal.NewHashChain())
	signer := billing.NewSignUseCase(runner, testCompany,
		fiscal.NewHashChain(), fiscal.NewIUDGenerator(), nil).WithClock(testClock)
	return verify, signer, store
}

func TestVerify_DocumentoIntacto(t *testing.T) {
	verify, signer, store := newVerifyFixture()
	store.put(draftInvoice("doc-1", 1250.00))
	_, err := signer.Sign(context.Background(), "doc-1")
	require.NoError(t, err)

	res, err := verify.Verify(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Details)
	assert.Equal(t, "FT A/2025/00001", res.InvoiceNumber)
}

func TestVerify_CadeiaDeDoisDocumentos(t *testing.T) {
	verify, signer, store := newVerifyFixture()
	store.put(draftInvoice("doc-1", 1250.00))
	store.put(draftInvoice("doc-2", 385.50))
	_, err := signer.Sign(context.Background(), "doc-1")
	require.NoError(t, err)
	_, err = signer.Sign(context.Background(), "doc-2")
	require.NoError(t, err)

	for _, id := range []string{"doc-1", "doc-2"} {
		res, err := verify.Verify(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, res.Valid, "%s: %v", id, res.Details)
	}
}

func TestVerify_MontanteAdulterado(t *testing.T) {
	verify, signer, store := newVerifyFixture()
	store.put(draftInvoice("doc-1", 1250.00))
	_, err := signer.Sign(context.Background(), "doc-1")
	require.NoError(t, err)

	// Adulteração direta na base de dados, contornando o ImmutabilityGuard.
	tampered := store.get("doc-1")
	tampered.GrandTotal = decimal.NewFromFloat(1.00)
	store.put(tampered)

	res, err := verify.Verify(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Details)
}

func TestVerify_EloQuebrado(t *testing.T) {
	verify, signer, store := newVerifyFixture()
	store.put(draftInvoice("doc-1", 1250.00))
	store.put(draftInvoice("doc-2", 385.50))
	_, err := signer.Sign(context.Background(), "doc-1")
	require.NoError(t, err)
	_, err = signer.Sign(context.Background(), "doc-2")
	require.NoError(t, err)

	// Apagar o predecessor da base simula uma cadeia com elo em falta.
	doomed := store.get("doc-1")
	doomed.IsSigned = false
	store.put(doomed)

	res, err := verify.Verify(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.False(t, res.Valid, "previousHash de doc-2 já não aponta para nenhum assinado")
}

func TestVerify_FalsoPrimeiroDaCadeia(t *testing.T) {
	verify, signer, store := newVerifyFixture()
	store.put(draftInvoice("doc-1", 1250.00))
	store.put(draftInvoice("doc-2", 385.50))
	_, err := signer.Sign(context.Background(), "doc-1")
	require.NoError(t, err)
	_, err = signer.Sign(context.Background(), "doc-2")
	require.NoError(t, err)

	// Reescrever doc-2 como se fosse o primeiro da cadeia. O hash volta a
	// bater certo (recalculado), mas a posição na cadeia denuncia a fraude.
	chain := fiscal.NewHashChain()
	forged := store.get("doc-2")
	forged.PreviousHash = ""
	forged.Hash, err = chain.Compute(forged.IssueDate, forged.InvoiceNumber, forged.GrandTotal, "")
	require.NoError(t, err)
	sa := forged.SignedAt.Add(1)
	forged.SignedAt = &sa
	store.put(forged)

	res, err := verify.Verify(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.False(t, res.Valid,
		"um documento com predecessores não pode declarar-se primeiro da cadeia")
}

func TestVerify_RascunhoNaoVerificavel(t *testing.T) {
	verify, _, store := newVerifyFixture()
	store.put(draftInvoice("doc-1", 100.00))

	_, err := verify.Verify(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotSigned)
}

func TestVerify_NaoEncontrado(t *testing.T) {
	verify, _, _ := newVerifyFixture()
	_, err := verify.Verify(context.Background(), "fantasma")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
