package domain

import "errors"

// Erros de domínio (sem dependências externas). Cada operação rejeitada
// identifica a invariante violada, nunca um erro genérico de validação.
var (
	ErrNotFound     = errors.New("recurso não encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("não autorizado")
	ErrForbidden    = errors.New("acesso negado")

	// ErrAlreadySigned: tentativa de re-assinar, alterar ou apagar um documento
	// já assinado. O caminho de correção é emitir uma nota de crédito.
	ErrAlreadySigned = errors.New("documento assinado não pode ser alterado; emita uma nota de crédito")

	// ErrNotSigned: operação que exige documento assinado (creditar, verificar
	// cadeia) aplicada a um rascunho.
	ErrNotSigned = errors.New("operação exige documento assinado")

	// ErrInvalidReference: violação das regras referenciais de nota de crédito.
	ErrInvalidReference = errors.New("referência de nota de crédito inválida")

	// ErrChainIntegrity: o hash recalculado não coincide com o armazenado ou o
	// elo com o documento anterior está quebrado.
	ErrChainIntegrity = errors.New("integridade da cadeia de hash violada")

	// ErrCounterContention: falha transitória ao serializar a alocação do
	// número sequencial. Retentável: o signer tenta de novo antes de propagar.
	ErrCounterContention = errors.New("contenção na alocação do número sequencial")

	// ErrMalformedAmount: montante não positivo ou fora do intervalo permitido.
	ErrMalformedAmount = errors.New("montante inválido")
)
