package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kriolpos/fiscal-api/internal/application/billing"
	"github.com/kriolpos/fiscal-api/internal/application/dto"
	"github.com/kriolpos/fiscal-api/internal/domain"
)

// DocumentHandler trata as rotas de documentos fiscais (protegido).
type DocumentHandler struct {
	drafts *billing.DraftUseCase
	signer *billing.SignUseCase
	verify *billing.VerifyUseCase
}

// NewDocumentHandler constrói o handler.
func NewDocumentHandler(drafts *billing.DraftUseCase, signer *billing.SignUseCase, verify *billing.VerifyUseCase) *DocumentHandler {
	return &DocumentHandler{drafts: drafts, signer: signer, verify: verify}
}

// Create cria um rascunho de documento fiscal.
// POST /api/documents
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	doc, err := h.drafts.CreateDraft(c.Context(), in)
	if err != nil {
		return documentError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GetByID obtém o detalhe completo de um documento.
// GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	doc, err := h.drafts.GetDocument(c.Context(), id)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// Update altera campos de um rascunho.
// PUT /api/documents/:id
func (h *DocumentHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	var in dto.UpdateDraftRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	doc, err := h.drafts.UpdateDraft(c.Context(), id, in)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// Delete apaga um rascunho. Documentos assinados nunca são apagados.
// DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	if err := h.drafts.DeleteDraft(c.Context(), id); err != nil {
		return documentError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Sign atribui número sequencial, calcula o hash encadeado e sela o documento.
// POST /api/documents/:id/sign
func (h *DocumentHandler) Sign(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	doc, err := h.signer.Sign(c.Context(), id)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// Verify recalcula o hash e confere a posição do documento na cadeia.
// GET /api/documents/:id/verify
func (h *DocumentHandler) Verify(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	res, err := h.verify.Verify(c.Context(), id)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(res)
}

// CreditNote cria uma nota de crédito referenciando um documento assinado.
// POST /api/documents/:id/credit-note (só gerente)
func (h *DocumentHandler) CreditNote(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	var in dto.CreditNoteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	doc, err := h.drafts.CreateCreditNote(c.Context(), id, in)
	if err != nil {
		return documentError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// documentError mapeia erros de domínio para códigos HTTP.
func documentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento não encontrado"})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrMalformedAmount):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadySigned):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_SIGNED", Message: err.Error()})
	case errors.Is(err, domain.ErrNotSigned):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_SIGNED", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidReference):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "INVALID_REFERENCE", Message: err.Error()})
	case errors.Is(err, domain.ErrChainIntegrity):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CHAIN_INTEGRITY", Message: err.Error()})
	case errors.Is(err, domain.ErrCounterContention):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "CONTENTION", Message: "contenção na numeração; tente novamente"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acesso negado"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
