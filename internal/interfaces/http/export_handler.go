package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kriolpos/fiscal-api/internal/application/dto"
	"github.com/kriolpos/fiscal-api/internal/application/export"
	"github.com/kriolpos/fiscal-api/internal/domain"
)

// ExportHandler trata a exportação do ficheiro SAF-T CV (só gerente).
type ExportHandler struct {
	uc *export.SAFTUseCase
}

// NewExportHandler constrói o handler.
func NewExportHandler(uc *export.SAFTUseCase) *ExportHandler {
	return &ExportHandler{uc: uc}
}

// SAFT exporta o AuditFile em XML para o intervalo pedido.
// Avisos de integridade seguem no header X-Integrity-Warnings; o ficheiro
// sai sempre, mesmo com cadeia degradada.
// GET /api/export/saft?start=2025-01-01&end=2025-01-31
func (h *ExportHandler) SAFT(c *fiber.Ctx) error {
	start, err := time.Parse("2006-01-02", c.Query("start"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "start inválido (formato 2006-01-02)"})
	}
	end, err := time.Parse("2006-01-02", c.Query("end"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "end inválido (formato 2006-01-02)"})
	}

	res, err := h.uc.Export(c.Context(), start, end)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	if len(res.Warnings) > 0 {
		c.Set("X-Integrity-Warnings", strings.Join(res.Warnings, "; "))
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="saft-cv.xml"`)
	return c.Send(res.XML)
}
