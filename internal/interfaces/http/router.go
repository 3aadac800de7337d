package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kriolpos/fiscal-api/internal/application/billing"
	"github.com/kriolpos/fiscal-api/internal/application/export"
	"github.com/kriolpos/fiscal-api/pkg/jwt"
)

// RouterDeps dependências para o router.
type RouterDeps struct {
	Drafts    *billing.DraftUseCase
	Signer    *billing.SignUseCase
	Verifier  *billing.VerifyUseCase
	SAFT      *export.SAFTUseCase
	JWTSecret string
}

// Router regista as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rotas protegidas (exigem Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	// Documentos fiscais (caixa e gerente)
	docs := api.Group("/documents")
	docHandler := NewDocumentHandler(deps.Drafts, deps.Signer, deps.Verifier)
	docs.Post("/", docHandler.Create)
	docs.Get("/:id", docHandler.GetByID)
	docs.Put("/:id", docHandler.Update)
	docs.Delete("/:id", docHandler.Delete)
	docs.Post("/:id/sign", docHandler.Sign)
	docs.Get("/:id/verify", docHandler.Verify)

	// Nota de crédito reverte um documento assinado (só gerente)
	docs.Post("/:id/credit-note", RequireRole(jwt.RoleGerente), docHandler.CreditNote)

	// Exportação SAF-T (só gerente)
	exportGroup := api.Group("/export", RequireRole(jwt.RoleGerente))
	exportHandler := NewExportHandler(deps.SAFT)
	exportGroup.Get("/saft", exportHandler.SAFT)
}
