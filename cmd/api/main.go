package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kriolpos/fiscal-api/internal/application/billing"
	"github.com/kriolpos/fiscal-api/internal/application/export"
	"github.com/kriolpos/fiscal-api/internal/domain/entity"
	"github.com/kriolpos/fiscal-api/internal/domain/fiscal"
	"github.com/kriolpos/fiscal-api/internal/infrastructure/postgres"
	"github.com/kriolpos/fiscal-api/internal/infrastructure/saft"
	httpRouter "github.com/kriolpos/fiscal-api/internal/interfaces/http"
	"github.com/kriolpos/fiscal-api/pkg/config"
	"github.com/kriolpos/fiscal-api/pkg/efatura"
	"github.com/kriolpos/fiscal-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("a iniciar aplicação")

	// O NIF do emissor entra em todos os IUD; um valor inválido na
	// configuração produziria identificadores irrecuperáveis.
	if err := efatura.ValidateNIF(cfg.Fiscal.NIF); err != nil {
		log.Fatal().Err(err).Msg("NIF da empresa inválido na configuração")
	}

	company := entity.CompanyConfig{
		Name:               cfg.Fiscal.CompanyName,
		NIF:                cfg.Fiscal.NIF,
		StreetName:         cfg.Fiscal.StreetName,
		BuildingNumber:     cfg.Fiscal.BuildingNumber,
		City:               cfg.Fiscal.City,
		PostalCode:         cfg.Fiscal.PostalCode,
		CountryCode:        cfg.Fiscal.CountryCode,
		CurrencyCode:       cfg.Fiscal.CurrencyCode,
		InvoiceSeries:      cfg.Fiscal.InvoiceSeries,
		CreditNoteSeries:   cfg.Fiscal.CreditNoteSeries,
		ReceiptSeries:      cfg.Fiscal.ReceiptSeries,
		SoftwareCertNumber: cfg.Fiscal.SoftwareCertNumber,
		SoftwareVersion:    cfg.Fiscal.SoftwareVersion,
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("ligação ao PostgreSQL")
	}
	defer pool.Close()

	docRepo := postgres.NewDocumentRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	chain := fiscal.NewHashChain()
	iudGen := fiscal.NewIUDGenerator()

	// Registo de auditoria após o commit da assinatura.
	notifier := func(_ context.Context, doc *entity.FiscalDocument) {
		log.Info().
			Str("document_id", doc.ID).
			Str("invoice_number", doc.InvoiceNumber).
			Str("type", doc.DocumentType).
			Str("hash", doc.Hash).
			Msg("documento assinado")
	}

	draftUC := billing.NewDraftUseCase(docRepo, company)
	signUC := billing.NewSignUseCase(txRunner, company, chain, iudGen, notifier)
	verifyUC := billing.NewVerifyUseCase(docRepo, chain)
	saftUC := export.NewSAFTUseCase(docRepo, customerRepo, chain, saft.NewAuditFileBuilder(), company)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI em local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    cfg.App.Name,
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Drafts:    draftUC,
		Signer:    signUC,
		Verifier:  verifyUC,
		SAFT:      saftUC,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP terminado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de paragem recebido, a fechar servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("paragem do servidor")
	}

	log.Info().Msg("aplicação parada")
}
