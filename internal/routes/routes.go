package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	handler "ledger-reconciliation-backend/internal/handlers"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/actions"
	"ledger-reconciliation-backend/internal/services/audit"
	"ledger-reconciliation-backend/internal/services/exceptions"
	"ledger-reconciliation-backend/internal/services/matching"
	service "ledger-reconciliation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, ledger actions.LedgerClient, cfg matching.Config, log zerolog.Logger) {
	stagingRepo := repository.NewStagingRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	exceptionRepo := repository.NewExceptionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	fingerprintRepo := repository.NewFingerprintRepository(db)

	trail := audit.NewTrail(auditRepo, log)
	engine := matching.NewEngine(cfg, matchRepo, log)
	generator := exceptions.NewGenerator(exceptionRepo, stagingRepo, log)
	executor := actions.NewExecutor(exceptionRepo, fingerprintRepo, stagingRepo, ledger, trail, log)
	reconService := service.NewService(stagingRepo, matchRepo, engine, generator, trail, cfg, log)

	reconHandler := handler.NewReconciliationHandler(reconService, stagingRepo, matchRepo)
	exceptionHandler := handler.NewExceptionHandler(exceptionRepo, executor, trail)
	auditHandler := handler.NewAuditHandler(auditRepo, trail)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Reconciliation runs
	recon := api.Group("/reconciliation")
	recon.POST("/run", reconHandler.Run)
	recon.GET("/runs/:id", reconHandler.GetRun)
	recon.GET("/matches", reconHandler.ListMatches)

	// Staged-data contract endpoints used by the sync jobs
	staging := api.Group("/staging")
	staging.POST("/payouts", reconHandler.UpsertPayouts)
	staging.POST("/balance-entries", reconHandler.UpsertBalanceEntries)
	staging.POST("/bank-transactions", reconHandler.UpsertBankTransactions)
	staging.POST("/ledger-objects", reconHandler.UpsertLedgerObjects)

	// Exceptions
	exc := api.Group("/exceptions")
	exc.GET("", exceptionHandler.List)
	exc.POST("/:id/resolve", exceptionHandler.Resolve)
	exc.POST("/:id/ignore", exceptionHandler.Ignore)

	// Audit trail
	auditGroup := api.Group("/audit")
	auditGroup.GET("", auditHandler.Query)
	auditGroup.GET("/verify", auditHandler.Verify)
	auditGroup.GET("/export", auditHandler.Export)
}
