package main

import (
	"log"
	"os"
	"time"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/logger"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/routes"
	"ledger-reconciliation-backend/internal/services/actions"
	"ledger-reconciliation-backend/internal/services/matching"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg := config.Load()
	zlog := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(zlog)

	db := config.InitDB()

	db.AutoMigrate(
		&models.StagedPayout{},
		&models.StagedBalanceEntry{},
		&models.StagedBankTransaction{},
		&models.StagedLedgerObject{},
		&models.Match{},
		&models.Exception{},
		&models.AuditEvent{},
		&models.ActionFingerprint{},
		&models.ReconciliationRun{},
	)

	ledger := actions.NewHTTPLedgerClient(
		os.Getenv("LEDGER_API_URL"),
		os.Getenv("LEDGER_API_TOKEN"),
	)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, ledger, matching.DefaultConfig(), zlog)

	zlog.Info().Str("port", cfg.Port).Msg("starting server")
	r.Run(":" + cfg.Port)
}
