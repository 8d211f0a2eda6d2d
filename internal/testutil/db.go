package testutil

import (
	"testing"

	"ledger-reconciliation-backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a fresh in-memory database with the full schema migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.StagedPayout{},
		&models.StagedBalanceEntry{},
		&models.StagedBankTransaction{},
		&models.StagedLedgerObject{},
		&models.Match{},
		&models.Exception{},
		&models.AuditEvent{},
		&models.ActionFingerprint{},
		&models.ReconciliationRun{},
	))

	return db
}
