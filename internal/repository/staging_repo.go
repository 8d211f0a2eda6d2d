package repository

import (
	"time"

	"ledger-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StagingRepository reads the per-company staged record tables owned by the
// sync jobs. Upserts are keyed by (company, provider id): a re-import never
// creates a duplicate row, it refreshes volatile fields in place. The only
// mutation the core itself performs is the ledger back-reference.
type StagingRepository struct {
	db *gorm.DB
}

func NewStagingRepository(db *gorm.DB) *StagingRepository {
	return &StagingRepository{db: db}
}

// Expose DB if needed
func (r *StagingRepository) DB() *gorm.DB {
	return r.db
}

func (r *StagingRepository) UpsertPayouts(payouts []models.StagedPayout) error {
	if len(payouts) == 0 {
		return nil
	}
	for i := range payouts {
		if payouts[i].ID == uuid.Nil {
			payouts[i].ID = uuid.New()
		}
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "provider_payout_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"gross_amount", "fee_amount", "net_amount", "status", "arrival_date", "raw_payload", "updated_at"}),
	}).Create(&payouts).Error
}

func (r *StagingRepository) UpsertBalanceEntries(entries []models.StagedBalanceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "provider_txn_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "type", "source_id", "payout_id", "raw_payload", "updated_at"}),
	}).Create(&entries).Error
}

func (r *StagingRepository) UpsertBankTransactions(txns []models.StagedBankTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	for i := range txns {
		if txns[i].ID == uuid.Nil {
			txns[i].ID = uuid.New()
		}
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "provider_txn_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "posted_date", "description", "category", "raw_payload", "updated_at"}),
	}).Create(&txns).Error
}

func (r *StagingRepository) UpsertLedgerObjects(objects []models.StagedLedgerObject) error {
	if len(objects) == 0 {
		return nil
	}
	for i := range objects {
		if objects[i].ID == uuid.Nil {
			objects[i].ID = uuid.New()
		}
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "ledger_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "balance", "memo", "txn_date", "external_ref", "raw_payload", "updated_at"}),
	}).Create(&objects).Error
}

// PayoutsInWindow returns payouts whose arrival date falls in [start, end).
// Nil bounds are unbounded.
func (r *StagingRepository) PayoutsInWindow(companyID uuid.UUID, start, end *time.Time) ([]models.StagedPayout, error) {
	var payouts []models.StagedPayout
	err := r.window(r.db.Where("company_id = ?", companyID), "arrival_date", start, end).
		Order("arrival_date ASC, provider_payout_id ASC").
		Find(&payouts).Error
	return payouts, err
}

func (r *StagingRepository) BankTransactionsInWindow(companyID uuid.UUID, start, end *time.Time) ([]models.StagedBankTransaction, error) {
	var txns []models.StagedBankTransaction
	err := r.window(r.db.Where("company_id = ?", companyID), "posted_date", start, end).
		Order("posted_date ASC, provider_txn_id ASC").
		Find(&txns).Error
	return txns, err
}

func (r *StagingRepository) LedgerObjectsInWindow(companyID uuid.UUID, start, end *time.Time) ([]models.StagedLedgerObject, error) {
	var objects []models.StagedLedgerObject
	err := r.window(r.db.Where("company_id = ?", companyID), "txn_date", start, end).
		Order("txn_date ASC, ledger_id ASC").
		Find(&objects).Error
	return objects, err
}

func (r *StagingRepository) BalanceEntriesForPayout(companyID uuid.UUID, providerPayoutID string) ([]models.StagedBalanceEntry, error) {
	var entries []models.StagedBalanceEntry
	err := r.db.Where("company_id = ? AND payout_id = ?", companyID, providerPayoutID).
		Order("occurred_at ASC").
		Find(&entries).Error
	return entries, err
}

// SetLedgerExternalRef writes a back-link onto a staged ledger object.
func (r *StagingRepository) SetLedgerExternalRef(companyID uuid.UUID, ledgerID, ref string) error {
	return r.db.Model(&models.StagedLedgerObject{}).
		Where("company_id = ? AND ledger_id = ?", companyID, ledgerID).
		Update("external_ref", ref).Error
}

func (r *StagingRepository) window(q *gorm.DB, column string, start, end *time.Time) *gorm.DB {
	if start != nil {
		q = q.Where(column+" >= ?", *start)
	}
	if end != nil {
		q = q.Where(column+" < ?", *end)
	}
	return q
}
