package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StagedBankTransaction is a posted transaction pulled from one bank account,
// scoped to one company.
type StagedBankTransaction struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID      `gorm:"index;uniqueIndex:idx_bank_provider" json:"company_id"`
	ProviderTxnID string         `gorm:"uniqueIndex:idx_bank_provider" json:"provider_txn_id"`
	BankAccountID string         `gorm:"index" json:"bank_account_id"`
	Amount        int64          `gorm:"index" json:"amount"`
	Currency      string         `json:"currency"`
	PostedDate    time.Time      `gorm:"index" json:"posted_date"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	RawPayload    datatypes.JSON `json:"raw_payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Credit reports whether money moved into the account.
func (t *StagedBankTransaction) Credit() bool {
	return t.Amount > 0
}
