package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StagedBalanceEntry links a processor charge or fee to the payout that
// disbursed it.
type StagedBalanceEntry struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID      `gorm:"index;uniqueIndex:idx_balance_provider" json:"company_id"`
	ProviderTxnID string         `gorm:"uniqueIndex:idx_balance_provider" json:"provider_txn_id"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Type          string         `json:"type"` // charge, fee, refund, adjustment
	SourceID      *string        `json:"source_id,omitempty"`
	PayoutID      *string        `gorm:"index" json:"payout_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	RawPayload    datatypes.JSON `json:"raw_payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
