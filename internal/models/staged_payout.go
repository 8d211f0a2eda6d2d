package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StagedPayout is a processor payout disbursed to the company's bank account.
// Immutable once imported; a re-import with the same provider id replaces
// volatile fields in place.
type StagedPayout struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID        uuid.UUID      `gorm:"index;uniqueIndex:idx_payout_provider" json:"company_id"`
	ProviderPayoutID string         `gorm:"uniqueIndex:idx_payout_provider" json:"provider_payout_id"`
	GrossAmount      int64          `json:"gross_amount"`
	FeeAmount        int64          `json:"fee_amount"`
	NetAmount        int64          `gorm:"index" json:"net_amount"`
	Currency         string         `json:"currency"`
	ArrivalDate      time.Time      `gorm:"index" json:"arrival_date"`
	Status           string         `json:"status"`
	RawPayload       datatypes.JSON `json:"raw_payload,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
