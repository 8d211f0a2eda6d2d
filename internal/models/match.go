package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Entity types a match side can reference.
const (
	EntityPayout = "payout"
	EntityBank   = "bank"
	EntityLedger = "ledger"
)

// Matching strategies, highest precision first.
const (
	StrategyExactRef   = "exact_ref"
	StrategyAmountDate = "amount_date"
	StrategyAggregate  = "aggregate"
)

// Match is a confidence-scored link between two staged records from different
// sources. A record appears in at most one match per counterparty type but may
// sit in the middle of a chain (payout -> bank -> ledger). The unique index on
// (company, left_ref, right_ref) makes re-insertion of an identical match a
// no-op.
type Match struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID  uuid.UUID      `gorm:"index;uniqueIndex:idx_match_pair" json:"company_id"`
	LeftType   string         `json:"left_type"`
	LeftRef    string         `gorm:"uniqueIndex:idx_match_pair" json:"left_ref"`
	RightType  string         `json:"right_type"`
	RightRef   string         `gorm:"uniqueIndex:idx_match_pair" json:"right_ref"`
	Strategy   string         `gorm:"index" json:"strategy"`
	Confidence float64        `json:"confidence"`
	Details    datatypes.JSON `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
