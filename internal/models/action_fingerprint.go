package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Fingerprint lifecycle.
const (
	FingerprintPending   = "pending"
	FingerprintCompleted = "completed"
)

// ActionFingerprint is the idempotency record for one side-effecting ledger
// write. The unique (company, fingerprint) index is what makes concurrent
// duplicate requests race safely: exactly one insert wins.
type ActionFingerprint struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID      `gorm:"uniqueIndex:idx_action_fp" json:"company_id"`
	Fingerprint string         `gorm:"uniqueIndex:idx_action_fp" json:"fingerprint"`
	ActionType  string         `json:"action_type"`
	Status      string         `json:"status"`
	ExternalID  string         `json:"external_id,omitempty"`
	Result      datatypes.JSON `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
