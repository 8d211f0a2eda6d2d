package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Exception types, in classification priority order.
const (
	ExceptionPayoutMissingDeposit = "PAYOUT_MISSING_DEPOSIT"
	ExceptionBankTxnUnrecorded    = "BANK_TRANSACTION_UNRECORDED"
	ExceptionUnlinkedPayment      = "UNLINKED_PAYMENT"
	ExceptionUnclassified         = "UNCLASSIFIED"
)

// Proposed corrective actions.
const (
	ActionCreateLedgerDeposit = "create_ledger_deposit"
	ActionMarkInvoicePaid     = "mark_invoice_paid"
	ActionCreateTransfer      = "create_transfer"
	ActionCreateExpense       = "create_expense"
	ActionIgnore              = "ignore"
)

// Severities.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Exception lifecycle.
const (
	ExceptionOpen     = "open"
	ExceptionResolved = "resolved"
	ExceptionIgnored  = "ignored"
)

// Exception is an unresolved discrepancy requiring automatic or human-directed
// correction. Never deleted; closed exceptions stay around for audit. The
// partial unique index keeps at most one OPEN exception per (company, type,
// primary ref) even when two writers race; closed rows are outside the index,
// so a record can regress and open a fresh exception later.
type Exception struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID      uuid.UUID      `gorm:"index;uniqueIndex:idx_exception_open,where:status = 'open'" json:"company_id"`
	Type           string         `gorm:"index;uniqueIndex:idx_exception_open,where:status = 'open'" json:"type"`
	Subtype        string         `json:"subtype,omitempty"`
	Severity       string         `json:"severity"`
	PrimaryType    string         `gorm:"index" json:"primary_type"`
	PrimaryRef     string         `gorm:"index;uniqueIndex:idx_exception_open,where:status = 'open'" json:"primary_ref"`
	Evidence       datatypes.JSON `json:"evidence"`
	ProposedAction string         `json:"proposed_action"`
	Confidence     float64        `json:"confidence"`
	Status         string         `gorm:"index" json:"status"`
	FixType        string         `json:"fix_type,omitempty"`
	FixPayload     datatypes.JSON `json:"fix_payload,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
