package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Ledger object types as reported by the accounting provider.
const (
	LedgerObjectDeposit  = "deposit"
	LedgerObjectPayment  = "payment"
	LedgerObjectInvoice  = "invoice"
	LedgerObjectJournal  = "journal"
	LedgerObjectTransfer = "transfer"
	LedgerObjectBill     = "bill"
)

// StagedLedgerObject is an accounting-ledger object (deposit, payment,
// invoice, ...). ExternalRef is the one staged column the core mutates: it
// stores back-links to processor/bank records.
type StagedLedgerObject struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID      `gorm:"index;uniqueIndex:idx_ledger_provider" json:"company_id"`
	LedgerID    string         `gorm:"uniqueIndex:idx_ledger_provider" json:"ledger_id"`
	ObjectType  string         `gorm:"index" json:"object_type"`
	TxnDate     time.Time      `gorm:"index" json:"txn_date"`
	Amount      int64          `gorm:"index" json:"amount"`
	Currency    string         `json:"currency"`
	Memo        string         `json:"memo"`
	ExternalRef string         `gorm:"index" json:"external_ref"`
	// Balance is the outstanding amount for invoices and bills; zero elsewhere.
	Balance     int64          `json:"balance"`
	RawPayload  datatypes.JSON `json:"raw_payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
