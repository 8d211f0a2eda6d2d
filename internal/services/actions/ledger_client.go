package actions

import "time"

// LedgerRequest carries the fields a corrective write needs. DocNumber,
// Amount and TxnDate are the identifying fields the idempotency fingerprint
// is derived from.
type LedgerRequest struct {
	DocNumber string    `json:"doc_number"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	TxnDate   time.Time `json:"txn_date"`
	AccountID string    `json:"account_id,omitempty"`
	TargetID  string    `json:"target_id,omitempty"` // invoice/transfer counterparty
	Memo      string    `json:"memo,omitempty"`
}

// LedgerResult is the provider's answer to a successful write.
type LedgerResult struct {
	ExternalID string `json:"external_id"`
	Raw        []byte `json:"-"`
}

// LedgerClient is the external accounting ledger. Token exchange and provider
// transport live outside this core; implementations receive decrypted
// credentials on construction.
type LedgerClient interface {
	CreateDeposit(req LedgerRequest) (*LedgerResult, error)
	MarkInvoicePaid(req LedgerRequest) (*LedgerResult, error)
	CreateTransfer(req LedgerRequest) (*LedgerResult, error)
	CreateExpense(req LedgerRequest) (*LedgerResult, error)
}
