package actions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Fingerprint derives the idempotency key for a ledger write. The field set
// is deliberately narrow (company, action, document number, leading amount,
// transaction date): widening it would reclassify cosmetically different
// payloads as new requests. Changing this set invalidates stored
// fingerprints, so treat it as a contract.
func Fingerprint(companyID uuid.UUID, actionType string, req LedgerRequest) string {
	canonical := fmt.Sprintf("%s|%s|%s|%d|%s",
		companyID.String(),
		actionType,
		req.DocNumber,
		req.Amount,
		req.TxnDate.Format("2006-01-02"),
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
