package exceptions

import (
	"encoding/json"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Generator classifies the unmatched remainder of a matching run. First
// matching rule wins; each exception carries the evidence a reviewer needs to
// audit the engine's reasoning without re-running it.
type Generator struct {
	exceptions *repository.ExceptionRepository
	staging    *repository.StagingRepository
	log        zerolog.Logger
}

func NewGenerator(exceptions *repository.ExceptionRepository, staging *repository.StagingRepository, log zerolog.Logger) *Generator {
	return &Generator{exceptions: exceptions, staging: staging, log: log}
}

// Generate emits exceptions for every record the engine could not match.
// Records already covered by an open exception of the same type are skipped.
func (g *Generator) Generate(companyID uuid.UUID, result *matching.Result) ([]models.Exception, error) {
	var created []models.Exception

	for _, p := range result.UnmatchedPayouts {
		exc := g.classifyPayout(companyID, &p, result)
		ok, err := g.exceptions.Create(exc)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, *exc)
		}
	}

	for _, b := range result.UnmatchedBank {
		exc := g.classifyBank(companyID, &b, result)
		ok, err := g.exceptions.Create(exc)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, *exc)
		}
	}

	for _, obj := range result.UnmatchedLedger {
		exc := g.classifyLedger(companyID, &obj, result)
		ok, err := g.exceptions.Create(exc)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, *exc)
		}
	}

	g.log.Info().
		Str("company_id", companyID.String()).
		Int("exceptions", len(created)).
		Msg("exception generation complete")

	return created, nil
}

// A payout with no bank deposit anywhere in the buffer window is the most
// serious discrepancy: money left the processor and never showed up.
func (g *Generator) classifyPayout(companyID uuid.UUID, p *models.StagedPayout, result *matching.Result) *models.Exception {
	fields := map[string]interface{}{
		"net_amount":   p.NetAmount,
		"gross_amount": p.GrossAmount,
		"fee_amount":   p.FeeAmount,
		"currency":     p.Currency,
		"arrival_date": p.ArrivalDate.Format("2006-01-02"),
		"attempts":     result.Attempts[matching.TraceKey(models.EntityPayout, p.ProviderPayoutID)],
	}

	// The charge breakdown tells a reviewer what the missing deposit covers.
	entries, err := g.staging.BalanceEntriesForPayout(companyID, p.ProviderPayoutID)
	if err != nil {
		g.log.Warn().Err(err).Str("payout_id", p.ProviderPayoutID).Msg("failed to load balance entries")
	} else if len(entries) > 0 {
		var chargeTotal int64
		for _, e := range entries {
			chargeTotal += e.Amount
		}
		fields["balance_entry_count"] = len(entries)
		fields["balance_entry_total"] = chargeTotal
	}

	return &models.Exception{
		CompanyID:      companyID,
		Type:           models.ExceptionPayoutMissingDeposit,
		Severity:       models.SeverityCritical,
		PrimaryType:    models.EntityPayout,
		PrimaryRef:     p.ProviderPayoutID,
		ProposedAction: models.ActionCreateLedgerDeposit,
		Confidence:     0.9,
		Evidence:       evidence(fields),
	}
}

// Bank direction decides the proposed fix: credits look like missing deposits,
// debits like untracked transfers out.
func (g *Generator) classifyBank(companyID uuid.UUID, b *models.StagedBankTransaction, result *matching.Result) *models.Exception {
	action := models.ActionCreateTransfer
	subtype := "debit"
	if b.Credit() {
		action = models.ActionCreateLedgerDeposit
		subtype = "credit"
	}
	return &models.Exception{
		CompanyID:      companyID,
		Type:           models.ExceptionBankTxnUnrecorded,
		Subtype:        subtype,
		Severity:       models.SeverityMedium,
		PrimaryType:    models.EntityBank,
		PrimaryRef:     b.ProviderTxnID,
		ProposedAction: action,
		Confidence:     0.7,
		Evidence: evidence(map[string]interface{}{
			"amount":      b.Amount,
			"currency":    b.Currency,
			"posted_date": b.PostedDate.Format("2006-01-02"),
			"description": b.Description,
			"category":    b.Category,
			"attempts":    result.Attempts[matching.TraceKey(models.EntityBank, b.ProviderTxnID)],
		}),
	}
}

func (g *Generator) classifyLedger(companyID uuid.UUID, obj *models.StagedLedgerObject, result *matching.Result) *models.Exception {
	attempts := result.Attempts[matching.TraceKey(models.EntityLedger, obj.LedgerID)]

	// An invoice with an outstanding balance covered exactly by an unassigned
	// bank or payout record is a payment nobody linked.
	if obj.ObjectType == models.LedgerObjectInvoice && obj.Balance > 0 {
		if ref, refType, ok := findUnassignedAmount(obj.Balance, obj.Currency, result); ok {
			return &models.Exception{
				CompanyID:      companyID,
				Type:           models.ExceptionUnlinkedPayment,
				Severity:       models.SeverityHigh,
				PrimaryType:    models.EntityLedger,
				PrimaryRef:     obj.LedgerID,
				ProposedAction: models.ActionMarkInvoicePaid,
				Confidence:     0.8,
				Evidence: evidence(map[string]interface{}{
					"invoice_amount":      obj.Amount,
					"outstanding_balance": obj.Balance,
					"currency":            obj.Currency,
					"candidate_ref":       ref,
					"candidate_type":      refType,
					"attempts":            attempts,
				}),
			}
		}
	}

	return &models.Exception{
		CompanyID:      companyID,
		Type:           models.ExceptionUnclassified,
		Severity:       models.SeverityLow,
		PrimaryType:    models.EntityLedger,
		PrimaryRef:     obj.LedgerID,
		ProposedAction: models.ActionIgnore,
		Confidence:     0.5,
		Evidence: evidence(map[string]interface{}{
			"object_type": obj.ObjectType,
			"amount":      obj.Amount,
			"currency":    obj.Currency,
			"txn_date":    obj.TxnDate.Format("2006-01-02"),
			"memo":        obj.Memo,
			"attempts":    attempts,
		}),
	}
}

// findUnassignedAmount looks for an unmatched bank or payout record whose
// amount equals the invoice's outstanding balance.
func findUnassignedAmount(balance int64, currency string, result *matching.Result) (string, string, bool) {
	for i := range result.UnmatchedBank {
		b := &result.UnmatchedBank[i]
		if b.Amount == balance && b.Currency == currency {
			return b.ProviderTxnID, models.EntityBank, true
		}
	}
	for i := range result.UnmatchedPayouts {
		p := &result.UnmatchedPayouts[i]
		if p.NetAmount == balance && p.Currency == currency {
			return p.ProviderPayoutID, models.EntityPayout, true
		}
	}
	return "", "", false
}

func evidence(fields map[string]interface{}) []byte {
	raw, _ := json.Marshal(fields)
	return raw
}
