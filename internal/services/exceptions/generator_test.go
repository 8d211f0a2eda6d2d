package exceptions

import (
	"encoding/json"
	"testing"
	"time"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/matching"
	"ledger-reconciliation-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) (*Generator, *repository.ExceptionRepository, *repository.StagingRepository) {
	t.Helper()
	db := testutil.NewDB(t)
	repo := repository.NewExceptionRepository(db)
	staging := repository.NewStagingRepository(db)
	return NewGenerator(repo, staging, zerolog.Nop()), repo, staging
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestPayoutMissingDeposit(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	companyID := uuid.New()

	result := &matching.Result{
		UnmatchedPayouts: []models.StagedPayout{{
			ProviderPayoutID: "po_1",
			NetAmount:        5000,
			Currency:         "USD",
			ArrivalDate:      day(5),
		}},
		Attempts: map[string][]matching.Attempt{
			matching.TraceKey(models.EntityPayout, "po_1"): {
				{Strategy: models.StrategyAmountDate, Reason: "no bank transaction of 5000 USD within ±3 days of 2025-03-05"},
			},
		},
	}

	created, err := gen.Generate(companyID, result)
	require.NoError(t, err)
	require.Len(t, created, 1)

	exc := created[0]
	assert.Equal(t, models.ExceptionPayoutMissingDeposit, exc.Type)
	assert.Equal(t, models.SeverityCritical, exc.Severity)
	assert.Equal(t, models.ActionCreateLedgerDeposit, exc.ProposedAction)
	assert.Equal(t, models.ExceptionOpen, exc.Status)
	assert.Equal(t, "po_1", exc.PrimaryRef)

	var evidence map[string]interface{}
	require.NoError(t, json.Unmarshal(exc.Evidence, &evidence))
	assert.EqualValues(t, 5000, evidence["net_amount"])
	attempts, ok := evidence["attempts"].([]interface{})
	require.True(t, ok, "evidence must record the attempted strategies")
	require.Len(t, attempts, 1)
}

func TestPayoutEvidenceIncludesBalanceBreakdown(t *testing.T) {
	gen, _, staging := newTestGenerator(t)
	companyID := uuid.New()

	payoutID := "po_1"
	require.NoError(t, staging.UpsertBalanceEntries([]models.StagedBalanceEntry{
		{CompanyID: companyID, ProviderTxnID: "ch_1", Amount: 3000, Currency: "USD", Type: "charge", PayoutID: &payoutID, OccurredAt: day(3)},
		{CompanyID: companyID, ProviderTxnID: "ch_2", Amount: 2000, Currency: "USD", Type: "charge", PayoutID: &payoutID, OccurredAt: day(4)},
	}))

	result := &matching.Result{
		UnmatchedPayouts: []models.StagedPayout{{
			ProviderPayoutID: payoutID, NetAmount: 5000, Currency: "USD", ArrivalDate: day(5),
		}},
		Attempts: map[string][]matching.Attempt{},
	}

	created, err := gen.Generate(companyID, result)
	require.NoError(t, err)
	require.Len(t, created, 1)

	var evidence map[string]interface{}
	require.NoError(t, json.Unmarshal(created[0].Evidence, &evidence))
	assert.EqualValues(t, 2, evidence["balance_entry_count"])
	assert.EqualValues(t, 5000, evidence["balance_entry_total"])
}

func TestBankDirectionDecidesProposedAction(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	companyID := uuid.New()

	result := &matching.Result{
		UnmatchedBank: []models.StagedBankTransaction{
			{ProviderTxnID: "bt_in", Amount: 2000, Currency: "USD", PostedDate: day(5)},
			{ProviderTxnID: "bt_out", Amount: -3000, Currency: "USD", PostedDate: day(6)},
		},
		Attempts: map[string][]matching.Attempt{},
	}

	created, err := gen.Generate(companyID, result)
	require.NoError(t, err)
	require.Len(t, created, 2)

	byRef := map[string]models.Exception{}
	for _, exc := range created {
		byRef[exc.PrimaryRef] = exc
	}
	assert.Equal(t, models.ActionCreateLedgerDeposit, byRef["bt_in"].ProposedAction)
	assert.Equal(t, "credit", byRef["bt_in"].Subtype)
	assert.Equal(t, models.ActionCreateTransfer, byRef["bt_out"].ProposedAction)
	assert.Equal(t, "debit", byRef["bt_out"].Subtype)
	for _, exc := range created {
		assert.Equal(t, models.ExceptionBankTxnUnrecorded, exc.Type)
		assert.Equal(t, models.SeverityMedium, exc.Severity)
	}
}

func TestUnlinkedPaymentForOutstandingInvoice(t *testing.T) {
	gen, _, _ := newTestGenerator(t)
	companyID := uuid.New()

	result := &matching.Result{
		UnmatchedBank: []models.StagedBankTransaction{
			{ProviderTxnID: "bt_1", Amount: 8000, Currency: "USD", PostedDate: day(5)},
		},
		UnmatchedLedger: []models.StagedLedgerObject{
			{LedgerID: "inv_1", ObjectType: models.LedgerObjectInvoice, Amount: 8000, Balance: 8000, Currency: "USD", TxnDate: day(1)},
		},
		Attempts: map[string][]matching.Attempt{},
	}

	created, err := gen.Generate(companyID, result)
	require.NoError(t, err)

	var invoiceExc *models.Exception
	for i := range created {
		if created[i].PrimaryRef == "inv_1" {
			invoiceExc = &created[i]
		}
	}
	require.NotNil(t, invoiceExc)
	assert.Equal(t, models.ExceptionUnlinkedPayment, invoiceExc.Type)
	assert.Equal(t, models.ActionMarkInvoicePaid, invoiceExc.ProposedAction)

	var evidence map[string]interface{}
	require.NoError(t, json.Unmarshal(invoiceExc.Evidence, &evidence))
	assert.Equal(t, "bt_1", evidence["candidate_ref"])
	assert.Equal(t, models.EntityBank, evidence["candidate_type"])
}

func TestUnclassifiedFallback(t *testing.T) {
	gen, _, _ := newTestGenerator(t)

	result := &matching.Result{
		UnmatchedLedger: []models.StagedLedgerObject{
			{LedgerID: "jnl_1", ObjectType: models.LedgerObjectJournal, Amount: 1234, Currency: "USD", TxnDate: day(2)},
		},
		Attempts: map[string][]matching.Attempt{},
	}

	created, err := gen.Generate(uuid.New(), result)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.ExceptionUnclassified, created[0].Type)
	assert.Equal(t, models.SeverityLow, created[0].Severity)
	assert.Equal(t, models.ActionIgnore, created[0].ProposedAction)
}

func TestOpenExceptionNotDuplicated(t *testing.T) {
	gen, repo, _ := newTestGenerator(t)
	companyID := uuid.New()

	result := &matching.Result{
		UnmatchedPayouts: []models.StagedPayout{{
			ProviderPayoutID: "po_1", NetAmount: 5000, Currency: "USD", ArrivalDate: day(5),
		}},
		Attempts: map[string][]matching.Attempt{},
	}

	first, err := gen.Generate(companyID, result)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := gen.Generate(companyID, result)
	require.NoError(t, err)
	assert.Empty(t, second, "an open exception of the same type must not be duplicated")

	_, total, err := repo.List(repository.ExceptionFilter{CompanyID: companyID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestResolvedExceptionAllowsNewOne(t *testing.T) {
	gen, repo, _ := newTestGenerator(t)
	companyID := uuid.New()

	result := &matching.Result{
		UnmatchedPayouts: []models.StagedPayout{{
			ProviderPayoutID: "po_1", NetAmount: 5000, Currency: "USD", ArrivalDate: day(5),
		}},
		Attempts: map[string][]matching.Attempt{},
	}

	first, err := gen.Generate(companyID, result)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = repo.Ignore(first[0].ID)
	require.NoError(t, err)

	second, err := gen.Generate(companyID, result)
	require.NoError(t, err)
	assert.Len(t, second, 1, "a closed exception no longer blocks a new one")
}
