package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/actions"
	"ledger-reconciliation-backend/internal/services/matching"
	"ledger-reconciliation-backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	writes atomic.Int64
}

func (s *stubLedger) write() (*actions.LedgerResult, error) {
	n := s.writes.Add(1)
	return &actions.LedgerResult{ExternalID: fmt.Sprintf("ext_%d", n)}, nil
}

func (s *stubLedger) CreateDeposit(req actions.LedgerRequest) (*actions.LedgerResult, error) {
	return s.write()
}
func (s *stubLedger) MarkInvoicePaid(req actions.LedgerRequest) (*actions.LedgerResult, error) {
	return s.write()
}
func (s *stubLedger) CreateTransfer(req actions.LedgerRequest) (*actions.LedgerResult, error) {
	return s.write()
}
func (s *stubLedger) CreateExpense(req actions.LedgerRequest) (*actions.LedgerResult, error) {
	return s.write()
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	ledger := &stubLedger{}
	r := gin.New()
	RegisterRoutes(r, db, ledger, matching.DefaultConfig(), zerolog.Nop())
	return r, ledger
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunRejectsMissingCompanyID(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/reconciliation/run", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "company_id")
}

func TestRunRejectsMalformedDates(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/reconciliation/run", gin.H{
		"company_id": uuid.New().String(),
		"start_date": "03/05/2025",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "start_date")
}

func TestRunRejectsInvertedWindow(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/reconciliation/run", gin.H{
		"company_id": uuid.New().String(),
		"start_date": "2025-03-10",
		"end_date":   "2025-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStagingUpsertThenRunEndToEnd(t *testing.T) {
	r, _ := newTestRouter(t)
	companyID := uuid.New().String()

	w := doJSON(t, r, http.MethodPost, "/api/staging/payouts", gin.H{
		"company_id": companyID,
		"payouts": []gin.H{{
			"provider_payout_id": "po_1",
			"net_amount":         10000,
			"gross_amount":       10300,
			"fee_amount":         300,
			"currency":           "USD",
			"arrival_date":       time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
			"status":             "paid",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/staging/bank-transactions", gin.H{
		"company_id": companyID,
		"transactions": []gin.H{{
			"provider_txn_id": "bt_1",
			"bank_account_id": "acct_1",
			"amount":          10000,
			"currency":        "USD",
			"posted_date":     time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
			"description":     "PROCESSOR PAYOUT",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/reconciliation/run", gin.H{"company_id": companyID})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	matches := body["matches"].([]interface{})
	require.Len(t, matches, 1)
	m := matches[0].(map[string]interface{})
	assert.Equal(t, models.StrategyAmountDate, m["strategy"])
	assert.GreaterOrEqual(t, m["confidence"].(float64), 0.9)
}

func TestListMatchesAfterRun(t *testing.T) {
	r, _ := newTestRouter(t)
	companyID := uuid.New().String()

	w := doJSON(t, r, http.MethodGet, "/api/reconciliation/matches", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/staging/payouts", gin.H{
		"company_id": companyID,
		"payouts": []gin.H{{
			"provider_payout_id": "po_1",
			"net_amount":         10000,
			"currency":           "USD",
			"arrival_date":       time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
			"status":             "paid",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/staging/bank-transactions", gin.H{
		"company_id": companyID,
		"transactions": []gin.H{{
			"provider_txn_id": "bt_1",
			"bank_account_id": "acct_1",
			"amount":          10000,
			"currency":        "USD",
			"posted_date":     time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/reconciliation/run", gin.H{"company_id": companyID})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/reconciliation/matches?company_id="+companyID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
}

func TestExceptionListValidatesAndPaginates(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/exceptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	companyID := uuid.New().String()
	w = doJSON(t, r, http.MethodGet, "/api/exceptions?company_id="+companyID+"&limit=10&offset=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["total"])
	assert.Equal(t, false, body["has_more"])
}

func TestResolveUnknownExceptionIs404(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/exceptions/"+uuid.New().String()+"/resolve", gin.H{
		"fix_type": models.ActionCreateLedgerDeposit,
		"payload": gin.H{
			"doc_number": "DOC-1",
			"amount":     10000,
			"currency":   "USD",
			"txn_date":   "2025-03-05",
		},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveFlowEndToEnd(t *testing.T) {
	r, ledger := newTestRouter(t)
	companyID := uuid.New().String()

	// Stage a payout with no bank counterpart, then reconcile.
	w := doJSON(t, r, http.MethodPost, "/api/staging/payouts", gin.H{
		"company_id": companyID,
		"payouts": []gin.H{{
			"provider_payout_id": "po_lost",
			"net_amount":         5000,
			"currency":           "USD",
			"arrival_date":       time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
			"status":             "paid",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/reconciliation/run", gin.H{"company_id": companyID})
	require.Equal(t, http.StatusOK, w.Code)
	excs := decode(t, w)["exceptions"].([]interface{})
	require.Len(t, excs, 1)
	excID := excs[0].(map[string]interface{})["id"].(string)

	resolveBody := gin.H{
		"fix_type": models.ActionCreateLedgerDeposit,
		"actor_id": "user_1",
		"payload": gin.H{
			"doc_number": "DOC-5000",
			"amount":     5000,
			"currency":   "USD",
			"txn_date":   "2025-03-05",
			"account_id": "acct_1",
		},
	}

	w = doJSON(t, r, http.MethodPost, "/api/exceptions/"+excID+"/resolve", resolveBody)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)
	assert.Equal(t, false, first["duplicate"])
	assert.Equal(t, "ext_1", first["external_id"])

	// Identical retry reports a duplicate with the same external id.
	w = doJSON(t, r, http.MethodPost, "/api/exceptions/"+excID+"/resolve", resolveBody)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode(t, w)
	assert.Equal(t, true, second["duplicate"])
	assert.Equal(t, "ext_1", second["external_id"])
	assert.EqualValues(t, 1, ledger.writes.Load())

	// Audit query shows the executed action.
	w = doJSON(t, r, http.MethodGet, "/api/audit?company_id="+companyID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode(t, w)["events"].([]interface{})
	var verbs []string
	for _, raw := range events {
		verbs = append(verbs, raw.(map[string]interface{})["verb"].(string))
	}
	assert.Contains(t, verbs, models.VerbActionExecuted)
}

func TestAuditQueryRequiresCompanyID(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/audit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditExportHeaders(t *testing.T) {
	r, _ := newTestRouter(t)
	companyID := uuid.New().String()

	w := doJSON(t, r, http.MethodGet, "/api/audit/export?company_id="+companyID+"&format=jsonl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	disposition := w.Header().Get("Content-Disposition")
	assert.Contains(t, disposition, "attachment")
	assert.Contains(t, disposition, companyID)

	w = doJSON(t, r, http.MethodGet, "/api/audit/export?company_id="+companyID+"&format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditVerifyEmptyChain(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/audit/verify?company_id="+uuid.New().String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["valid"])
}

func TestIgnoreExceptionFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	companyID := uuid.New().String()

	w := doJSON(t, r, http.MethodPost, "/api/staging/payouts", gin.H{
		"company_id": companyID,
		"payouts": []gin.H{{
			"provider_payout_id": "po_x",
			"net_amount":         1234,
			"currency":           "USD",
			"arrival_date":       time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
			"status":             "paid",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/reconciliation/run", gin.H{"company_id": companyID})
	require.Equal(t, http.StatusOK, w.Code)
	excs := decode(t, w)["exceptions"].([]interface{})
	require.Len(t, excs, 1)
	excID := excs[0].(map[string]interface{})["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/exceptions/"+excID+"/ignore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exc := decode(t, w)["exception"].(map[string]interface{})
	assert.Equal(t, models.ExceptionIgnored, exc["status"])

	// Ignoring twice conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/exceptions/"+excID+"/ignore", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
