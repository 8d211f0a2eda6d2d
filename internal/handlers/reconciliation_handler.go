package handler

import (
	"net/http"
	"time"

	"ledger-reconciliation-backend/internal/apperrors"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	service "ledger-reconciliation-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReconciliationHandler struct {
	service *service.Service
	staging *repository.StagingRepository
	matches *repository.MatchRepository
}

func NewReconciliationHandler(s *service.Service, staging *repository.StagingRepository, matches *repository.MatchRepository) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, staging: staging, matches: matches}
}

// Run triggers a reconciliation run for a company, optionally bounded by a
// [start, end) date range.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	var payload struct {
		CompanyID string `json:"company_id"`
		StartDate string `json:"start_date"` // "2006-01-02"
		EndDate   string `json:"end_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	companyID, err := uuid.Parse(payload.CompanyID)
	if err != nil {
		respondError(c, apperrors.Invalid("missing or malformed company_id"))
		return
	}

	start, end, err := parseWindow(payload.StartDate, payload.EndDate)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.service.Run(companyID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":     summary.RunID,
		"matches":    summary.Matches,
		"exceptions": summary.Exceptions,
		"summary": gin.H{
			"new_matches":         summary.NewMatches,
			"matches_by_strategy": summary.MatchesByType,
			"exceptions_by_type":  summary.ExceptionsByType,
		},
	})
}

func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.Invalid("invalid run id"))
		return
	}
	run, err := h.service.GetRun(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListMatches returns every stored match for a company, in a stable order.
func (h *ReconciliationHandler) ListMatches(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		respondError(c, apperrors.Invalid("missing or malformed company_id"))
		return
	}
	matches, err := h.matches.ListByCompany(companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "total": len(matches)})
}

// Staging upsert endpoints realize the collaborator contract: re-importing
// the same provider record refreshes it in place, never duplicates it.

func (h *ReconciliationHandler) UpsertPayouts(c *gin.Context) {
	var payload struct {
		CompanyID string                `json:"company_id"`
		Payouts   []models.StagedPayout `json:"payouts"`
	}
	companyID, ok := bindStaging(c, &payload, &payload.CompanyID)
	if !ok {
		return
	}
	for i := range payload.Payouts {
		payload.Payouts[i].CompanyID = companyID
	}
	if err := h.staging.UpsertPayouts(payload.Payouts); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upserted": len(payload.Payouts)})
}

func (h *ReconciliationHandler) UpsertBalanceEntries(c *gin.Context) {
	var payload struct {
		CompanyID string                      `json:"company_id"`
		Entries   []models.StagedBalanceEntry `json:"entries"`
	}
	companyID, ok := bindStaging(c, &payload, &payload.CompanyID)
	if !ok {
		return
	}
	for i := range payload.Entries {
		payload.Entries[i].CompanyID = companyID
	}
	if err := h.staging.UpsertBalanceEntries(payload.Entries); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upserted": len(payload.Entries)})
}

func (h *ReconciliationHandler) UpsertBankTransactions(c *gin.Context) {
	var payload struct {
		CompanyID    string                         `json:"company_id"`
		Transactions []models.StagedBankTransaction `json:"transactions"`
	}
	companyID, ok := bindStaging(c, &payload, &payload.CompanyID)
	if !ok {
		return
	}
	for i := range payload.Transactions {
		payload.Transactions[i].CompanyID = companyID
	}
	if err := h.staging.UpsertBankTransactions(payload.Transactions); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upserted": len(payload.Transactions)})
}

func (h *ReconciliationHandler) UpsertLedgerObjects(c *gin.Context) {
	var payload struct {
		CompanyID string                      `json:"company_id"`
		Objects   []models.StagedLedgerObject `json:"objects"`
	}
	companyID, ok := bindStaging(c, &payload, &payload.CompanyID)
	if !ok {
		return
	}
	for i := range payload.Objects {
		payload.Objects[i].CompanyID = companyID
	}
	if err := h.staging.UpsertLedgerObjects(payload.Objects); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upserted": len(payload.Objects)})
}

func bindStaging(c *gin.Context, payload interface{}, companyField *string) (uuid.UUID, bool) {
	if err := c.ShouldBindJSON(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return uuid.Nil, false
	}
	companyID, err := uuid.Parse(*companyField)
	if err != nil {
		respondError(c, apperrors.Invalid("missing or malformed company_id"))
		return uuid.Nil, false
	}
	return companyID, true
}

func parseWindow(startStr, endStr string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return nil, nil, apperrors.Invalid("invalid start_date %q, expected yyyy-mm-dd", startStr)
		}
		start = &t
	}
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return nil, nil, apperrors.Invalid("invalid end_date %q, expected yyyy-mm-dd", endStr)
		}
		end = &t
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, nil, apperrors.Invalid("start_date must be before end_date")
	}
	return start, end, nil
}
