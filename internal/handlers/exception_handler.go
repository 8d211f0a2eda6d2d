package handler

import (
	"net/http"
	"strconv"
	"time"

	"ledger-reconciliation-backend/internal/apperrors"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/actions"
	"ledger-reconciliation-backend/internal/services/audit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ExceptionHandler struct {
	exceptions *repository.ExceptionRepository
	executor   *actions.Executor
	trail      *audit.Trail
}

func NewExceptionHandler(exceptions *repository.ExceptionRepository, executor *actions.Executor, trail *audit.Trail) *ExceptionHandler {
	return &ExceptionHandler{exceptions: exceptions, executor: executor, trail: trail}
}

// List returns exceptions for a company, filtered and paginated.
func (h *ExceptionHandler) List(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		respondError(c, apperrors.Invalid("missing or malformed company_id"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.exceptions.List(repository.ExceptionFilter{
		CompanyID:  companyID,
		Status:     c.Query("status"),
		EntityType: c.Query("entity_type"),
		EntityRef:  c.Query("entity_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"total":    total,
		"has_more": int64(offset+len(items)) < total,
	})
}

// Resolve applies a fix to an open exception through the idempotent executor.
func (h *ExceptionHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.Invalid("invalid exception id"))
		return
	}

	var payload struct {
		FixType string `json:"fix_type"`
		ActorID string `json:"actor_id"`
		Payload struct {
			DocNumber string `json:"doc_number"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			TxnDate   string `json:"txn_date"` // "2006-01-02"
			AccountID string `json:"account_id"`
			TargetID  string `json:"target_id"`
			Memo      string `json:"memo"`
		} `json:"payload"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	txnDate, err := time.Parse("2006-01-02", payload.Payload.TxnDate)
	if err != nil {
		respondError(c, apperrors.Invalid("invalid txn_date %q, expected yyyy-mm-dd", payload.Payload.TxnDate))
		return
	}

	actorID := payload.ActorID
	if actorID == "" {
		actorID = "api"
	}

	outcome, err := h.executor.Execute(id, payload.FixType, actions.LedgerRequest{
		DocNumber: payload.Payload.DocNumber,
		Amount:    payload.Payload.Amount,
		Currency:  payload.Payload.Currency,
		TxnDate:   txnDate,
		AccountID: payload.Payload.AccountID,
		TargetID:  payload.Payload.TargetID,
		Memo:      payload.Payload.Memo,
	}, actions.Actor{Type: models.ActorUser, ID: actorID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"exception":   outcome.Exception,
		"external_id": outcome.ExternalID,
		"duplicate":   outcome.Duplicate,
	})
}

// Ignore dismisses an open exception without a ledger write.
func (h *ExceptionHandler) Ignore(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.Invalid("invalid exception id"))
		return
	}

	exc, err := h.exceptions.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if exc.Status != models.ExceptionOpen {
		respondError(c, apperrors.ErrNotOpen)
		return
	}

	ignored, err := h.exceptions.Ignore(id)
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.trail.Append(ignored.CompanyID, audit.Entry{
		ActorType:  models.ActorUser,
		ActorID:    c.DefaultQuery("actor_id", "api"),
		Verb:       models.VerbExceptionIgnored,
		EntityType: "exception",
		EntityID:   ignored.ID.String(),
		Payload:    map[string]interface{}{"type": ignored.Type},
	}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exception": ignored})
}
