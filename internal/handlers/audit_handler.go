package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"ledger-reconciliation-backend/internal/apperrors"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/audit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	events *repository.AuditRepository
	trail  *audit.Trail
}

func NewAuditHandler(events *repository.AuditRepository, trail *audit.Trail) *AuditHandler {
	return &AuditHandler{events: events, trail: trail}
}

// Query returns a company's events in chain order with pagination metadata.
func (h *AuditHandler) Query(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		respondError(c, apperrors.Invalid("missing or malformed company_id"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.events.List(repository.AuditFilter{
		CompanyID:  companyID,
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":   events,
		"total":    total,
		"has_more": int64(offset+len(events)) < total,
	})
}

// Verify replays the full chain and reports any mismatch.
func (h *AuditHandler) Verify(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		respondError(c, apperrors.Invalid("missing or malformed company_id"))
		return
	}

	result, err := h.trail.Verify(companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

// Export streams the chain as a downloadable artifact.
func (h *AuditHandler) Export(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		respondError(c, apperrors.Invalid("missing or malformed company_id"))
		return
	}

	format := c.DefaultQuery("format", audit.FormatJSONL)
	start, end, err := parseWindow(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondError(c, err)
		return
	}

	export, err := h.trail.Export(companyID, format, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Body)
}
