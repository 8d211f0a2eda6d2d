package handler

import (
	"errors"
	"net/http"

	"ledger-reconciliation-backend/internal/apperrors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError maps the three error classes onto HTTP statuses: input errors
// are 4xx and final, ledger-write failures surface the provider error for
// retry, consistency errors are flagged as corruption so callers never treat
// them as transient.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotOpen):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDuplicateInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	case errors.Is(err, apperrors.ErrLedgerWrite):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "retryable": true})
	case apperrors.IsConsistency(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "class": "consistency"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
