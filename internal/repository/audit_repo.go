package repository

import (
	"errors"
	"time"

	"ledger-reconciliation-backend/internal/apperrors"
	"ledger-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Last returns the chain head for a company, or nil for an empty chain.
func (r *AuditRepository) Last(companyID uuid.UUID) (*models.AuditEvent, error) {
	var event models.AuditEvent
	err := r.db.Where("company_id = ?", companyID).
		Order("seq DESC").
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Append inserts the next link. The unique (company, prev_hash) index rejects
// a writer that computed against a stale chain head; that shows up here as
// ErrStaleChain, never as a silent overwrite.
func (r *AuditRepository) Append(event *models.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	err := r.db.Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrStaleChain
	}
	return err
}

// AuditFilter narrows List results.
type AuditFilter struct {
	CompanyID  uuid.UUID
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

// List returns a page of events in chain order plus the unpaginated total.
func (r *AuditRepository) List(f AuditFilter) ([]models.AuditEvent, int64, error) {
	q := r.db.Model(&models.AuditEvent{}).Where("company_id = ?", f.CompanyID)
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var events []models.AuditEvent
	err := q.Order("seq ASC").Limit(limit).Offset(f.Offset).Find(&events).Error
	return events, total, err
}

// AllInOrder returns a company's full chain in creation order, optionally
// bounded by created-at date range.
func (r *AuditRepository) AllInOrder(companyID uuid.UUID, start, end *time.Time) ([]models.AuditEvent, error) {
	q := r.db.Where("company_id = ?", companyID)
	if start != nil {
		q = q.Where("created_at >= ?", *start)
	}
	if end != nil {
		q = q.Where("created_at < ?", *end)
	}
	var events []models.AuditEvent
	err := q.Order("seq ASC").Find(&events).Error
	return events, err
}
