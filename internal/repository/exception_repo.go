package repository

import (
	"errors"
	"time"

	"ledger-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create inserts an exception unless an open one of the same type already
// references the record. The pre-check keeps the common path cheap; the
// partial unique index on open rows closes the race between two writers
// passing the check at once. Returns whether a new row was written.
func (r *ExceptionRepository) Create(exc *models.Exception) (bool, error) {
	var count int64
	err := r.db.Model(&models.Exception{}).
		Where("company_id = ? AND type = ? AND primary_ref = ? AND status = ?",
			exc.CompanyID, exc.Type, exc.PrimaryRef, models.ExceptionOpen).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if exc.ID == uuid.Nil {
		exc.ID = uuid.New()
	}
	exc.Status = models.ExceptionOpen
	if err := r.db.Create(exc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil // lost the race to another writer
		}
		return false, err
	}
	return true, nil
}

func (r *ExceptionRepository) GetByID(id uuid.UUID) (*models.Exception, error) {
	var exc models.Exception
	if err := r.db.First(&exc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &exc, nil
}

// ExceptionFilter narrows List results.
type ExceptionFilter struct {
	CompanyID  uuid.UUID
	Status     string
	EntityType string
	EntityRef  string
	Limit      int
	Offset     int
}

// List returns a page of exceptions plus the unpaginated total.
func (r *ExceptionRepository) List(f ExceptionFilter) ([]models.Exception, int64, error) {
	q := r.db.Model(&models.Exception{}).Where("company_id = ?", f.CompanyID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.EntityType != "" {
		q = q.Where("primary_type = ?", f.EntityType)
	}
	if f.EntityRef != "" {
		q = q.Where("primary_ref = ?", f.EntityRef)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var exceptions []models.Exception
	err := q.Order("created_at DESC, id ASC").Limit(limit).Offset(f.Offset).Find(&exceptions).Error
	return exceptions, total, err
}

// Resolve transitions an exception to resolved with its fix metadata.
func (r *ExceptionRepository) Resolve(id uuid.UUID, fixType string, fixPayload datatypes.JSON) (*models.Exception, error) {
	exc, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	exc.Status = models.ExceptionResolved
	exc.FixType = fixType
	exc.FixPayload = fixPayload
	exc.ResolvedAt = &now
	if err := r.db.Save(exc).Error; err != nil {
		return nil, err
	}
	return exc, nil
}

// Ignore dismisses an exception without applying a fix.
func (r *ExceptionRepository) Ignore(id uuid.UUID) (*models.Exception, error) {
	exc, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	exc.Status = models.ExceptionIgnored
	if err := r.db.Save(exc).Error; err != nil {
		return nil, err
	}
	return exc, nil
}
