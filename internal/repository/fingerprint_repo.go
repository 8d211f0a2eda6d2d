package repository

import (
	"errors"

	"ledger-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FingerprintRepository struct {
	db *gorm.DB
}

func NewFingerprintRepository(db *gorm.DB) *FingerprintRepository {
	return &FingerprintRepository{db: db}
}

// TryClaim atomically inserts a pending fingerprint row. Check-and-insert is
// one statement: the unique (company, fingerprint) index decides the race, so
// two concurrent identical requests cannot both claim. Returns whether this
// caller won the claim.
func (r *FingerprintRepository) TryClaim(fp *models.ActionFingerprint) (bool, error) {
	if fp.ID == uuid.Nil {
		fp.ID = uuid.New()
	}
	fp.Status = models.FingerprintPending
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(fp)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Get returns the fingerprint row, or nil when absent.
func (r *FingerprintRepository) Get(companyID uuid.UUID, fingerprint string) (*models.ActionFingerprint, error) {
	var fp models.ActionFingerprint
	err := r.db.Where("company_id = ? AND fingerprint = ?", companyID, fingerprint).First(&fp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fp, nil
}

// MarkCompleted commits a successful external write against the claim.
func (r *FingerprintRepository) MarkCompleted(id uuid.UUID, externalID string, result datatypes.JSON) error {
	return r.db.Model(&models.ActionFingerprint{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.FingerprintCompleted,
			"external_id": externalID,
			"result":      result,
		}).Error
}

// Release removes a pending claim after a failed external write so the
// request can be retried. A completed fingerprint is never released.
func (r *FingerprintRepository) Release(id uuid.UUID) error {
	return r.db.Where("id = ? AND status = ?", id, models.FingerprintPending).
		Delete(&models.ActionFingerprint{}).Error
}
