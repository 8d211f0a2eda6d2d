package repository

import (
	"ledger-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Insert records a match. Re-insertion of the same (company, left, right)
// pair is a no-op, which is what makes engine re-runs idempotent; in that
// case m is replaced with the stored row, so callers never hold an ID that
// does not exist in the store. Returns whether a new row was written.
func (r *MatchRepository) Insert(m *models.Match) (bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var existing models.Match
	err := r.db.Where("company_id = ? AND left_ref = ? AND right_ref = ?",
		m.CompanyID, m.LeftRef, m.RightRef).First(&existing).Error
	if err != nil {
		return false, err
	}
	*m = existing
	return false, nil
}

func (r *MatchRepository) ListByCompany(companyID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.Where("company_id = ?", companyID).
		Order("created_at ASC, left_ref ASC, right_ref ASC").
		Find(&matches).Error
	return matches, err
}
