package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// ListBarangays returns all barangays sorted by name.
func ListBarangays(ctx context.Context, db *gorm.DB) ([]domain.Barangay, error) {
	var out []domain.Barangay
	err := db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, err
}

// GetBarangay fetches a barangay by id.
func GetBarangay(ctx context.Context, db *gorm.DB, id uint) (*domain.Barangay, error) {
	var b domain.Barangay
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// EnsureBarangays inserts every name not present yet. Existing rows are
// left untouched.
func EnsureBarangays(ctx context.Context, db *gorm.DB, names []string) error {
	if len(names) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Barangay, len(names))
	for i, n := range names {
		rows[i] = domain.Barangay{Name: n, CreatedAt: now, UpdatedAt: now}
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error
}
