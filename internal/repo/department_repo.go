package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// ListDepartments returns all departments sorted by name.
func ListDepartments(ctx context.Context, db *gorm.DB) ([]domain.Department, error) {
	var out []domain.Department
	err := db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, err
}

// GetDepartment fetches a department by id.
func GetDepartment(ctx context.Context, db *gorm.DB, id uint) (*domain.Department, error) {
	var d domain.Department
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// EnsureDepartments inserts any department whose code is not present yet.
// Existing rows are left untouched, so it is safe to run on every boot.
func EnsureDepartments(ctx context.Context, db *gorm.DB, deps []domain.Department) error {
	if len(deps) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Department, len(deps))
	for i, d := range deps {
		d.ID = 0
		d.CreatedAt, d.UpdatedAt = now, now
		rows[i] = d
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&rows).Error
}
