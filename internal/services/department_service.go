package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/repo"
)

// DefaultDepartments is seeded on startup when missing.
var DefaultDepartments = []domain.Department{
	{Code: "EO", Name: "Environment Office"},
	{Code: "PW", Name: "Public Works"},
	{Code: "RD", Name: "Roads and Transport"},
	{Code: "WS", Name: "Waste and Sanitation"},
	{Code: "PS", Name: "Public Safety"},
}

// DepartmentService lists and seeds departments.
type DepartmentService struct {
	DB *gorm.DB
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(db *gorm.DB) *DepartmentService { return &DepartmentService{DB: db} }

// List returns all departments by name.
func (s *DepartmentService) List(ctx context.Context) ([]domain.Department, error) {
	out, err := repo.ListDepartments(ctx, s.DB)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return out, nil
}

// Seed inserts any of deps that do not exist yet.
func (s *DepartmentService) Seed(ctx context.Context, deps []domain.Department) error {
	return storeErr(repo.EnsureDepartments(ctx, s.DB, deps), nil)
}
