package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/repo"
)

// DefaultBarangays is seeded on startup when missing.
var DefaultBarangays = []string{
	"Apokon", "Bincungan", "Busaon", "Canocotan", "Cuambogan",
	"La Filipina", "Liboganon", "Madaum", "Magdum", "Mankilam",
	"New Balamban", "Nueva Fuerza", "Pagsabangan", "Pandapan",
	"Magugpo Poblacion", "San Agustin", "San Isidro", "San Miguel",
	"Visayan Village",
}

// BarangayService lists and seeds barangays.
type BarangayService struct {
	DB *gorm.DB
}

// NewBarangayService constructs a BarangayService.
func NewBarangayService(db *gorm.DB) *BarangayService { return &BarangayService{DB: db} }

// List returns all barangays by name.
func (s *BarangayService) List(ctx context.Context) ([]domain.Barangay, error) {
	out, err := repo.ListBarangays(ctx, s.DB)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return out, nil
}

// Seed inserts any of names that do not exist yet.
func (s *BarangayService) Seed(ctx context.Context, names []string) error {
	return storeErr(repo.EnsureBarangays(ctx, s.DB, names), nil)
}
