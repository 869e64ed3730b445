package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedDepartment(t *testing.T, db *gorm.DB, code, name string) domain.Department {
	t.Helper()
	d := domain.Department{Code: code, Name: name}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("seed department: %v", err)
	}
	return d
}

func seedReport(t *testing.T, db *gorm.DB, deptID uint, code string, at time.Time) domain.Report {
	t.Helper()
	r := domain.Report{
		Code:         code,
		UserID:       "citizen-1",
		DepartmentID: deptID,
		Title:        "Pothole " + code,
		Body:         "Large pothole near the bus stop",
		CreatedAt:    at,
	}
	if err := CreateReport(context.Background(), db, &r); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	return r
}
