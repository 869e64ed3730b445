package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/realtime"
	"github.com/tbourn/civic-report-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
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
	// One connection: concurrent callers queue for it instead of tripping
	// SQLite's writer lock.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedDept(t *testing.T, db *gorm.DB, code, name string) domain.Department {
	t.Helper()
	d := domain.Department{Code: code, Name: name}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("seed department: %v", err)
	}
	return d
}

func seedReport(t *testing.T, db *gorm.DB, deptID uint, code string) domain.Report {
	t.Helper()
	r := domain.Report{
		Code:         code,
		UserID:       "citizen-1",
		DepartmentID: deptID,
		Title:        "Broken streetlight",
		Body:         "The streetlight on Elm Street has been out for a week",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateReport(context.Background(), db, &r); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	return r
}

// onTable reports whether a gorm callback is running for table. Tests use it
// to inject a competing writer at a precise step of one repo call.
func onTable(tx *gorm.DB, table string) bool {
	return tx.Statement != nil && tx.Statement.Schema != nil && tx.Statement.Schema.Table == table
}

// capturePublisher records every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []published
}

type published struct {
	Topic string
	Event realtime.Event
}

func (p *capturePublisher) Publish(topic string, ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Event: ev})
}

func (p *capturePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]published, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) notices(t *testing.T) []DashboardNotice {
	t.Helper()
	var out []DashboardNotice
	for _, e := range p.all() {
		if e.Topic != realtime.DashboardTopic {
			continue
		}
		n, ok := e.Event.Data.(DashboardNotice)
		if !ok {
			t.Fatalf("unexpected dashboard payload %T", e.Event.Data)
		}
		out = append(out, n)
	}
	return out
}
