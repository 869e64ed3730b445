package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/repo"
)

func newJobsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestIdempotencySweep_DeletesOnlyExpired(t *testing.T) {
	db := newJobsDB(t)
	ctx := context.Background()

	dept := domain.Department{Code: "PW", Name: "Public Works"}
	if err := db.Create(&dept).Error; err != nil {
		t.Fatalf("seed department: %v", err)
	}
	conv, err := repo.CreateConversation(ctx, db, "c1", dept.ID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	msg, err := repo.CreateMessage(ctx, db, conv.ID, "c1", "hi")
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if _, err := repo.CreateIdempotency(ctx, db, "c1", conv.ID, "short-lived", msg.ID, 201, time.Minute); err != nil {
		t.Fatalf("idempotency: %v", err)
	}
	if _, err := repo.CreateIdempotency(ctx, db, "c1", conv.ID, "long-lived", msg.ID, 201, 48*time.Hour); err != nil {
		t.Fatalf("idempotency: %v", err)
	}

	var buf bytes.Buffer
	later := func() time.Time { return time.Now().Add(time.Hour) }
	if err := IdempotencySweep(db, later, zerolog.New(&buf))(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	var keys []string
	if err := db.Model(&domain.Idempotency{}).Pluck("key", &keys).Error; err != nil {
		t.Fatalf("pluck: %v", err)
	}
	if len(keys) != 1 || keys[0] != "long-lived" {
		t.Fatalf("remaining keys = %v", keys)
	}
	if !strings.Contains(buf.String(), `"deleted":1`) {
		t.Fatalf("expected sweep log, got %q", buf.String())
	}
}

func TestScheduler_RunsAndRecovers(t *testing.T) {
	s := NewScheduler(zerolog.Nop())

	var ok, failed atomic.Int32
	if err := s.Add("@every 1s", "ok", func(context.Context) error { ok.Add(1); return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("@every 1s", "failing", func(context.Context) error { failed.Add(1); return errors.New("nope") }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("@every 1s", "panicking", func(context.Context) error { panic("boom") }); err != nil {
		t.Fatalf("add: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for (ok.Load() == 0 || failed.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if ok.Load() == 0 || failed.Load() == 0 {
		t.Fatalf("jobs did not run: ok=%d failed=%d", ok.Load(), failed.Load())
	}
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	if err := s.Add("every now and then", "bad", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected schedule parse error")
	}
	if err := RegisterDefaults(s, nil, "@every 15m"); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}
