package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/realtime"
	"github.com/tbourn/civic-report-backend/internal/repo"
)

func newConvSvc(t *testing.T) (*ConversationService, *capturePublisher, domain.Department) {
	t.Helper()
	db := newSvcDB(t)
	pub := &capturePublisher{}
	d := seedDept(t, db, "RD", "Roads")
	return NewConversationService(db, pub), pub, d
}

func TestConversationService_GetOrCreate(t *testing.T) {
	s, _, d := newConvSvc(t)
	ctx := context.Background()

	c1, created, err := s.GetOrCreate(ctx, "u1", d.ID)
	if err != nil || !created {
		t.Fatalf("first call: %+v created=%v err=%v", c1, created, err)
	}
	c2, created, err := s.GetOrCreate(ctx, "u1", d.ID)
	if err != nil || created || c2.ID != c1.ID {
		t.Fatalf("second call: %+v created=%v err=%v", c2, created, err)
	}

	if _, _, err := s.GetOrCreate(ctx, "u1", 999); !errors.Is(err, ErrDepartmentNotFound) {
		t.Fatalf("unknown department: %v", err)
	}
	if _, _, err := s.GetOrCreate(ctx, " ", d.ID); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestConversationService_GetOrCreate_Concurrent(t *testing.T) {
	s, _, d := newConvSvc(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[uint]bool{}
		creates int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, created, err := s.GetOrCreate(ctx, "u1", d.ID)
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			mu.Lock()
			ids[c.ID] = true
			if created {
				creates++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 1 || creates != 1 {
		t.Fatalf("ids=%v creates=%d", ids, creates)
	}
}

func TestConversationService_SendAndList(t *testing.T) {
	s, pub, d := newConvSvc(t)
	ctx := context.Background()
	c, _, _ := s.GetOrCreate(ctx, "u1", d.ID)

	res, err := s.Send(ctx, c.ID, "u1", "  Is the road fixed yet?  ", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Replayed || res.Message.Body != "Is the road fixed yet?" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := s.Send(ctx, c.ID, "staff-1", "Crew scheduled for Monday", ""); err != nil {
		t.Fatalf("staff reply: %v", err)
	}

	evs := pub.all()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	for _, e := range evs {
		if e.Topic != realtime.ConversationTopic(c.ID) || e.Event.Type != realtime.TypeNewMessage {
			t.Fatalf("message events go to the conversation topic only: %+v", e)
		}
	}

	items, total, err := s.ListMessages(ctx, c.ID, 1, 50)
	if err != nil || total != 2 || len(items) != 2 || items[0].SenderID != "u1" {
		t.Fatalf("ListMessages: %+v %d %v", items, total, err)
	}

	// Last activity tracks the newest message.
	got, _ := s.Get(ctx, c.ID)
	last := evs[1].Event.Data.(*domain.Message)
	if !got.LastActivityAt.Equal(last.CreatedAt) {
		t.Fatalf("last_activity_at=%v want %v", got.LastActivityAt, last.CreatedAt)
	}

	n, ts, err := s.MessagesStats(ctx, c.ID)
	if err != nil || n != 2 || ts == nil {
		t.Fatalf("MessagesStats: %d %v %v", n, ts, err)
	}
}

func TestConversationService_SendValidationPublishesNothing(t *testing.T) {
	s, pub, d := newConvSvc(t)
	s.MaxMessageRunes = 5
	ctx := context.Background()
	c, _, _ := s.GetOrCreate(ctx, "u1", d.ID)

	cases := []struct {
		conv uint
		from string
		body string
		want error
	}{
		{c.ID, "u1", "   ", ErrEmptyMessage},
		{c.ID, "u1", "too long body", ErrMessageTooLong},
		{c.ID, "", "hi", ErrMissingUser},
		{999, "u1", "hi", ErrConversationNotFound},
	}
	for _, tc := range cases {
		if _, err := s.Send(ctx, tc.conv, tc.from, tc.body, ""); !errors.Is(err, tc.want) {
			t.Fatalf("Send(%d,%q,%q): got %v want %v", tc.conv, tc.from, tc.body, err, tc.want)
		}
	}
	if len(pub.all()) != 0 {
		t.Fatalf("failed sends must not publish: %+v", pub.all())
	}
	if _, _, err := s.ListMessages(ctx, 999, 1, 10); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("ListMessages missing: %v", err)
	}
}

func TestConversationService_SendIdempotent(t *testing.T) {
	s, pub, d := newConvSvc(t)
	ctx := context.Background()
	c, _, _ := s.GetOrCreate(ctx, "u1", d.ID)

	first, err := s.Send(ctx, c.ID, "u1", "hello", "key-1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	again, err := s.Send(ctx, c.ID, "u1", "hello", "key-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !again.Replayed || again.Message.ID != first.Message.ID {
		t.Fatalf("retry should replay the stored message: %+v", again)
	}
	if ok, _ := s.HasIdempotency(ctx, "u1", c.ID, "key-1", first.Message.CreatedAt); !ok {
		t.Fatalf("HasIdempotency should see the key")
	}
	if ok, _ := s.HasIdempotency(ctx, "u1", c.ID, "other", first.Message.CreatedAt); ok {
		t.Fatalf("unknown key reported as present")
	}

	_, total, _ := s.ListMessages(ctx, c.ID, 1, 10)
	if total != 1 {
		t.Fatalf("retry must not insert: total=%d", total)
	}
	if len(pub.all()) != 1 {
		t.Fatalf("retry must not publish: %d events", len(pub.all()))
	}
}

func TestConversationService_ListForActor(t *testing.T) {
	s, _, roads := newConvSvc(t)
	parks := seedDept(t, s.DB, "PK", "Parks")
	ctx := context.Background()

	mine1, _, _ := s.GetOrCreate(ctx, "u1", roads.ID)
	mine2, _, _ := s.GetOrCreate(ctx, "u1", parks.ID)
	theirs, _, _ := s.GetOrCreate(ctx, "u2", roads.ID)
	for i := 0; i < 3; i++ {
		if _, err := s.Send(ctx, mine1.ID, "u1", fmt.Sprintf("msg %d", i), ""); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	citizen := domain.Actor{UserID: "u1", Role: domain.RoleUser}
	list, err := s.ListForActor(ctx, citizen, 0, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("citizen list: %+v %v", list, err)
	}
	if list[0].ID != mine1.ID || list[1].ID != mine2.ID {
		t.Fatalf("expected most recent first: %+v", list)
	}
	if list[0].LastMessage == nil || *list[0].LastMessage != "msg 2" {
		t.Fatalf("last message not attached: %+v", list[0])
	}

	staff := domain.Actor{UserID: "s1", Role: domain.RoleStaff, DepartmentID: &roads.ID}
	list, err = s.ListForActor(ctx, staff, 1, 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("staff list: %+v %v", list, err)
	}
	seen := map[uint]bool{}
	for _, c := range list {
		seen[c.ID] = true
	}
	if !seen[mine1.ID] || !seen[theirs.ID] {
		t.Fatalf("staff should see the department's threads: %+v", list)
	}

	if _, err := s.ListForActor(ctx, domain.Actor{UserID: "a1", Role: domain.RoleAdmin}, 0, 0); !errors.Is(err, ErrDepartmentRequired) {
		t.Fatalf("admin without department: %v", err)
	}
	if _, err := s.ListForActor(ctx, domain.Actor{Role: domain.RoleUser}, 0, 0); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("citizen without id: %v", err)
	}

	none, err := s.ListForActor(ctx, domain.Actor{UserID: "nobody", Role: domain.RoleUser}, 0, 0)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("empty list should be non-nil: %+v %v", none, err)
	}
}

func TestConversationService_GetOrCreate_LostInsertRaceReturnsWinner(t *testing.T) {
	s, _, d := newConvSvc(t)
	ctx := context.Background()

	// Another request commits the same (user, department) row after our
	// lookup missed and before our insert.
	var winnerID atomic.Uint64
	err := s.DB.Callback().Create().Before("gorm:begin_transaction").Register("test:competing_conversation", func(tx *gorm.DB) {
		if !onTable(tx, "conversations") || winnerID.Load() != 0 {
			return
		}
		now := time.Now().UTC()
		if err := s.DB.Exec(
			"INSERT INTO conversations (user_id, department_id, last_activity_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			"u1", d.ID, now, now, now,
		).Error; err != nil {
			t.Errorf("insert winner: %v", err)
			return
		}
		var c domain.Conversation
		s.DB.Where("user_id = ? AND department_id = ?", "u1", d.ID).Take(&c)
		winnerID.Store(uint64(c.ID))
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	c, created, err := s.GetOrCreate(ctx, "u1", d.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if created {
		t.Fatalf("loser must not report created")
	}
	if winnerID.Load() == 0 || uint64(c.ID) != winnerID.Load() {
		t.Fatalf("got conversation %d, winner %d", c.ID, winnerID.Load())
	}
	var n int64
	s.DB.Model(&domain.Conversation{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one conversation, got %d", n)
	}
}

func TestConversationService_Send_DuplicateKeyReplaysWinner(t *testing.T) {
	s, pub, d := newConvSvc(t)
	ctx := context.Background()
	c, _, err := s.GetOrCreate(ctx, "u1", d.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	// A concurrent send with the same key commits right after our replay
	// lookup finds nothing.
	var winner atomic.Pointer[domain.Message]
	err = s.DB.Callback().Query().After("gorm:query").Register("test:competing_send", func(tx *gorm.DB) {
		if !onTable(tx, "idempotency") || winner.Load() != nil {
			return
		}
		m, err := repo.CreateMessage(ctx, s.DB, c.ID, "u1", "hello")
		if err != nil {
			t.Errorf("winner message: %v", err)
			return
		}
		winner.Store(m)
		if _, err := repo.CreateIdempotency(ctx, s.DB, "u1", c.ID, "key-1", m.ID, 201, time.Hour); err != nil {
			t.Errorf("winner idempotency: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	res, err := s.Send(ctx, c.ID, "u1", "hello", "key-1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	w := winner.Load()
	if w == nil {
		t.Fatalf("competing send never ran")
	}
	if !res.Replayed || res.Message.ID != w.ID {
		t.Fatalf("expected replay of message %d, got %+v", w.ID, res)
	}
	_, total, _ := s.ListMessages(ctx, c.ID, 1, 10)
	if total != 1 {
		t.Fatalf("loser's message must be rolled back: total=%d", total)
	}
	if len(pub.all()) != 0 {
		t.Fatalf("replayed send must not publish: %+v", pub.all())
	}
}
