package domain

import (
	"testing"
	"time"
)

func TestIdempotency_UniquePerUserConversationKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Now().UTC()
	rec := &Idempotency{ID: "a", UserID: "u1", ConversationID: 7, Key: "k1", MessageID: 1, Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	dup := &Idempotency{ID: "b", UserID: "u1", ConversationID: 7, Key: "k1", MessageID: 2, Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (user, conversation, key)")
	}

	// Same key in another conversation is a different operation.
	other := &Idempotency{ID: "c", UserID: "u1", ConversationID: 8, Key: "k1", MessageID: 3, Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other conversation: %v", err)
	}

	var got Idempotency
	if err := db.Where("id = ?", "a").First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt should be auto-populated")
	}
}
