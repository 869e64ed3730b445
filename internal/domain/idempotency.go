package domain

import "time"

// Idempotency records the message produced by an earlier "send message"
// request, keyed by (user_id, conversation_id, key). A retried request with
// the same key is answered with the stored message instead of inserting and
// broadcasting a second copy.
type Idempotency struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	UserID         string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_conversation_key,priority:1"`
	ConversationID uint      `gorm:"not null;uniqueIndex:ux_user_conversation_key,priority:2"`
	Key            string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_user_conversation_key,priority:3"`
	MessageID      uint      `gorm:"not null"`
	Status         int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
