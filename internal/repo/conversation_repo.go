// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// Functions:
//
//   - FindConversation(ctx, db, userID, departmentID) -> *domain.Conversation, error
//     Looks up the unique thread for a (citizen, department) pair.
//
//   - CreateConversation(ctx, db, userID, departmentID) -> *domain.Conversation, error
//     Inserts a thread; returns ErrDuplicate when another request won the race.
//
//   - ListConversations(ctx, db, scope, offset, limit) -> []domain.ConversationSummary, error
//     Lists threads by last activity, annotated with their newest message.
//
//   - TouchConversation(ctx, db, id, at) -> error
//     Moves last activity forward to the given message timestamp.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// ConversationScope selects whose conversations to list. Exactly one field
// should be set.
type ConversationScope struct {
	UserID       string
	DepartmentID *uint
}

// FindConversation returns the conversation for (userID, departmentID), or
// ErrNotFound.
func FindConversation(ctx context.Context, db *gorm.DB, userID string, departmentID uint) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("user_id = ? AND department_id = ?", userID, departmentID).
		Take(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts a new conversation. A unique violation on
// (user_id, department_id) is returned as ErrDuplicate.
func CreateConversation(ctx context.Context, db *gorm.DB, userID string, departmentID uint) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		UserID:         userID,
		DepartmentID:   departmentID,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a conversation by id.
func GetConversation(ctx context.Context, db *gorm.DB, id uint) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns conversations in scope ordered by last activity
// (most recent first). The newest message is attached with correlated scalar
// subqueries, so each conversation appears exactly once however many
// messages it holds. limit <= 0 means no limit.
func ListConversations(ctx context.Context, db *gorm.DB, scope ConversationScope, offset, limit int) ([]domain.ConversationSummary, error) {
	const lastMsg = `SELECT m.%s FROM messages m WHERE m.conversation_id = c.id ORDER BY m.created_at DESC, m.id DESC LIMIT 1`

	q := db.WithContext(ctx).
		Table("conversations AS c").
		Select("c.*, (" + fmt.Sprintf(lastMsg, "id") + ") AS last_message_id, (" + fmt.Sprintf(lastMsg, "body") + ") AS last_message")
	if scope.DepartmentID != nil {
		q = q.Where("c.department_id = ?", *scope.DepartmentID)
	} else {
		q = q.Where("c.user_id = ?", scope.UserID)
	}
	q = q.Order("c.last_activity_at DESC, c.id DESC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []domain.ConversationSummary
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	if err := attachLastMessageTimes(ctx, db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachLastMessageTimes fills LastMessageAt from the newest message's own
// created_at. It is read through the typed messages model because untyped
// subquery columns come back as text on SQLite.
func attachLastMessageTimes(ctx context.Context, db *gorm.DB, rows []domain.ConversationSummary) error {
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		if r.LastMessageID != nil {
			ids = append(ids, *r.LastMessageID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var msgs []domain.Message
	if err := db.WithContext(ctx).Select("id", "created_at").Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return err
	}
	at := make(map[uint]time.Time, len(msgs))
	for _, m := range msgs {
		at[m.ID] = m.CreatedAt
	}
	for i := range rows {
		if rows[i].LastMessageID == nil {
			continue
		}
		if t, ok := at[*rows[i].LastMessageID]; ok {
			rows[i].LastMessageAt = &t
		}
	}
	return nil
}

// TouchConversation raises last activity to at (a message's timestamp). The
// value never moves backwards, so sends committing out of timestamp order
// still leave it at the newest message. Returns ErrNotFound when the
// conversation does not exist.
func TouchConversation(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_activity_at": gorm.Expr("CASE WHEN last_activity_at < ? THEN ? ELSE last_activity_at END", at, at),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
