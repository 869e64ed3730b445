// Package services – ConversationService
//
// ConversationService owns the single message thread between a citizen and a
// department. Sending a message inserts it and bumps the thread's last
// activity in one transaction; the new_message event is published to that
// conversation's topic only after commit.
//
// Send supports client retries through an Idempotency-Key: a repeated key
// for the same (sender, conversation) returns the originally stored message
// and publishes nothing.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/realtime"
	"github.com/tbourn/civic-report-backend/internal/repo"
	"github.com/tbourn/civic-report-backend/internal/utils"
)

// ConversationService implements conversation and message use cases.
type ConversationService struct {
	DB     *gorm.DB
	Events realtime.Publisher

	// MaxMessageRunes caps message bodies; 0 disables the check.
	MaxMessageRunes int
	// IdempotencyTTL is how long a send can be replayed by key.
	IdempotencyTTL time.Duration
}

// NewConversationService constructs a ConversationService with defaults.
func NewConversationService(db *gorm.DB, events realtime.Publisher) *ConversationService {
	return &ConversationService{
		DB:              db,
		Events:          publisherOrNoop(events),
		MaxMessageRunes: 4000,
		IdempotencyTTL:  24 * time.Hour,
	}
}

// SendResult is the outcome of Send.
type SendResult struct {
	Message  *domain.Message
	Replayed bool
}

func (s *ConversationService) tracer() trace.Tracer {
	return otel.Tracer("services/ConversationService")
}

// GetOrCreate returns the conversation for (userID, departmentID), creating
// it on first use. created reports whether this call inserted it. Concurrent
// first calls converge on one row.
func (s *ConversationService) GetOrCreate(ctx context.Context, userID string, departmentID uint) (conv *domain.Conversation, created bool, err error) {
	ctx, span := s.tracer().Start(ctx, "GetOrCreate",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("department.id", int64(departmentID)),
		),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, ErrMissingUser
	}
	if _, err := repo.GetDepartment(ctx, s.DB, departmentID); err != nil {
		return nil, false, storeErr(err, ErrDepartmentNotFound)
	}

	c, err := repo.FindConversation(ctx, s.DB, userID, departmentID)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, storeErr(err, nil)
	}

	c, err = repo.CreateConversation(ctx, s.DB, userID, departmentID)
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost the race; the winner's row is the conversation.
		c, err = repo.FindConversation(ctx, s.DB, userID, departmentID)
		if err != nil {
			return nil, false, storeErr(err, ErrConversationNotFound)
		}
		return c, false, nil
	}
	if err != nil {
		return nil, false, storeErr(err, nil)
	}
	return c, true, nil
}

// Get fetches a conversation by id.
func (s *ConversationService) Get(ctx context.Context, id uint) (*domain.Conversation, error) {
	c, err := repo.GetConversation(ctx, s.DB, id)
	if err != nil {
		return nil, storeErr(err, ErrConversationNotFound)
	}
	return c, nil
}

// ListForActor lists the conversations visible to actor, most recently
// active first. Staff and admins see their department's threads; citizens
// see their own.
func (s *ConversationService) ListForActor(ctx context.Context, actor domain.Actor, page, pageSize int) ([]domain.ConversationSummary, error) {
	ctx, span := s.tracer().Start(ctx, "ListForActor",
		trace.WithAttributes(
			attribute.String("actor.id", actor.UserID),
			attribute.String("actor.role", string(actor.Role)),
		),
	)
	defer span.End()

	var scope repo.ConversationScope
	if actor.Role.IsStaff() {
		if actor.DepartmentID == nil || *actor.DepartmentID == 0 {
			return nil, ErrDepartmentRequired
		}
		scope.DepartmentID = actor.DepartmentID
	} else {
		if strings.TrimSpace(actor.UserID) == "" {
			return nil, ErrMissingUser
		}
		scope.UserID = actor.UserID
	}

	offset, limit := 0, 0
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		offset, limit = utils.PageOffset(page, pageSize), pageSize
	}
	out, err := repo.ListConversations(ctx, s.DB, scope, offset, limit)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	if out == nil {
		out = []domain.ConversationSummary{}
	}
	return out, nil
}

// ListMessages returns a page of a conversation's messages, oldest first,
// with the total count.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID uint, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListMessages",
		trace.WithAttributes(
			attribute.Int64("conversation.id", int64(conversationID)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	if _, err := repo.GetConversation(ctx, s.DB, conversationID); err != nil {
		return nil, 0, storeErr(err, ErrConversationNotFound)
	}
	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, storeErr(err, nil)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, utils.PageOffset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, storeErr(err, nil)
	}
	return items, total, nil
}

// MessagesStats returns the message count and newest message time of a
// conversation, for conditional responses.
func (s *ConversationService) MessagesStats(ctx context.Context, conversationID uint) (int64, *time.Time, error) {
	n, ts, err := repo.MessagesStats(ctx, s.DB, conversationID)
	if err != nil {
		return 0, nil, storeErr(err, nil)
	}
	return n, ts, nil
}

// HasIdempotency reports whether a live idempotency record exists for the
// key. It backs the HTTP idempotency middleware's replay detection.
func (s *ConversationService) HasIdempotency(ctx context.Context, userID string, conversationID uint, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.DB, userID, conversationID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, nil)
	}
	return true, nil
}

// Send appends a message from senderID to the conversation. idemKey is
// optional.
func (s *ConversationService) Send(ctx context.Context, conversationID uint, senderID, body, idemKey string) (*SendResult, error) {
	ctx, span := s.tracer().Start(ctx, "Send",
		trace.WithAttributes(
			attribute.Int64("conversation.id", int64(conversationID)),
			attribute.String("sender.id", senderID),
			attribute.Bool("idempotent", idemKey != ""),
		),
	)
	defer span.End()

	body = strings.TrimSpace(body)
	senderID = strings.TrimSpace(senderID)
	switch {
	case body == "":
		return nil, ErrEmptyMessage
	case s.MaxMessageRunes > 0 && utf8.RuneCountInString(body) > s.MaxMessageRunes:
		return nil, ErrMessageTooLong
	case senderID == "":
		return nil, ErrMissingUser
	}

	if idemKey != "" {
		if res, err := s.replay(ctx, senderID, conversationID, idemKey); res != nil || err != nil {
			return res, err
		}
	}

	var msg *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetConversation(ctx, tx, conversationID); err != nil {
			return storeErr(err, ErrConversationNotFound)
		}
		m, err := repo.CreateMessage(ctx, tx, conversationID, senderID, body)
		if err != nil {
			return storeErr(err, nil)
		}
		if err := repo.TouchConversation(ctx, tx, conversationID, m.CreatedAt); err != nil {
			return storeErr(err, ErrConversationNotFound)
		}
		if idemKey != "" {
			ttl := s.IdempotencyTTL
			if ttl <= 0 {
				ttl = 24 * time.Hour
			}
			if _, err := repo.CreateIdempotency(ctx, tx, senderID, conversationID, idemKey, m.ID, http.StatusCreated, ttl); err != nil {
				return err
			}
		}
		msg = m
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key committed first.
		if res, rerr := s.replay(ctx, senderID, conversationID, idemKey); res != nil || rerr != nil {
			return res, rerr
		}
	}
	if err != nil {
		return nil, err
	}

	messagesSent.WithLabelValues("false").Inc()
	publisherOrNoop(s.Events).Publish(realtime.ConversationTopic(conversationID), realtime.Event{
		Type: realtime.TypeNewMessage,
		Data: msg,
	})
	return &SendResult{Message: msg}, nil
}

// replay returns the stored result for an idempotency key, or (nil, nil)
// when there is none.
func (s *ConversationService) replay(ctx context.Context, senderID string, conversationID uint, key string) (*SendResult, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, senderID, conversationID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err, nil)
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		return nil, storeErr(err, ErrConversationNotFound)
	}
	messagesSent.WithLabelValues("true").Inc()
	return &SendResult{Message: m, Replayed: true}, nil
}
