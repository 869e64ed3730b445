// Conversation HTTP handlers.
//
//   - GET  /conversations               (threads visible to the actor)
//   - POST /conversations               (get-or-create citizen/department thread)
//   - GET  /conversations/{id}/messages (paginated, ETag support)
//   - POST /conversations/{id}/messages (send, Idempotency-Key support)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/http/middleware"
)

// OpenConversationRequest opens (or reopens) the thread with a department.
type OpenConversationRequest struct {
	UserID       string `json:"user_id,omitempty" example:"citizen-42"`
	DepartmentID uint   `json:"department_id" binding:"required" example:"2"`
}

// SendMessageRequest is the payload for sending a message.
type SendMessageRequest struct {
	SenderID string `json:"sender_id,omitempty" example:"citizen-42"`
	Body     string `json:"body" binding:"required" example:"Any update on the streetlight?"`
}

// ListConversationsResponse wraps the actor's threads, most recent first.
type ListConversationsResponse struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
	Page          int                          `json:"page"`
	PageSize      int                          `json:"page_size"`
}

// ListMessagesResponse wraps a page of messages, oldest first.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations for the calling actor
// @Description Citizens see their own threads and must be identified by X-User-ID. Staff see their department's; department_id stands in when the gateway sent none.
// @Tags        Conversations
// @Produce     json
// @Param       X-User-ID        header  string  false "Caller (required for citizens)"
// @Param       X-User-Role      header  string  false "user|staff|admin"
// @Param       X-Department-ID  header  int     false "Staff department"
// @Param       department_id    query   int     false "Staff department fallback"
// @Param       page             query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size        query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListConversationsResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing user or department"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor.Role.IsStaff() && actor.DepartmentID == nil {
		dept, valid := optionalUint(c, "department_id")
		if !valid {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "department_id must be a positive integer")
			return
		}
		actor.DepartmentID = dept
	}
	page, pageSize := clampPagination(c, 20)

	items, err := h.conversations.ListForActor(c.Request.Context(), actor, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: items, Page: page, PageSize: pageSize})
}

// OpenConversation godoc
// @ID          openConversation
// @Summary     Get or create the thread with a department
// @Description Returns 201 when the thread was created, 200 when it already existed.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Citizen"
// @Param       body       body    handlers.OpenConversationRequest  true  "Department"
// @Success     200  {object} domain.Conversation
// @Success     201  {object} domain.Conversation
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Department not found"
// @Router      /conversations [post]
func (h *Handlers) OpenConversation(c *gin.Context) {
	var req OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "department_id is required")
		return
	}
	conv, created, err := h.conversations.GetOrCreate(c.Request.Context(), actorUserID(c, req.UserID), req.DepartmentID)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, conv)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a conversation (paginated)
// @Description Oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       id             path    int     true  "Conversation ID"  minimum(1)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(50)
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	convID, valid := pathID(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid conversation id")
		return
	}
	page, pageSize := clampPagination(c, 50)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.conversations.MessagesStats(ctx, convID); err == nil && count > 0 {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		if notModified(c, "msgs:%d:%d:%d:%d:%d", convID, page, pageSize, count, ts) {
			return
		}
	}

	items, total, err := h.conversations.ListMessages(ctx, convID, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Publishes new_message to the conversation's realtime topic. A repeated Idempotency-Key returns the original message with 200 and Idempotency-Replayed: true.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false "Sender"
// @Param       Idempotency-Key  header  string  false "Client retry key (8-128 chars)"
// @Param       id               path    int     true  "Conversation ID"  minimum(1)
// @Param       body             body    handlers.SendMessageRequest  true  "Message"
// @Success     201  {object} domain.Message
// @Success     200  {object} domain.Message "Idempotent replay"
// @Header      200  {string} Idempotency-Replayed "true on replay"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	convID, valid := pathID(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid conversation id")
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body is required")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	res, err := h.conversations.Send(c.Request.Context(), convID, actorUserID(c, req.SenderID), req.Body, key)
	if err != nil {
		failErr(c, err)
		return
	}
	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, res.Message)
		return
	}
	ok(c, http.StatusCreated, res.Message)
}
