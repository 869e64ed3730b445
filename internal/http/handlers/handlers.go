// Package handlers exposes the civic report API over HTTP.
//
// Handlers are transport-thin: they bind and validate input, resolve the
// calling actor from the gateway headers, call the application services and
// translate results (or classified service errors) into HTTP responses.
package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/http/middleware"
	"github.com/tbourn/civic-report-backend/internal/repo"
	"github.com/tbourn/civic-report-backend/internal/services"
	"github.com/tbourn/civic-report-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ReportService covers the report lifecycle: submission, lookup, listing,
// search, the workflow and moderation state machines, and deletion.
type ReportService interface {
	Get(ctx context.Context, token string) (*domain.Report, error)
	Create(ctx context.Context, in services.CreateReportInput) (*domain.Report, error)
	List(ctx context.Context, f repo.ReportFilter, page, pageSize int) ([]domain.Report, int64, error)
	Stats(ctx context.Context, f repo.ReportFilter) (int64, *time.Time, error)
	Search(ctx context.Context, q string, departmentID uint, k int) ([]services.SearchHit, error)
	Analytics(ctx context.Context, departmentID *uint) (domain.Analytics, error)
	SetWorkflow(ctx context.Context, token, word string) (*domain.Report, error)
	SetModeration(ctx context.Context, token, value, reviewerID string, reason *string) (*domain.Report, error)
	Delete(ctx context.Context, token string) error
}

// ReactionService toggles and counts likes/dislikes.
type ReactionService interface {
	Toggle(ctx context.Context, token, userID, kind string) (*services.ToggleResult, error)
	Counts(ctx context.Context, token string) (domain.ReactionCounts, error)
}

// CommentService posts and lists report comments.
type CommentService interface {
	Add(ctx context.Context, token, userID, body string) (*domain.Comment, error)
	List(ctx context.Context, token string) ([]domain.Comment, error)
}

// ConversationService manages citizen/department threads and their messages.
type ConversationService interface {
	GetOrCreate(ctx context.Context, userID string, departmentID uint) (*domain.Conversation, bool, error)
	ListForActor(ctx context.Context, actor domain.Actor, page, pageSize int) ([]domain.ConversationSummary, error)
	ListMessages(ctx context.Context, conversationID uint, page, pageSize int) ([]domain.Message, int64, error)
	MessagesStats(ctx context.Context, conversationID uint) (int64, *time.Time, error)
	Send(ctx context.Context, conversationID uint, senderID, body, idemKey string) (*services.SendResult, error)
}

// DepartmentService lists departments.
type DepartmentService interface {
	List(ctx context.Context) ([]domain.Department, error)
}

// BarangayService lists barangays.
type BarangayService interface {
	List(ctx context.Context) ([]domain.Barangay, error)
}

//
// Handler wiring
//

// Handlers groups the API endpoints.
type Handlers struct {
	reports       ReportService
	reactions     ReactionService
	comments      CommentService
	conversations ConversationService
	departments   DepartmentService
	barangays     BarangayService
}

// New binds Handlers to the given services.
func New(reports ReportService, reactions ReactionService, comments CommentService, conversations ConversationService, departments DepartmentService, barangays BarangayService) *Handlers {
	return &Handlers{
		reports:       reports,
		reactions:     reactions,
		comments:      comments,
		conversations: conversations,
		departments:   departments,
		barangays:     barangays,
	}
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size, bounding them to [1, ...] and
// [1, 100] with defaults 1 and defaultSize.
func clampPagination(c *gin.Context, defaultSize int) (page, pageSize int) {
	const maxPageSize = 100
	page = max(1, utils.AtoiDefault(c.Query("page"), 1))
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultSize), 1, maxPageSize)
	return
}

// actorUserID prefers the gateway identity and falls back to an id supplied
// in the request body.
func actorUserID(c *gin.Context, fromBody string) string {
	if id := middleware.ActorFrom(c).UserID; id != "" {
		return id
	}
	return strings.TrimSpace(fromBody)
}

// optionalUint parses an optional positive integer query parameter. ok is
// false when the value is present but malformed.
func optionalUint(c *gin.Context, name string) (v *uint, ok bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return nil, false
	}
	id := uint(n)
	return &id, true
}

// pathID parses a positive numeric path parameter.
func pathID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
