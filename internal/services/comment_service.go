package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/repo"
)

const maxCommentRunes = 2000

// CommentService posts and lists free-text comments on reports.
type CommentService struct {
	DB *gorm.DB
}

// NewCommentService constructs a CommentService.
func NewCommentService(db *gorm.DB) *CommentService { return &CommentService{DB: db} }

// Add attaches body to the report named by token.
func (s *CommentService) Add(ctx context.Context, token, userID, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	userID = strings.TrimSpace(userID)
	if body == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(body) > maxCommentRunes {
		return nil, ErrMessageTooLong
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	r, err := repo.ResolveReport(ctx, s.DB, domain.ParseReportToken(token))
	if err != nil {
		return nil, storeErr(err, ErrReportNotFound)
	}
	c, err := repo.CreateComment(ctx, s.DB, r.ID, userID, body)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return c, nil
}

// List returns the report's comments, oldest first.
func (s *CommentService) List(ctx context.Context, token string) ([]domain.Comment, error) {
	r, err := repo.ResolveReport(ctx, s.DB, domain.ParseReportToken(token))
	if err != nil {
		return nil, storeErr(err, ErrReportNotFound)
	}
	out, err := repo.ListComments(ctx, s.DB, r.ID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	if out == nil {
		out = []domain.Comment{}
	}
	return out, nil
}
