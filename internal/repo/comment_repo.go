package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// CreateComment attaches a comment to a report.
func CreateComment(ctx context.Context, db *gorm.DB, reportID uint, userID, body string) (*domain.Comment, error) {
	c := &domain.Comment{
		ReportID:  reportID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	return c, db.WithContext(ctx).Create(c).Error
}

// ListComments returns a report's comments, oldest first.
func ListComments(ctx context.Context, db *gorm.DB, reportID uint) ([]domain.Comment, error) {
	var out []domain.Comment
	err := db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
