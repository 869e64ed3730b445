// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) and the staff dashboard.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// ReportsStats returns the number of reports matching f and the greatest
// UpdatedAt among them (nil when there are none).
func ReportsStats(ctx context.Context, db *gorm.DB, f ReportFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Report{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at without MAX(), which comes back as TEXT in SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns the message count of a conversation and the newest
// CreatedAt (nil when empty). Messages are immutable, so this pair changes
// exactly when the thread does.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID uint) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// Analytics computes dashboard counters, scoped to a department when
// departmentID is non-nil. since marks the start of "today".
func Analytics(ctx context.Context, db *gorm.DB, departmentID *uint, since time.Time) (domain.Analytics, error) {
	var out domain.Analytics
	base := func() *gorm.DB {
		return ReportFilter{DepartmentID: departmentID}.apply(db.WithContext(ctx).Model(&domain.Report{}))
	}

	if err := base().Count(&out.TotalReports).Error; err != nil {
		return out, err
	}
	if err := base().Where("workflow_status IN ?", []domain.WorkflowStatus{domain.WorkflowPending, domain.WorkflowInReview}).
		Count(&out.ActiveReports).Error; err != nil {
		return out, err
	}
	if err := base().Where("workflow_status = ?", domain.WorkflowResolved).Count(&out.ResolvedReports).Error; err != nil {
		return out, err
	}
	if err := base().Where("moderation_status = ?", domain.ModerationPending).Count(&out.PendingModeration).Error; err != nil {
		return out, err
	}
	if err := base().Where("created_at >= ?", since).Count(&out.NewReportsToday).Error; err != nil {
		return out, err
	}
	return out, nil
}
