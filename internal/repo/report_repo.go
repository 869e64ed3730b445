// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Report
// model, including report resolution by token and the conditional status
// writes the status engine relies on.
//
// All functions are context-aware and accept a *gorm.DB handle, so they work
// the same on a plain connection or inside a transaction. They follow the
// "thin repository" approach: persistence and query composition only.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Conditional updates report RowsAffected; zero means the guard did not
//     match, and the caller decides whether that is "missing" or "conflict".
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// ReportFilter narrows report listings. Nil fields are ignored.
type ReportFilter struct {
	DepartmentID *uint
	BarangayID   *uint
	Moderation   *domain.ModerationStatus
	Workflow     *domain.WorkflowStatus
}

func (f ReportFilter) apply(q *gorm.DB) *gorm.DB {
	if f.DepartmentID != nil {
		q = q.Where("department_id = ?", *f.DepartmentID)
	}
	if f.BarangayID != nil {
		q = q.Where("barangay_id = ?", *f.BarangayID)
	}
	if f.Moderation != nil {
		q = q.Where("moderation_status = ?", *f.Moderation)
	}
	if f.Workflow != nil {
		q = q.Where("workflow_status = ?", *f.Workflow)
	}
	return q
}

// ResolveReport maps a caller token to exactly one report. An exact display
// code match is tried first; only when none exists, and the token is
// numeric, is it tried as a surrogate id. Two different rows are never
// combined.
func ResolveReport(ctx context.Context, db *gorm.DB, tok domain.ReportToken) (*domain.Report, error) {
	if tok.Code == "" {
		return nil, ErrNotFound
	}
	var r domain.Report
	err := db.WithContext(ctx).Preload("Barangay").Where("code = ?", tok.Code).Take(&r).Error
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) || tok.Kind != domain.TokenNumeric {
		return nil, err
	}
	return GetReport(ctx, db, tok.ID)
}

// GetReport fetches a report by surrogate id, with its barangay.
func GetReport(ctx context.Context, db *gorm.DB, id uint) (*domain.Report, error) {
	var r domain.Report
	if err := db.WithContext(ctx).Preload("Barangay").Where("id = ?", id).Take(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReport inserts r. The display code must be unique; a collision
// surfaces as a duplicate error (see IsDuplicate).
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.Report) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	if r.WorkflowStatus == "" {
		r.WorkflowStatus = domain.WorkflowPending
	}
	if r.ModerationStatus == "" {
		r.ModerationStatus = domain.ModerationPending
	}
	if r.Priority == "" {
		r.Priority = domain.PriorityLow
	}
	return db.WithContext(ctx).Create(r).Error
}

// CountReports returns the number of reports matching f.
func CountReports(ctx context.Context, db *gorm.DB, f ReportFilter) (int64, error) {
	var n int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Report{})).Count(&n).Error
	return n, err
}

// ListReportsPage returns reports matching f, newest first. Barangays are
// preloaded so listings can show the district name.
func ListReportsPage(ctx context.Context, db *gorm.DB, f ReportFilter, offset, limit int) ([]domain.Report, error) {
	var out []domain.Report
	err := f.apply(db.WithContext(ctx).Preload("Barangay")).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetReportsByIDs loads reports by id, preserving the order of ids and
// skipping ids that no longer exist.
func GetReportsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Report, error) {
	if len(ids) == 0 {
		return []domain.Report{}, nil
	}
	var rows []domain.Report
	if err := db.WithContext(ctx).Preload("Barangay").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.Report, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]domain.Report, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRecentReports returns up to limit reports, newest first (limit <= 0
// means no limit). Used to warm the keyword index.
func ListRecentReports(ctx context.Context, db *gorm.DB, limit int) ([]domain.Report, error) {
	var out []domain.Report
	q := db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateWorkflow moves report id to target in a single conditional UPDATE.
// The WHERE clause only matches when the current stage is a legal
// predecessor of target, so concurrent writers can never move a report
// backwards. Side effects on moderation happen in the same statement:
//   - in_review/resolved approve a pending post; rejected stays rejected.
//   - pending resets moderation to pending and clears the review.
//
// RowsAffected is 0 when the report is missing or the move is illegal.
func UpdateWorkflow(ctx context.Context, db *gorm.DB, id uint, target domain.WorkflowStatus) (int64, error) {
	updates := map[string]any{
		"workflow_status": target,
		"updated_at":      time.Now().UTC(),
	}
	if target == domain.WorkflowPending {
		updates["moderation_status"] = domain.ModerationPending
		updates["rejection_reason"] = nil
		updates["reviewed_by"] = nil
		updates["reviewed_at"] = nil
	} else {
		updates["moderation_status"] = gorm.Expr(
			"CASE WHEN moderation_status = ? THEN ? ELSE moderation_status END",
			domain.ModerationPending, domain.ModerationApproved,
		)
	}

	res := db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("id = ? AND workflow_status IN ?", id, target.AllowedFrom()).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// UpdateModeration settles a pending report to approved or rejected. The
// guard moderation_status = 'pending' makes the decision one-shot: a second
// writer affects 0 rows. reason is stored only for rejections.
func UpdateModeration(ctx context.Context, db *gorm.DB, id uint, status domain.ModerationStatus, reviewer string, reason *string) (int64, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"moderation_status": status,
		"reviewed_at":       now,
		"updated_at":        now,
		"rejection_reason":  nil,
	}
	if reviewer != "" {
		updates["reviewed_by"] = reviewer
	}
	if status == domain.ModerationRejected && reason != nil {
		updates["rejection_reason"] = *reason
	}

	res := db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("id = ? AND moderation_status = ?", id, domain.ModerationPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// DeleteReport removes a report together with its reactions and comments.
// Call it inside a transaction; it does not rely on FK cascades so it behaves
// the same on every driver.
func DeleteReport(ctx context.Context, db *gorm.DB, id uint) (int64, error) {
	tx := db.WithContext(ctx)
	if err := tx.Where("report_id = ?", id).Delete(&domain.Reaction{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("report_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("id = ?", id).Delete(&domain.Report{})
	return res.RowsAffected, res.Error
}
