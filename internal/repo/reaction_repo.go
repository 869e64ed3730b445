// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Reaction
// model.
//
// The (report_id, user_id) unique index is the source of truth for "one
// reaction per user per report". GetReaction locks the row it returns, and
// the writers report a lost race (ErrDuplicate on insert, ErrStale on a row
// that vanished) so the caller can retry the whole transaction.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// GetReaction returns the user's reaction on a report, or ErrNotFound. Inside
// a transaction the row stays locked (SELECT ... FOR UPDATE) until commit, so
// toggles on the same (report, user) pair run one after another. SQLite has
// no row locks; its single writer serializes the transactions instead.
func GetReaction(ctx context.Context, db *gorm.DB, reportID uint, userID string) (*domain.Reaction, error) {
	var r domain.Reaction
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("report_id = ? AND user_id = ?", reportID, userID).
		Take(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReaction inserts a reaction and returns ErrDuplicate on unique violation.
func CreateReaction(ctx context.Context, db *gorm.DB, reportID uint, userID string, kind domain.ReactionKind) (*domain.Reaction, error) {
	now := time.Now().UTC()
	r := &domain.Reaction{
		ReportID:  reportID,
		UserID:    userID,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// UpdateReactionKind switches an existing reaction between like and dislike.
// ErrStale means the row was removed after it was read.
func UpdateReactionKind(ctx context.Context, db *gorm.DB, id uint, kind domain.ReactionKind) error {
	res := db.WithContext(ctx).
		Model(&domain.Reaction{}).
		Where("id = ?", id).
		Updates(map[string]any{"kind": kind, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// DeleteReaction removes a reaction by id. ErrStale means another writer
// removed it first.
func DeleteReaction(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// CountReactions aggregates likes and dislikes for a report. Kinds with no
// rows count as zero.
func CountReactions(ctx context.Context, db *gorm.DB, reportID uint) (domain.ReactionCounts, error) {
	var rows []struct {
		Kind  domain.ReactionKind
		Total int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Reaction{}).
		Select("kind, COUNT(*) AS total").
		Where("report_id = ?", reportID).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return domain.ReactionCounts{}, err
	}

	var out domain.ReactionCounts
	for _, r := range rows {
		switch r.Kind {
		case domain.ReactionLike:
			out.Likes = r.Total
		case domain.ReactionDislike:
			out.Dislikes = r.Total
		}
	}
	return out, nil
}
