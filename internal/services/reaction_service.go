// Package services – ReactionService
//
// ReactionService maintains the one-reaction-per-user-per-report ledger.
// Toggle runs as a single transaction that locks the user's reaction row.
// When two toggles still race (two first inserts hitting the unique index, or
// a row removed between read and write) the loser retries the whole
// transaction so it observes the winner's row.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/repo"
)

// toggleAttempts bounds retries after losing a race.
const toggleAttempts = 3

// ToggleAction is the outcome of a reaction toggle.
type ToggleAction string

const (
	ToggleAdded   ToggleAction = "added"
	ToggleUpdated ToggleAction = "updated"
	ToggleRemoved ToggleAction = "removed"
)

// ToggleResult reports what a toggle did and the counts after it.
type ToggleResult struct {
	Action ToggleAction          `json:"action"`
	Kind   domain.ReactionKind   `json:"reaction,omitempty"`
	Counts domain.ReactionCounts `json:"counts"`
}

// ReactionService implements like/dislike toggling and counting.
type ReactionService struct {
	DB *gorm.DB
}

// NewReactionService constructs a ReactionService.
func NewReactionService(db *gorm.DB) *ReactionService {
	return &ReactionService{DB: db}
}

// Toggle applies kind for userID on the report named by token:
//   - no reaction yet: add it
//   - same kind: remove it
//   - other kind: switch it
func (s *ReactionService) Toggle(ctx context.Context, token, userID, kind string) (*ToggleResult, error) {
	tr := otel.Tracer("services/ReactionService")
	ctx, span := tr.Start(ctx, "Toggle",
		trace.WithAttributes(
			attribute.String("report.token", token),
			attribute.String("user.id", userID),
			attribute.String("reaction.kind", kind),
		),
	)
	defer span.End()

	k, ok := domain.ParseReactionKind(kind)
	if !ok {
		return nil, ErrInvalidReaction
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	var (
		res *ToggleResult
		err error
	)
	for attempt := 1; attempt <= toggleAttempts; attempt++ {
		res, err = s.toggleOnce(ctx, token, userID, k)
		if !lostRace(err) {
			break
		}
		span.AddEvent("reaction toggle race", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}
	if err != nil {
		if lostRace(err) {
			return nil, fmt.Errorf("reaction toggle contended: %w", err)
		}
		return nil, err
	}

	reactionToggles.WithLabelValues(string(res.Action)).Inc()
	return res, nil
}

func lostRace(err error) bool {
	return errors.Is(err, repo.ErrDuplicate) || errors.Is(err, repo.ErrStale)
}

func (s *ReactionService) toggleOnce(ctx context.Context, token, userID string, kind domain.ReactionKind) (*ToggleResult, error) {
	res := &ToggleResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.ResolveReport(ctx, tx, domain.ParseReportToken(token))
		if err != nil {
			return storeErr(err, ErrReportNotFound)
		}

		existing, err := repo.GetReaction(ctx, tx, r.ID, userID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if _, err := repo.CreateReaction(ctx, tx, r.ID, userID, kind); err != nil {
				return storeErr(err, nil)
			}
			res.Action, res.Kind = ToggleAdded, kind
		case err != nil:
			return storeErr(err, nil)
		case existing.Kind == kind:
			if err := repo.DeleteReaction(ctx, tx, existing.ID); err != nil {
				return storeErr(err, nil)
			}
			res.Action = ToggleRemoved
		default:
			if err := repo.UpdateReactionKind(ctx, tx, existing.ID, kind); err != nil {
				return storeErr(err, nil)
			}
			res.Action, res.Kind = ToggleUpdated, kind
		}

		res.Counts, err = repo.CountReactions(ctx, tx, r.ID)
		return storeErr(err, nil)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Counts returns like/dislike totals for the report named by token.
func (s *ReactionService) Counts(ctx context.Context, token string) (domain.ReactionCounts, error) {
	tr := otel.Tracer("services/ReactionService")
	ctx, span := tr.Start(ctx, "Counts", trace.WithAttributes(attribute.String("report.token", token)))
	defer span.End()

	r, err := repo.ResolveReport(ctx, s.DB, domain.ParseReportToken(token))
	if err != nil {
		return domain.ReactionCounts{}, storeErr(err, ErrReportNotFound)
	}
	c, err := repo.CountReactions(ctx, s.DB, r.ID)
	if err != nil {
		return domain.ReactionCounts{}, storeErr(err, nil)
	}
	return c, nil
}
