package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// WorkflowStatus tracks how far the municipality has progressed on a report.
type WorkflowStatus string

const (
	WorkflowPending  WorkflowStatus = "pending"
	WorkflowInReview WorkflowStatus = "in_review"
	WorkflowResolved WorkflowStatus = "resolved"
)

// ModerationStatus tracks whether a report is approved for public visibility.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// ReactionKind is a like or a dislike.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Priority is the triage priority assigned at submission.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var fold = cases.Fold()

// workflowSynonyms maps folded, space-separated words to workflow stages.
var workflowSynonyms = map[string]WorkflowStatus{
	"pending": WorkflowPending,
	"new":     WorkflowPending,
	"open":    WorkflowPending,

	"in review":   WorkflowInReview,
	"review":      WorkflowInReview,
	"reviewing":   WorkflowInReview,
	"ongoing":     WorkflowInReview,
	"in progress": WorkflowInReview,

	"resolved":  WorkflowResolved,
	"completed": WorkflowResolved,
	"complete":  WorkflowResolved,
	"done":      WorkflowResolved,
	"closed":    WorkflowResolved,
	"fixed":     WorkflowResolved,
}

// normalizeWord case-folds s and treats '_' and '-' like spaces, collapsing
// runs of whitespace. "In_Progress", "in-progress" and " IN  PROGRESS " all
// normalize to "in progress".
func normalizeWord(s string) string {
	s = fold.String(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeWorkflow maps a free-form status word to a workflow stage.
// Unknown words fall through to (WorkflowPending, false); callers must treat
// ok == false as "unrecognized" and not act on the returned stage.
func NormalizeWorkflow(word string) (status WorkflowStatus, ok bool) {
	if s, found := workflowSynonyms[normalizeWord(word)]; found {
		return s, true
	}
	return WorkflowPending, false
}

// Rank orders workflow stages: pending < in_review < resolved.
func (w WorkflowStatus) Rank() int {
	switch w {
	case WorkflowInReview:
		return 1
	case WorkflowResolved:
		return 2
	default:
		return 0
	}
}

// AllowedFrom returns the stages a report may currently be in for a transition
// to w to be legal. Moving forward or staying put is allowed; the only
// backward move is an explicit reset to pending, which is legal from anywhere.
func (w WorkflowStatus) AllowedFrom() []WorkflowStatus {
	if w == WorkflowPending {
		return []WorkflowStatus{WorkflowPending, WorkflowInReview, WorkflowResolved}
	}
	out := make([]WorkflowStatus, 0, 3)
	for _, s := range []WorkflowStatus{WorkflowPending, WorkflowInReview, WorkflowResolved} {
		if s.Rank() <= w.Rank() {
			out = append(out, s)
		}
	}
	return out
}

// ParseModeration accepts approved, rejected or pending (case-insensitive).
func ParseModeration(s string) (ModerationStatus, bool) {
	switch m := ModerationStatus(normalizeWord(s)); m {
	case ModerationApproved, ModerationRejected, ModerationPending:
		return m, true
	default:
		return "", false
	}
}

// ParseReactionKind accepts like or dislike (case-insensitive).
func ParseReactionKind(s string) (ReactionKind, bool) {
	switch k := ReactionKind(normalizeWord(s)); k {
	case ReactionLike, ReactionDislike:
		return k, true
	default:
		return "", false
	}
}

// ParsePriority accepts low, medium or high; anything else yields low.
func ParsePriority(s string) Priority {
	switch p := Priority(normalizeWord(s)); p {
	case PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityLow
	}
}
