// Package services – ReportService
//
// ReportService owns citizen reports: submission, lookup by token, listing,
// keyword search, dashboard analytics, and the two status machines
// (workflow and moderation). Every state change is a single conditional
// UPDATE inside a transaction, and dashboard events are published only after
// the transaction commits.
//
// Observability: public methods are OpenTelemetry-instrumented and committed
// changes increment report_transitions_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
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
	"github.com/tbourn/civic-report-backend/internal/search"
	"github.com/tbourn/civic-report-backend/internal/utils"
)

const (
	maxTitleRunes   = 255
	maxBodyRunes    = 10000
	maxReasonRunes  = 1000
	codeDigits      = 10000
	codeMaxAttempts = 8
)

// ReportService implements report use cases on top of the repo layer.
type ReportService struct {
	DB     *gorm.DB
	Events realtime.Publisher
	Index  search.Index

	// Now is the clock used for "today" in analytics; defaults to time.Now.
	Now func() time.Time
	// codeSuffix returns the numeric part of a generated display code.
	codeSuffix func() int
}

// NewReportService wires a ReportService. events and idx may be nil.
func NewReportService(db *gorm.DB, events realtime.Publisher, idx search.Index) *ReportService {
	return &ReportService{
		DB:         db,
		Events:     publisherOrNoop(events),
		Index:      idx,
		Now:        time.Now,
		codeSuffix: func() int { return rand.IntN(codeDigits) },
	}
}

// CreateReportInput is a citizen submission.
type CreateReportInput struct {
	UserID       string
	DepartmentID uint
	BarangayID   *uint
	Title        string
	Body         string
	Latitude     *float64
	Longitude    *float64
	Priority     string
	// Code optionally fixes the display code; generated when empty.
	Code string
}

// SearchHit is a report matched by keyword search.
type SearchHit struct {
	Report domain.Report `json:"report"`
	Score  float64       `json:"score"`
}

func (s *ReportService) tracer() trace.Tracer { return otel.Tracer("services/ReportService") }

func (s *ReportService) publisher() realtime.Publisher { return publisherOrNoop(s.Events) }

// Get resolves token to a report.
func (s *ReportService) Get(ctx context.Context, token string) (*domain.Report, error) {
	ctx, span := s.tracer().Start(ctx, "Get", trace.WithAttributes(attribute.String("report.token", token)))
	defer span.End()

	r, err := repo.ResolveReport(ctx, s.DB, domain.ParseReportToken(token))
	if err != nil {
		return nil, storeErr(err, ErrReportNotFound)
	}
	return r, nil
}

// Create validates and stores a new report. Without an explicit code, one is
// generated as <department code><4 digits> and retried on collision.
func (s *ReportService) Create(ctx context.Context, in CreateReportInput) (*domain.Report, error) {
	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.Int64("department.id", int64(in.DepartmentID)),
		),
	)
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	switch {
	case in.UserID == "":
		return nil, ErrMissingUser
	case in.Title == "" || utf8.RuneCountInString(in.Title) > maxTitleRunes:
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidReport, maxTitleRunes)
	case in.Body == "" || utf8.RuneCountInString(in.Body) > maxBodyRunes:
		return nil, fmt.Errorf("%w: body must be 1-%d characters", ErrInvalidReport, maxBodyRunes)
	case in.DepartmentID == 0:
		return nil, fmt.Errorf("%w: department_id is required", ErrInvalidReport)
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return nil, fmt.Errorf("%w: latitude out of range", ErrInvalidReport)
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return nil, fmt.Errorf("%w: longitude out of range", ErrInvalidReport)
	}

	dept, err := repo.GetDepartment(ctx, s.DB, in.DepartmentID)
	if err != nil {
		return nil, storeErr(err, ErrDepartmentNotFound)
	}
	var brgy *domain.Barangay
	if in.BarangayID != nil {
		if brgy, err = repo.GetBarangay(ctx, s.DB, *in.BarangayID); err != nil {
			return nil, storeErr(err, ErrBarangayNotFound)
		}
	}

	r := &domain.Report{
		UserID:       in.UserID,
		DepartmentID: dept.ID,
		BarangayID:   in.BarangayID,
		Title:        in.Title,
		Body:         in.Body,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Priority:     domain.ParsePriority(in.Priority),
	}

	attempts := codeMaxAttempts
	if in.Code != "" {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		r.ID = 0
		r.Code = in.Code
		if r.Code == "" {
			r.Code = fmt.Sprintf("%s%04d", dept.Code, s.nextSuffix())
		}
		err = repo.CreateReport(ctx, s.DB, r)
		if err == nil || !repo.IsDuplicate(err) {
			break
		}
	}
	if err != nil {
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("display code %q: %w", r.Code, repo.ErrDuplicate)
		}
		return nil, storeErr(err, nil)
	}
	r.Barangay = brgy

	s.indexReport(r)
	reportTransitions.WithLabelValues("create").Inc()
	publishDashboard(s.publisher(), noticeFor(NoticeCreated, r, string(r.WorkflowStatus)))
	return r, nil
}

func (s *ReportService) nextSuffix() int {
	if s.codeSuffix == nil {
		return rand.IntN(codeDigits)
	}
	return s.codeSuffix()
}

// List returns a page of reports matching f, newest first, with the total.
func (s *ReportService) List(ctx context.Context, f repo.ReportFilter, page, pageSize int) ([]domain.Report, int64, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize)),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountReports(ctx, s.DB, f)
	if err != nil {
		return nil, 0, storeErr(err, nil)
	}
	if total == 0 {
		return []domain.Report{}, 0, nil
	}
	items, err := repo.ListReportsPage(ctx, s.DB, f, utils.PageOffset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, storeErr(err, nil)
	}
	return items, total, nil
}

// Stats returns the count and newest update time of reports matching f, for
// conditional responses.
func (s *ReportService) Stats(ctx context.Context, f repo.ReportFilter) (int64, *time.Time, error) {
	n, ts, err := repo.ReportsStats(ctx, s.DB, f)
	if err != nil {
		return 0, nil, storeErr(err, nil)
	}
	return n, ts, nil
}

// Search ranks reports against q by keyword overlap. departmentID 0 searches
// all departments. Hits whose report has since been deleted are skipped.
func (s *ReportService) Search(ctx context.Context, q string, departmentID uint, k int) ([]SearchHit, error) {
	ctx, span := s.tracer().Start(ctx, "Search",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("k", k)),
	)
	defer span.End()

	if s.Index == nil {
		return []SearchHit{}, nil
	}
	results := s.Index.TopK(q, k, departmentID)
	if len(results) == 0 {
		return []SearchHit{}, nil
	}

	ids := make([]uint, len(results))
	scores := make(map[uint]float64, len(results))
	for i, r := range results {
		ids[i] = r.ID
		scores[r.ID] = r.Score
	}
	reports, err := repo.GetReportsByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	out := make([]SearchHit, 0, len(reports))
	for _, r := range reports {
		out = append(out, SearchHit{Report: r, Score: scores[r.ID]})
	}
	return out, nil
}

// WarmIndex loads up to limit recent reports into the keyword index.
func (s *ReportService) WarmIndex(ctx context.Context, limit int) (int, error) {
	if s.Index == nil {
		return 0, nil
	}
	reports, err := repo.ListRecentReports(ctx, s.DB, limit)
	if err != nil {
		return 0, storeErr(err, nil)
	}
	// Oldest first so that eviction under a size cap drops the oldest.
	n := 0
	for i := len(reports) - 1; i >= 0; i-- {
		if s.Index.Upsert(reportDocument(&reports[i])) {
			n++
		}
	}
	return n, nil
}

// Analytics returns dashboard counters, optionally scoped to a department.
func (s *ReportService) Analytics(ctx context.Context, departmentID *uint) (domain.Analytics, error) {
	ctx, span := s.tracer().Start(ctx, "Analytics")
	defer span.End()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	since := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	a, err := repo.Analytics(ctx, s.DB, departmentID, since)
	if err != nil {
		return domain.Analytics{}, storeErr(err, nil)
	}
	return a, nil
}

// SetWorkflow moves a report's workflow stage to the stage named by word.
//
// The report is resolved first, so an unknown token is NotFound even when
// the word is also bad. Moves are forward-only (same stage allowed) except an
// explicit reset to pending, which also returns moderation to pending.
func (s *ReportService) SetWorkflow(ctx context.Context, token, word string) (*domain.Report, error) {
	ctx, span := s.tracer().Start(ctx, "SetWorkflow",
		trace.WithAttributes(attribute.String("report.token", token), attribute.String("status.word", word)),
	)
	defer span.End()

	var updated *domain.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.ResolveReport(ctx, tx, domain.ParseReportToken(token))
		if err != nil {
			return storeErr(err, ErrReportNotFound)
		}

		target, ok := domain.NormalizeWorkflow(word)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnrecognizedStatus, word)
		}

		n, err := repo.UpdateWorkflow(ctx, tx, r.ID, target)
		if err != nil {
			return storeErr(err, nil)
		}
		if n == 0 {
			if _, gerr := repo.GetReport(ctx, tx, r.ID); gerr != nil {
				return storeErr(gerr, ErrReportNotFound)
			}
			return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, r.WorkflowStatus, target)
		}

		updated, err = repo.GetReport(ctx, tx, r.ID)
		return storeErr(err, ErrReportNotFound)
	})
	if err != nil {
		return nil, err
	}

	reportTransitions.WithLabelValues("workflow").Inc()
	publishDashboard(s.publisher(), noticeFor(NoticeStatus, updated, string(updated.WorkflowStatus)))
	return updated, nil
}

// SetModeration settles a pending report to approved or rejected. The
// decision is one-shot: a second decision is a Conflict. Setting "pending"
// on a report that is still pending is a no-op.
func (s *ReportService) SetModeration(ctx context.Context, token, value, reviewerID string, reason *string) (*domain.Report, error) {
	ctx, span := s.tracer().Start(ctx, "SetModeration",
		trace.WithAttributes(attribute.String("report.token", token), attribute.String("moderation.value", value)),
	)
	defer span.End()

	status, ok := domain.ParseModeration(value)
	if !ok {
		return nil, ErrInvalidModeration
	}
	reason = cleanReason(reason)

	var (
		updated *domain.Report
		changed bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.ResolveReport(ctx, tx, domain.ParseReportToken(token))
		if err != nil {
			return storeErr(err, ErrReportNotFound)
		}

		if status == domain.ModerationPending {
			if r.ModerationStatus != domain.ModerationPending {
				return fmt.Errorf("%w: already %s", ErrAlreadyModerated, r.ModerationStatus)
			}
			updated = r
			return nil
		}

		n, err := repo.UpdateModeration(ctx, tx, r.ID, status, strings.TrimSpace(reviewerID), reason)
		if err != nil {
			return storeErr(err, nil)
		}
		if n == 0 {
			cur, gerr := repo.GetReport(ctx, tx, r.ID)
			if gerr != nil {
				return storeErr(gerr, ErrReportNotFound)
			}
			return fmt.Errorf("%w: already %s", ErrAlreadyModerated, cur.ModerationStatus)
		}

		changed = true
		updated, err = repo.GetReport(ctx, tx, r.ID)
		return storeErr(err, ErrReportNotFound)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		reportTransitions.WithLabelValues("moderation").Inc()
		publishDashboard(s.publisher(), noticeFor(NoticeModeration, updated, string(updated.ModerationStatus)))
	}
	return updated, nil
}

// Delete removes a report with its reactions and comments.
func (s *ReportService) Delete(ctx context.Context, token string) error {
	ctx, span := s.tracer().Start(ctx, "Delete", trace.WithAttributes(attribute.String("report.token", token)))
	defer span.End()

	var deleted *domain.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.ResolveReport(ctx, tx, domain.ParseReportToken(token))
		if err != nil {
			return storeErr(err, ErrReportNotFound)
		}
		n, err := repo.DeleteReport(ctx, tx, r.ID)
		if err != nil {
			return storeErr(err, nil)
		}
		if n == 0 {
			return ErrReportNotFound
		}
		deleted = r
		return nil
	})
	if err != nil {
		return err
	}

	if s.Index != nil {
		s.Index.Remove(deleted.ID)
	}
	reportTransitions.WithLabelValues("delete").Inc()
	publishDashboard(s.publisher(), noticeFor(NoticeDelete, deleted, ""))
	return nil
}

func (s *ReportService) indexReport(r *domain.Report) {
	if s.Index != nil {
		s.Index.Upsert(reportDocument(r))
	}
}

func reportDocument(r *domain.Report) search.Document {
	return search.Document{
		ID:    r.ID,
		Group: r.DepartmentID,
		Text:  r.Code + " " + r.Title + "\n" + r.Body,
	}
}

func cleanReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	v := strings.TrimSpace(*reason)
	if v == "" {
		return nil
	}
	if utf8.RuneCountInString(v) > maxReasonRunes {
		v = string([]rune(v)[:maxReasonRunes])
	}
	return &v
}

// storeErr maps repository errors to service errors. Missing rows become
// notFound (when given); connectivity failures are tagged
// ErrStoreUnavailable; anything else passes through.
func storeErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, repo.ErrNotFound) {
		return notFound
	}
	if KindOf(err) == KindStoreUnavailable && !errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
