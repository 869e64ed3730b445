package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

func TestReportsStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := seedDepartment(t, db, "RD", "Roads")

	n, latest, err := ReportsStats(ctx, db, ReportFilter{})
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("empty: n=%d latest=%v err=%v", n, latest, err)
	}

	seedReport(t, db, d.ID, "RD1", time.Now().UTC().Add(-time.Hour))
	r2 := seedReport(t, db, d.ID, "RD2", time.Now().UTC())

	n, latest, err = ReportsStats(ctx, db, ReportFilter{DepartmentID: &d.ID})
	if err != nil || n != 2 || latest == nil {
		t.Fatalf("n=%d latest=%v err=%v", n, latest, err)
	}
	if !latest.Equal(r2.UpdatedAt) {
		t.Fatalf("latest updated_at=%v want %v", latest, r2.UpdatedAt)
	}
}

func TestMessagesStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := seedDepartment(t, db, "RD", "Roads")
	c, _ := CreateConversation(ctx, db, "u1", d.ID)

	n, latest, err := MessagesStats(ctx, db, c.ID)
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("empty: n=%d latest=%v err=%v", n, latest, err)
	}
	CreateMessage(ctx, db, c.ID, "u1", "a")
	last, _ := CreateMessage(ctx, db, c.ID, "u1", "b")

	n, latest, err = MessagesStats(ctx, db, c.ID)
	if err != nil || n != 2 || latest == nil || latest.Before(last.CreatedAt.Add(-time.Millisecond)) {
		t.Fatalf("n=%d latest=%v err=%v", n, latest, err)
	}
}

func TestAnalytics_Counters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	roads := seedDepartment(t, db, "RD", "Roads")
	parks := seedDepartment(t, db, "PK", "Parks")
	today := time.Now().UTC().Truncate(24 * time.Hour)

	old := seedReport(t, db, roads.ID, "RD1", today.Add(-48*time.Hour))
	inReview := seedReport(t, db, roads.ID, "RD2", today.Add(time.Minute))
	seedReport(t, db, parks.ID, "PK1", today.Add(time.Minute))

	UpdateWorkflow(ctx, db, old.ID, domain.WorkflowResolved)
	UpdateWorkflow(ctx, db, inReview.ID, domain.WorkflowInReview)

	all, err := Analytics(ctx, db, nil, today)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	want := domain.Analytics{TotalReports: 3, ActiveReports: 2, ResolvedReports: 1, PendingModeration: 1, NewReportsToday: 2}
	if all != want {
		t.Fatalf("all=%+v want %+v", all, want)
	}

	rd, err := Analytics(ctx, db, &roads.ID, today)
	if err != nil {
		t.Fatalf("Analytics scoped: %v", err)
	}
	want = domain.Analytics{TotalReports: 2, ActiveReports: 1, ResolvedReports: 1, PendingModeration: 0, NewReportsToday: 1}
	if rd != want {
		t.Fatalf("roads=%+v want %+v", rd, want)
	}
}
