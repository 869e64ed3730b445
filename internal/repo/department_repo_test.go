package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

func TestEnsureDepartments_IdempotentAndSorted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seed := []domain.Department{
		{Code: "WS", Name: "Waste"},
		{Code: "EO", Name: "Environment"},
	}
	for i := 0; i < 2; i++ {
		if err := EnsureDepartments(ctx, db, seed); err != nil {
			t.Fatalf("EnsureDepartments #%d: %v", i, err)
		}
	}
	got, err := ListDepartments(ctx, db)
	if err != nil || len(got) != 2 {
		t.Fatalf("ListDepartments: %+v %v", got, err)
	}
	if got[0].Name != "Environment" || got[1].Name != "Waste" {
		t.Fatalf("expected name order: %+v", got)
	}
	if d, err := GetDepartment(ctx, db, got[0].ID); err != nil || d.Code != "EO" {
		t.Fatalf("GetDepartment: %+v %v", d, err)
	}
	if _, err := GetDepartment(ctx, db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
	if err := EnsureDepartments(ctx, db, nil); err != nil {
		t.Fatalf("empty seed: %v", err)
	}
}

func TestComments_CreateAndListOldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := seedDepartment(t, db, "RD", "Roads")
	r := seedReport(t, db, d.ID, "RD1", time.Now().UTC())

	for _, body := range []string{"first", "second"} {
		if _, err := CreateComment(ctx, db, r.ID, "u1", body); err != nil {
			t.Fatalf("CreateComment: %v", err)
		}
	}
	got, err := ListComments(ctx, db, r.ID)
	if err != nil || len(got) != 2 || got[0].Body != "first" {
		t.Fatalf("ListComments: %+v %v", got, err)
	}
}
