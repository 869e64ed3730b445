package services

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/tbourn/civic-report-backend/internal/repo"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindInternal},
		{"report not found", ErrReportNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("x: %w", ErrConversationNotFound), KindNotFound},
		{"repo not found", repo.ErrNotFound, KindNotFound},
		{"barangay not found", ErrBarangayNotFound, KindNotFound},
		{"unrecognized", fmt.Errorf("%w: %q", ErrUnrecognizedStatus, "x"), KindInvalidArgument},
		{"bad moderation", ErrInvalidModeration, KindInvalidArgument},
		{"dept required", ErrDepartmentRequired, KindInvalidArgument},
		{"backward", ErrBackwardTransition, KindConflict},
		{"already moderated", ErrAlreadyModerated, KindConflict},
		{"duplicate", repo.ErrDuplicate, KindConflict},
		{"stale", repo.ErrStale, KindConflict},
		{"bad conn", driver.ErrBadConn, KindStoreUnavailable},
		{"conn done", fmt.Errorf("q: %w", sql.ErrConnDone), KindStoreUnavailable},
		{"net", &net.OpError{Op: "dial", Err: errors.New("boom")}, KindStoreUnavailable},
		{"refused text", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), KindStoreUnavailable},
		{"tagged", fmt.Errorf("%w: x", ErrStoreUnavailable), KindStoreUnavailable},
		{"other", errors.New("weird"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf(%v)=%v want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestKindOf_MultipleSentinelsFirstMatchWins(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{errors.Join(repo.ErrNotFound, ErrAlreadyModerated), KindConflict},
		{fmt.Errorf("%w after %w", ErrReportNotFound, repo.ErrDuplicate), KindNotFound},
		{errors.Join(repo.ErrStale, ErrEmptyMessage), KindInvalidArgument},
	}
	for _, tc := range cases {
		// Repeat so a nondeterministic order would show up.
		for i := 0; i < 50; i++ {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf(%v)=%v want %v (iteration %d)", tc.err, got, tc.want, i)
			}
		}
	}
}

func TestKind_String(t *testing.T) {
	want := map[Kind]string{
		KindInternal:         "internal",
		KindNotFound:         "not_found",
		KindInvalidArgument:  "invalid_argument",
		KindConflict:         "conflict",
		KindStoreUnavailable: "store_unavailable",
	}
	for k, s := range want {
		if k.String() != s {
			t.Fatalf("%d.String()=%q want %q", k, k.String(), s)
		}
	}
}

func TestStoreErr(t *testing.T) {
	if storeErr(nil, ErrReportNotFound) != nil {
		t.Fatal("nil should stay nil")
	}
	if !errors.Is(storeErr(repo.ErrNotFound, ErrReportNotFound), ErrReportNotFound) {
		t.Fatal("not found should map to the given sentinel")
	}
	if err := storeErr(driver.ErrBadConn, nil); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("bad conn should be tagged: %v", err)
	}
	other := errors.New("other")
	if storeErr(other, nil) != other {
		t.Fatal("unknown errors pass through")
	}
}
