package domain

import "testing"

func TestNormalizeWorkflow(t *testing.T) {
	tests := []struct {
		in     string
		want   WorkflowStatus
		wantOK bool
	}{
		{"pending", WorkflowPending, true},
		{"PENDING", WorkflowPending, true},
		{"in_review", WorkflowInReview, true},
		{"In Review", WorkflowInReview, true},
		{"in-review", WorkflowInReview, true},
		{"ongoing", WorkflowInReview, true},
		{"  in   progress ", WorkflowInReview, true},
		{"In_Progress", WorkflowInReview, true},
		{"resolved", WorkflowResolved, true},
		{"Completed", WorkflowResolved, true},
		{"done", WorkflowResolved, true},
		{"banana", WorkflowPending, false},
		{"", WorkflowPending, false},
	}
	for _, tc := range tests {
		got, ok := NormalizeWorkflow(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("NormalizeWorkflow(%q) = (%q,%v); want (%q,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestWorkflow_AllowedFrom(t *testing.T) {
	contains := func(list []WorkflowStatus, s WorkflowStatus) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	}

	if contains(WorkflowInReview.AllowedFrom(), WorkflowResolved) {
		t.Fatalf("resolved -> in_review must not be allowed")
	}
	if !contains(WorkflowResolved.AllowedFrom(), WorkflowPending) {
		t.Fatalf("pending -> resolved must be allowed")
	}
	if !contains(WorkflowResolved.AllowedFrom(), WorkflowResolved) {
		t.Fatalf("resolved -> resolved must be allowed")
	}
	for _, s := range []WorkflowStatus{WorkflowPending, WorkflowInReview, WorkflowResolved} {
		if !contains(WorkflowPending.AllowedFrom(), s) {
			t.Fatalf("reset to pending must be allowed from %q", s)
		}
	}
}

func TestParseModeration_AndReaction_AndPriority(t *testing.T) {
	if m, ok := ParseModeration("Approved"); !ok || m != ModerationApproved {
		t.Fatalf("ParseModeration(Approved) = %q,%v", m, ok)
	}
	if _, ok := ParseModeration("maybe"); ok {
		t.Fatalf("ParseModeration(maybe) should fail")
	}
	if k, ok := ParseReactionKind("DISLIKE"); !ok || k != ReactionDislike {
		t.Fatalf("ParseReactionKind(DISLIKE) = %q,%v", k, ok)
	}
	if _, ok := ParseReactionKind("love"); ok {
		t.Fatalf("ParseReactionKind(love) should fail")
	}
	if ParsePriority("High") != PriorityHigh || ParsePriority("urgent") != PriorityLow {
		t.Fatalf("ParsePriority mapping wrong")
	}
	if ParseRole("Admin") != RoleAdmin || ParseRole("") != RoleUser || !RoleStaff.IsStaff() || RoleUser.IsStaff() {
		t.Fatalf("ParseRole/IsStaff mapping wrong")
	}
}

func TestParseReportToken(t *testing.T) {
	tests := []struct {
		in   string
		kind TokenKind
		id   uint
	}{
		{"EO4475", TokenCode, 0},
		{"#1027", TokenCode, 0},
		{"1027", TokenNumeric, 1027},
		{" 42 ", TokenNumeric, 42},
		{"0", TokenCode, 0},
		{"-5", TokenCode, 0},
		{"+5", TokenCode, 0},
		{"99999999999999999999999", TokenCode, 0},
	}
	for _, tc := range tests {
		got := ParseReportToken(tc.in)
		if got.Kind != tc.kind || got.ID != tc.id {
			t.Fatalf("ParseReportToken(%q) = %+v", tc.in, got)
		}
	}
	if ParseReportToken(" 42 ").String() != "42" {
		t.Fatalf("token should keep trimmed raw code")
	}
}
