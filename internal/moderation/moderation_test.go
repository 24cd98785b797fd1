package moderation

import (
	"errors"
	"testing"
	"time"

	"chandabaz/internal/models"
)

var (
	admin   = Actor{ID: "admin-1", Role: models.RoleAdmin}
	owner   = Actor{ID: "owner-1", Role: models.RoleCitizen}
	citizen = Actor{ID: "citizen-2", Role: models.RoleCitizen}
	now     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newPost(status models.Status) *models.Post {
	p := &models.Post{ID: "post-1", AuthorID: owner.ID, Status: status}
	switch status {
	case models.StatusRejected:
		reason := "blurry evidence"
		p.RejectionReason = &reason
	case models.StatusApproved:
		at := now.Add(-time.Hour)
		by := admin.ID
		p.ApprovedAt = &at
		p.ApprovedBy = &by
	}
	return p
}

func transitionCode(err error) string {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func TestTransitionMatrix(t *testing.T) {
	tests := []struct {
		from  models.Status
		event Event
		to    models.Status
		ok    bool
	}{
		{models.StatusPending, EventApprove, models.StatusApproved, true},
		{models.StatusPending, EventReject, models.StatusRejected, true},
		{models.StatusPending, EventResubmit, "", false},
		{models.StatusApproved, EventReject, models.StatusRejected, true},
		{models.StatusApproved, EventApprove, "", false},
		{models.StatusApproved, EventResubmit, "", false},
		{models.StatusRejected, EventResubmit, models.StatusPending, true},
		{models.StatusRejected, EventApprove, "", false},
		{models.StatusRejected, EventReject, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.event), func(t *testing.T) {
			to, ok := Next(tt.from, tt.event)
			if ok != tt.ok || to != tt.to {
				t.Errorf("Next(%s, %s) = (%q, %v), want (%q, %v)", tt.from, tt.event, to, ok, tt.to, tt.ok)
			}
		})
	}
}

func TestDeleteAllowedFromEveryStatus(t *testing.T) {
	for _, st := range models.Statuses {
		if !CanApply(st, EventDelete) {
			t.Errorf("delete should be allowed from %s", st)
		}
	}
	if CanApply("archived", EventDelete) {
		t.Error("delete should not be allowed from an unknown status")
	}
}

func TestApproveSetsApprovalFields(t *testing.T) {
	p := newPost(models.StatusPending)

	prev, err := Apply(p, EventApprove, admin, "", now)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if prev != models.StatusPending {
		t.Errorf("expected previous status pending, got %s", prev)
	}
	if p.Status != models.StatusApproved {
		t.Errorf("expected approved, got %s", p.Status)
	}
	if p.ApprovedAt == nil || !p.ApprovedAt.Equal(now) {
		t.Errorf("approvedAt not set to now: %v", p.ApprovedAt)
	}
	if p.ApprovedBy == nil || *p.ApprovedBy != admin.ID {
		t.Errorf("approvedBy not set to admin: %v", p.ApprovedBy)
	}
	if err := CheckInvariants(p); err != nil {
		t.Errorf("invariants violated: %v", err)
	}
}

func TestRejectApprovedClearsApproval(t *testing.T) {
	p := newPost(models.StatusApproved)

	if _, err := Apply(p, EventReject, admin, "  duplicate report  ", now); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if p.Status != models.StatusRejected {
		t.Errorf("expected rejected, got %s", p.Status)
	}
	if p.RejectionReason == nil || *p.RejectionReason != "duplicate report" {
		t.Errorf("expected trimmed reason, got %v", p.RejectionReason)
	}
	if p.ApprovedAt != nil || p.ApprovedBy != nil {
		t.Error("approval fields should be cleared on reject")
	}
	if err := CheckInvariants(p); err != nil {
		t.Errorf("invariants violated: %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\n\t"} {
		p := newPost(models.StatusPending)
		_, err := Apply(p, EventReject, admin, reason, now)
		if code := transitionCode(err); code != CodeReasonRequired {
			t.Errorf("reason %q: expected %s, got %v", reason, CodeReasonRequired, err)
		}
		if p.Status != models.StatusPending || p.RejectionReason != nil {
			t.Errorf("reason %q: post mutated on failure: %+v", reason, p)
		}
	}
}

func TestResubmitReturnsToPending(t *testing.T) {
	p := newPost(models.StatusRejected)

	if _, err := Apply(p, EventResubmit, owner, "", now); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if p.Status != models.StatusPending {
		t.Errorf("expected pending, got %s", p.Status)
	}
	if p.RejectionReason != nil {
		t.Error("rejection reason should be cleared")
	}
	if err := CheckInvariants(p); err != nil {
		t.Errorf("invariants violated: %v", err)
	}
}

func TestGuards(t *testing.T) {
	tests := []struct {
		name   string
		status models.Status
		event  Event
		actor  Actor
		code   string
	}{
		{"citizen cannot approve", models.StatusPending, EventApprove, owner, CodeNotAdmin},
		{"citizen cannot reject", models.StatusPending, EventReject, citizen, CodeNotAdmin},
		{"admin cannot resubmit for owner", models.StatusRejected, EventResubmit, admin, CodeNotOwner},
		{"stranger cannot resubmit", models.StatusRejected, EventResubmit, citizen, CodeNotOwner},
		{"stranger cannot delete", models.StatusApproved, EventDelete, citizen, CodeNotOwner},
		{"anonymous cannot delete", models.StatusPending, EventDelete, Actor{}, CodeNotOwner},
		{"owner deletes", models.StatusRejected, EventDelete, owner, ""},
		{"admin deletes", models.StatusPending, EventDelete, admin, ""},
		{"approve twice", models.StatusApproved, EventApprove, admin, CodeInvalidTransition},
		{"resubmit pending", models.StatusPending, EventResubmit, owner, CodeInvalidTransition},
		{"unknown event", models.StatusPending, Event("publish"), admin, CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPost(tt.status)
			_, err := Apply(p, tt.event, tt.actor, "reason", now)
			if code := transitionCode(err); code != tt.code {
				t.Errorf("expected code %q, got %q (err=%v)", tt.code, code, err)
			}
			if tt.code != "" && p.Status != tt.status {
				t.Errorf("status changed on refused event: %s -> %s", tt.status, p.Status)
			}
		})
	}
}

func TestNeverJumpsFromRejectedToApproved(t *testing.T) {
	p := newPost(models.StatusRejected)
	if _, err := Apply(p, EventApprove, admin, "", now); transitionCode(err) != CodeInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := Apply(p, EventResubmit, owner, "", now); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if p.Status != models.StatusPending {
		t.Errorf("resubmit must land in pending, got %s", p.Status)
	}
}

func TestCheckInvariants(t *testing.T) {
	empty := ""
	reason := "spam"
	at := now

	tests := []struct {
		name    string
		post    models.Post
		wantErr bool
	}{
		{"pending clean", models.Post{Status: models.StatusPending}, false},
		{"rejected without reason", models.Post{Status: models.StatusRejected}, true},
		{"rejected with empty reason", models.Post{Status: models.StatusRejected, RejectionReason: &empty}, true},
		{"approved with reason", models.Post{Status: models.StatusApproved, ApprovedAt: &at, ApprovedBy: &reason, RejectionReason: &reason}, true},
		{"approved without approver", models.Post{Status: models.StatusApproved, ApprovedAt: &at}, true},
		{"too many media", models.Post{Status: models.StatusPending, Media: make([]models.Media, 6)}, true},
		{"unknown status", models.Post{Status: "draft"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInvariants(&tt.post)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckInvariants() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
