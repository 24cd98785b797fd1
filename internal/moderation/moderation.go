// Package moderation holds the post review workflow.
//
// Lifecycle: pending -> approved | rejected. An approved post can still be
// rejected by an administrator. A rejected post returns to pending only when
// its owner resubmits it. Delete is permitted from every state.
package moderation

import (
	"fmt"
	"strings"
	"time"

	"chandabaz/internal/models"
)

// Event is an action applied to a post
type Event string

const (
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventResubmit Event = "resubmit"
	EventDelete   Event = "delete"
)

// Transition error codes
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeReasonRequired    = "REASON_REQUIRED"
	CodeNotAdmin          = "NOT_ADMIN"
	CodeNotOwner          = "NOT_OWNER"
)

// Actor is the account performing an event
type Actor struct {
	ID   string
	Role models.Role
}

// IsAdmin reports whether the actor is an administrator
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Owns reports whether the actor authored the post
func (a Actor) Owns(post *models.Post) bool {
	return a.ID != "" && post != nil && a.ID == post.AuthorID
}

// validTransitions maps the current status and event to the resulting status
var validTransitions = map[models.Status]map[Event]models.Status{
	models.StatusPending: {
		EventApprove: models.StatusApproved,
		EventReject:  models.StatusRejected,
	},
	models.StatusApproved: {
		EventReject: models.StatusRejected,
	},
	models.StatusRejected: {
		EventResubmit: models.StatusPending,
	},
}

// TransitionError describes a refused event
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Next returns the status reached by applying event to from
func Next(from models.Status, event Event) (models.Status, bool) {
	to, ok := validTransitions[from][event]
	return to, ok
}

// CanApply reports whether event is a legal move out of from.
// Delete is legal from any known status.
func CanApply(from models.Status, event Event) bool {
	if event == EventDelete {
		return from.Valid()
	}
	_, ok := Next(from, event)
	return ok
}

// Authorize checks the role and ownership guard of an event
func Authorize(event Event, actor Actor, post *models.Post) error {
	switch event {
	case EventApprove, EventReject:
		if !actor.IsAdmin() {
			return &TransitionError{Code: CodeNotAdmin, Message: "only administrators can " + string(event) + " posts"}
		}
	case EventResubmit:
		if !actor.Owns(post) {
			return &TransitionError{Code: CodeNotOwner, Message: "only the author can resubmit a post"}
		}
	case EventDelete:
		if !actor.Owns(post) && !actor.IsAdmin() {
			return &TransitionError{Code: CodeNotOwner, Message: "not authorized to delete this post"}
		}
	default:
		return &TransitionError{Code: CodeInvalidTransition, Message: fmt.Sprintf("unknown event %q", event)}
	}
	return nil
}

// Apply validates event against post and performs its side effects in place.
// It returns the status the post had before, for compare-and-set persistence.
// Delete only validates; removing the post is up to the caller.
func Apply(post *models.Post, event Event, actor Actor, reason string, now time.Time) (models.Status, error) {
	prev := post.Status

	if err := Authorize(event, actor, post); err != nil {
		return prev, err
	}

	reason = strings.TrimSpace(reason)
	if event == EventReject && reason == "" {
		return prev, &TransitionError{Code: CodeReasonRequired, Message: "a rejection reason is required"}
	}
	if event == EventDelete {
		return prev, nil
	}

	to, ok := Next(prev, event)
	if !ok {
		return prev, &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("cannot %s a post that is %s", event, prev),
		}
	}

	switch event {
	case EventApprove:
		approvedAt := now.UTC()
		approvedBy := actor.ID
		post.ApprovedAt = &approvedAt
		post.ApprovedBy = &approvedBy
		post.RejectionReason = nil
	case EventReject:
		post.RejectionReason = &reason
		post.ApprovedAt = nil
		post.ApprovedBy = nil
	case EventResubmit:
		post.RejectionReason = nil
		post.ApprovedAt = nil
		post.ApprovedBy = nil
	}

	post.Status = to
	post.UpdatedAt = now.UTC()
	return prev, nil
}

// CheckInvariants reports the first moderation invariant that post violates
func CheckInvariants(post *models.Post) error {
	hasReason := post.RejectionReason != nil && *post.RejectionReason != ""
	switch post.Status {
	case models.StatusRejected:
		if !hasReason {
			return fmt.Errorf("rejected post %s has no rejection reason", post.ID)
		}
	case models.StatusApproved:
		if post.ApprovedAt == nil || post.ApprovedBy == nil {
			return fmt.Errorf("approved post %s is missing approval fields", post.ID)
		}
		if hasReason {
			return fmt.Errorf("approved post %s still carries a rejection reason", post.ID)
		}
	case models.StatusPending:
		if hasReason {
			return fmt.Errorf("pending post %s still carries a rejection reason", post.ID)
		}
	default:
		return fmt.Errorf("post %s has unknown status %q", post.ID, post.Status)
	}
	if len(post.Media) > models.MaxMediaPerPost {
		return fmt.Errorf("post %s has %d media attachments", post.ID, len(post.Media))
	}
	return nil
}
