// Package notify turns the approval history of an invitation into what its owner is shown.
package notify

import "wedlink/entity"

type State string

const (
	StateNone     State = "none"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateRevoked  State = "revoked"
)

// PlaceholderReason stands in for a rejection or revocation without a written reason.
const PlaceholderReason = "<p>No reason was given. Please contact support for details.</p>"

var badges = map[State]string{
	StateApproved: "Published",
	StateRejected: "Changes requested",
	StateRevoked:  "Unpublished",
}

type Notification struct {
	State  State  `json:"state"`
	Badge  string `json:"badge,omitempty"`
	Reason string `json:"reason,omitempty"` // sanitized markup
}

// Project derives the notification from the latest request and the current status.
// An approval is only shown while the invitation is still approved, and a rejection
// only while it is back in draft.
func Project(latest *entity.ApprovalRequest, status entity.Status) Notification {
	if latest == nil {
		return Notification{State: StateNone}
	}
	switch {
	case latest.Status == entity.RequestApproved && status == entity.StatusApproved:
		return Notification{State: StateApproved, Badge: badges[StateApproved], Reason: latest.Note}
	case latest.Status == entity.RequestRejected && status == entity.StatusDraft:
		state := StateRejected
		if latest.IsRevocation() {
			state = StateRevoked
		}
		reason := latest.RejectionReason
		if reason == "" {
			reason = PlaceholderReason
		}
		return Notification{State: state, Badge: badges[state], Reason: reason}
	}
	return Notification{State: StateNone}
}
