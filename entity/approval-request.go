package entity

import (
	"net/http"
	"time"
	"wedlink/lib/validate"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestWithdrawn RequestStatus = "withdrawn" // cancelled by the owner, never counts as open
)

// RequestKind tells a regular review apart from the synthetic request written on revoke.
type RequestKind string

const (
	KindReview     RequestKind = "review"
	KindRevocation RequestKind = "revocation"
)

// ApprovalRequest is one append-only record of an owner asking for review.
// Records are never deleted; at most one per invitation is RequestPending at a time.
type ApprovalRequest struct {
	ID              string        `json:"id" bson:"_id"`
	InvitationID    string        `json:"invitation_id" bson:"invitation_id"`
	RequesterID     string        `json:"requester_id" bson:"requester_id"`
	Status          RequestStatus `json:"status" bson:"status"`
	Kind            RequestKind   `json:"kind" bson:"kind"`
	RejectionReason string        `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	Note            string        `json:"note,omitempty" bson:"note,omitempty"`
	ReviewerID      string        `json:"reviewer_id,omitempty" bson:"reviewer_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
}

func (r *ApprovalRequest) IsOpen() bool {
	return r != nil && r.Status == RequestPending
}

func (r *ApprovalRequest) IsRevocation() bool {
	return r != nil && r.Kind == KindRevocation
}

// ReviewRequest is the body of admin review calls (approve note, reject reason).
type ReviewRequest struct {
	Reason string `json:"reason" validate:"max=4000"`
}

func (r *ReviewRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
