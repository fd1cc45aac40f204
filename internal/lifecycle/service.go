package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"wedlink/entity"
	"wedlink/internal/richtext"
	"wedlink/internal/slug"
	"wedlink/internal/validation"
	"wedlink/lib/sl"

	"github.com/google/uuid"
)

var (
	ErrReasonRequired = fmt.Errorf("%w: rejection reason required", ErrInvalidTransition)
	ErrForbidden      = errors.New("not allowed")
)

// Store is the part of the document store the lifecycle writes through.
type Store interface {
	GetInvitation(ctx context.Context, id string) (*entity.Invitation, error)
	WriteInvitation(ctx context.Context, id string, patch entity.InvitationPatch) (*entity.Invitation, error)
	DeleteInvitation(ctx context.Context, id string) error
	InsertApprovalRequest(ctx context.Context, req *entity.ApprovalRequest) error
	UpdateApprovalRequest(ctx context.Context, req *entity.ApprovalRequest) error
	OpenApprovalRequest(ctx context.Context, invitationID string) (*entity.ApprovalRequest, error)
}

// Invalidator drops cached public lookups by tag.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

// Event describes one completed transition.
type Event struct {
	Action     Action
	Invitation *entity.Invitation
	Request    *entity.ApprovalRequest // nil on revert
	Actor      *entity.User
}

// Notifier is told about every completed transition; failures are its own to log.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Service runs transitions against the store: it checks them with Apply, keeps the
// request history, invalidates cached lookups and fans out notifications.
type Service struct {
	store     Store
	cache     Invalidator
	notifiers []Notifier
	log       *slog.Logger
	now       func() time.Time
}

func NewService(store Store, cache Invalidator, log *slog.Logger) *Service {
	return &Service{
		store: store,
		cache: cache,
		log:   log.With(sl.Module("lifecycle")),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) AddNotifier(n Notifier) {
	if n != nil {
		s.notifiers = append(s.notifiers, n)
	}
}

// load fetches the invitation and checks action against it.
func (s *Service) load(ctx context.Context, id string, action Action, actor *entity.User) (*entity.Invitation, entity.Status, error) {
	inv, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, "", err
	}
	next, err := Apply(inv.Status, action, RoleFor(actor, inv, action))
	if err != nil {
		return nil, "", err
	}
	return inv, next, nil
}

// Submit asks for review. The content must pass validation and no request may be open.
func (s *Service) Submit(ctx context.Context, id string, actor *entity.User) (*entity.Invitation, error) {
	inv, next, err := s.load(ctx, id, ActionSubmit, actor)
	if err != nil {
		return nil, err
	}
	if err = validation.Check(inv.Content); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	log := s.log.With(sl.Invitation(id), sl.User(actor.ID))

	// a draft with an open request is left over from a failed write; close it first
	stale, err := s.store.OpenApprovalRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if stale != nil {
		log.Warn("withdrawing stale request", slog.String("request_id", stale.ID))
		if err = s.close(ctx, stale, entity.RequestWithdrawn, "", ""); err != nil {
			return nil, err
		}
	}

	req := &entity.ApprovalRequest{
		ID:           uuid.NewString(),
		InvitationID: id,
		RequesterID:  actor.ID,
		Status:       entity.RequestPending,
		Kind:         entity.KindReview,
		CreatedAt:    s.now(),
	}
	if err = s.store.InsertApprovalRequest(ctx, req); err != nil {
		return nil, err
	}

	updated, err := s.write(ctx, id, entity.InvitationPatch{Status: &next}, s.withdraw(ctx, req))
	if err != nil {
		return nil, err
	}

	log.Info("submitted for approval", slog.String("request_id", req.ID))
	s.finish(ctx, ActionSubmit, updated, req, actor)
	return updated, nil
}

// Cancel withdraws the open request and returns to draft.
func (s *Service) Cancel(ctx context.Context, id string, actor *entity.User) (*entity.Invitation, error) {
	_, next, err := s.load(ctx, id, ActionCancel, actor)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	req, undo, err := s.settle(ctx, id, entity.RequestWithdrawn, "", "")
	if err != nil {
		return nil, err
	}
	updated, err := s.write(ctx, id, entity.InvitationPatch{Status: &next}, undo)
	if err != nil {
		return nil, err
	}

	s.log.With(sl.Invitation(id), sl.User(actor.ID)).Info("request cancelled")
	s.finish(ctx, ActionCancel, updated, req, actor)
	return updated, nil
}

// Approve publishes the invitation; note is optional and kept on the request.
func (s *Service) Approve(ctx context.Context, id string, actor *entity.User, note string) (*entity.Invitation, error) {
	_, next, err := s.load(ctx, id, ActionApprove, actor)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	req, undo, err := s.settle(ctx, id, entity.RequestApproved, actor.ID, richtext.Sanitize(note))
	if err != nil {
		return nil, err
	}
	published := true
	updated, err := s.write(ctx, id, entity.InvitationPatch{Status: &next, Published: &published}, undo)
	if err != nil {
		return nil, err
	}

	s.log.With(sl.Invitation(id), sl.User(actor.ID)).Info("approved")
	s.finish(ctx, ActionApprove, updated, req, actor)
	return updated, nil
}

// Reject returns the invitation to draft with a reason the owner will see.
func (s *Service) Reject(ctx context.Context, id string, actor *entity.User, reason string) (*entity.Invitation, error) {
	_, next, err := s.load(ctx, id, ActionReject, actor)
	if err != nil {
		return nil, err
	}
	if richtext.IsBlank(reason) {
		return nil, ErrReasonRequired
	}
	ctx = context.WithoutCancel(ctx)

	req, undo, err := s.settle(ctx, id, entity.RequestRejected, actor.ID, richtext.Sanitize(reason))
	if err != nil {
		return nil, err
	}
	updated, err := s.write(ctx, id, entity.InvitationPatch{Status: &next}, undo)
	if err != nil {
		return nil, err
	}

	s.log.With(sl.Invitation(id), sl.User(actor.ID)).Info("rejected")
	s.finish(ctx, ActionReject, updated, req, actor)
	return updated, nil
}

// Revoke takes an approved invitation down. It is recorded as a rejected request of
// kind revocation so the owner sees why; the reason may be empty.
func (s *Service) Revoke(ctx context.Context, id string, actor *entity.User, reason string) (*entity.Invitation, error) {
	inv, next, err := s.load(ctx, id, ActionRevoke, actor)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	now := s.now()
	req := &entity.ApprovalRequest{
		ID:              uuid.NewString(),
		InvitationID:    id,
		RequesterID:     inv.OwnerID,
		Status:          entity.RequestRejected,
		Kind:            entity.KindRevocation,
		RejectionReason: richtext.Sanitize(reason),
		ReviewerID:      actor.ID,
		CreatedAt:       now,
		ReviewedAt:      &now,
	}
	if err = s.store.InsertApprovalRequest(ctx, req); err != nil {
		return nil, err
	}
	updated, err := s.write(ctx, id, entity.InvitationPatch{Status: &next}, s.withdraw(ctx, req))
	if err != nil {
		return nil, err
	}

	s.log.With(sl.Invitation(id), sl.User(actor.ID)).Info("revoked")
	s.finish(ctx, ActionRevoke, updated, req, actor)
	return updated, nil
}

// Revert lets the owner take an approved invitation back to draft to edit it.
func (s *Service) Revert(ctx context.Context, id string, actor *entity.User) (*entity.Invitation, error) {
	_, next, err := s.load(ctx, id, ActionRevert, actor)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	updated, err := s.write(ctx, id, entity.InvitationPatch{Status: &next}, nil)
	if err != nil {
		return nil, err
	}

	s.log.With(sl.Invitation(id), sl.User(actor.ID)).Info("reverted to draft")
	s.finish(ctx, ActionRevert, updated, nil, actor)
	return updated, nil
}

// Delete removes an invitation of its owner unless it is waiting for review.
// Request history is kept.
func (s *Service) Delete(ctx context.Context, id string, actor *entity.User) error {
	inv, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return err
	}
	if !inv.IsOwner(actor) {
		return ErrForbidden
	}
	if !CanDelete(inv.Status) {
		return fmt.Errorf("%w: delete from %s", ErrInvalidTransition, inv.Status)
	}
	ctx = context.WithoutCancel(ctx)
	if err = s.store.DeleteInvitation(ctx, id); err != nil {
		return err
	}
	s.log.With(sl.Invitation(id), sl.User(actor.ID)).Info("deleted")
	s.invalidate(ctx, inv)
	return nil
}

// settle closes the open request of an invitation before its status is written, and
// returns the undo to run if that write fails. Invitations decoded from legacy flags may
// be pending without a request; a settled record is created for them instead.
func (s *Service) settle(ctx context.Context, id string, status entity.RequestStatus, reviewerID, reason string) (*entity.ApprovalRequest, func(), error) {
	req, err := s.store.OpenApprovalRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req != nil {
		prev := *req
		if err = s.close(ctx, req, status, reviewerID, reason); err != nil {
			return nil, nil, err
		}
		return req, s.restore(ctx, &prev), nil
	}
	if status == entity.RequestWithdrawn {
		return nil, nil, nil
	}
	now := s.now()
	req = &entity.ApprovalRequest{
		ID:           uuid.NewString(),
		InvitationID: id,
		Kind:         entity.KindReview,
		CreatedAt:    now,
	}
	setOutcome(req, status, reviewerID, reason, now)
	if err = s.store.InsertApprovalRequest(ctx, req); err != nil {
		return nil, nil, err
	}
	return req, s.withdraw(ctx, req), nil
}

// write stores the new status. When it fails, undo puts the request history back
// the way it was before the transition.
func (s *Service) write(ctx context.Context, id string, patch entity.InvitationPatch, undo func()) (*entity.Invitation, error) {
	updated, err := s.store.WriteInvitation(ctx, id, patch)
	if err != nil {
		if undo != nil {
			undo()
		}
		return nil, err
	}
	return updated, nil
}

func (s *Service) withdraw(ctx context.Context, req *entity.ApprovalRequest) func() {
	return func() {
		if err := s.close(ctx, req, entity.RequestWithdrawn, "", ""); err != nil {
			s.log.With(sl.Invitation(req.InvitationID)).Error("compensate request", slog.String("request_id", req.ID), sl.Err(err))
		}
	}
}

func (s *Service) restore(ctx context.Context, prev *entity.ApprovalRequest) func() {
	return func() {
		if err := s.store.UpdateApprovalRequest(ctx, prev); err != nil {
			s.log.With(sl.Invitation(prev.InvitationID)).Error("compensate request", slog.String("request_id", prev.ID), sl.Err(err))
		}
	}
}

func (s *Service) close(ctx context.Context, req *entity.ApprovalRequest, status entity.RequestStatus, reviewerID, reason string) error {
	setOutcome(req, status, reviewerID, reason, s.now())
	return s.store.UpdateApprovalRequest(ctx, req)
}

func setOutcome(req *entity.ApprovalRequest, status entity.RequestStatus, reviewerID, reason string, at time.Time) {
	req.Status = status
	req.ReviewerID = reviewerID
	req.ReviewedAt = &at
	switch status {
	case entity.RequestRejected:
		req.RejectionReason = reason
	case entity.RequestApproved:
		req.Note = reason
	}
}

func (s *Service) finish(ctx context.Context, action Action, inv *entity.Invitation, req *entity.ApprovalRequest, actor *entity.User) {
	s.invalidate(ctx, inv)
	event := Event{Action: action, Invitation: inv, Request: req, Actor: actor}
	for _, n := range s.notifiers {
		n.Notify(ctx, event)
	}
}

func (s *Service) invalidate(ctx context.Context, inv *entity.Invitation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slug.Tags(inv.ID, inv.Slug)...); err != nil {
		s.log.With(sl.Invitation(inv.ID)).Warn("cache invalidate", sl.Err(err))
	}
}
