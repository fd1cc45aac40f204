package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"wedlink/entity"
	"wedlink/internal/editor"
	"wedlink/internal/lifecycle"
	"wedlink/internal/notify"
	"wedlink/internal/validation"
	"wedlink/lib/sl"

	"github.com/google/uuid"
)

type AuthService interface {
	AuthenticateByToken(ctx context.Context, token string) (*entity.User, error)
}

// Repository is the read side of the document store plus invitation creation.
type Repository interface {
	CreateInvitation(ctx context.Context, inv *entity.Invitation) error
	GetInvitation(ctx context.Context, id string) (*entity.Invitation, error)
	ListInvitations(ctx context.Context, ownerID string) ([]*entity.Invitation, error)
	LatestApprovalRequest(ctx context.Context, invitationID string) (*entity.ApprovalRequest, error)
	ApprovalRequests(ctx context.Context, invitationID string) ([]*entity.ApprovalRequest, error)
	PendingApprovalRequests(ctx context.Context) ([]*entity.ApprovalRequest, error)
}

// PublicResolver finds the approved invitation behind a public address segment.
type PublicResolver interface {
	Resolve(ctx context.Context, raw string) (*entity.Invitation, error)
}

// Core is what the HTTP api and the bot call; it checks who may see what and
// hands the work to the lifecycle service, the edit sessions and the resolver.
type Core struct {
	repo      Repository
	lifecycle *lifecycle.Service
	sessions  *editor.Registry
	resolver  PublicResolver
	auth      AuthService
	log       *slog.Logger
	now       func() time.Time
}

func New(repo Repository, svc *lifecycle.Service, sessions *editor.Registry, resolver PublicResolver, log *slog.Logger) *Core {
	if repo == nil || svc == nil {
		panic("core needs a repository and a lifecycle service")
	}
	return &Core{
		repo:      repo,
		lifecycle: svc,
		sessions:  sessions,
		resolver:  resolver,
		log:       log.With(sl.Module("core")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.AuthenticateByToken(ctx, token)
}

func (c *Core) ListInvitations(ctx context.Context, user *entity.User) ([]*entity.Invitation, error) {
	return c.repo.ListInvitations(ctx, user.ID)
}

// CreateInvitation starts a new draft owned by user.
func (c *Core) CreateInvitation(ctx context.Context, user *entity.User, req *entity.NewInvitationRequest) (*entity.Invitation, error) {
	now := c.now()
	inv := &entity.Invitation{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Slug:      strings.TrimSpace(req.Slug),
		Content:   req.Content.Clone(),
		Status:    entity.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	c.log.With(sl.Invitation(inv.ID), sl.User(user.ID)).Info("invitation created")
	return inv, nil
}

// GetInvitation returns the invitation if user owns it or is an admin.
func (c *Core) GetInvitation(ctx context.Context, user *entity.User, id string) (*entity.Invitation, error) {
	inv, err := c.repo.GetInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.IsOwner(user) && !user.IsAdmin() {
		return nil, lifecycle.ErrForbidden
	}
	return inv, nil
}

func (c *Core) DeleteInvitation(ctx context.Context, user *entity.User, id string) error {
	return c.lifecycle.Delete(ctx, id, user)
}

// ValidateInvitation lists what blocks submission of the stored invitation.
func (c *Core) ValidateInvitation(ctx context.Context, user *entity.User, id string) ([]entity.Issue, error) {
	inv, err := c.GetInvitation(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return validation.Validate(inv.Content), nil
}

// Transition runs one lifecycle action; reason is the approve note or the reject/revoke reason.
func (c *Core) Transition(ctx context.Context, user *entity.User, id string, action lifecycle.Action, reason string) (*entity.Invitation, error) {
	switch action {
	case lifecycle.ActionSubmit:
		return c.lifecycle.Submit(ctx, id, user)
	case lifecycle.ActionCancel:
		return c.lifecycle.Cancel(ctx, id, user)
	case lifecycle.ActionApprove:
		return c.lifecycle.Approve(ctx, id, user, reason)
	case lifecycle.ActionReject:
		return c.lifecycle.Reject(ctx, id, user, reason)
	case lifecycle.ActionRevoke:
		return c.lifecycle.Revoke(ctx, id, user, reason)
	case lifecycle.ActionRevert:
		return c.lifecycle.Revert(ctx, id, user)
	}
	return nil, fmt.Errorf("%w: unknown action %q", lifecycle.ErrInvalidTransition, action)
}

// Notification is the decision banner the owner sees for the invitation.
func (c *Core) Notification(ctx context.Context, user *entity.User, id string) (notify.Notification, error) {
	inv, err := c.GetInvitation(ctx, user, id)
	if err != nil {
		return notify.Notification{}, err
	}
	latest, err := c.repo.LatestApprovalRequest(ctx, id)
	if err != nil {
		return notify.Notification{}, err
	}
	return notify.Project(latest, inv.Status), nil
}

// Requests returns the approval history of the invitation, oldest first.
func (c *Core) Requests(ctx context.Context, user *entity.User, id string) ([]*entity.ApprovalRequest, error) {
	if _, err := c.GetInvitation(ctx, user, id); err != nil {
		return nil, err
	}
	return c.repo.ApprovalRequests(ctx, id)
}

// PendingRequests is the review queue; admins only.
func (c *Core) PendingRequests(ctx context.Context, user *entity.User) ([]*entity.ApprovalRequest, error) {
	if !user.IsAdmin() {
		return nil, lifecycle.ErrForbidden
	}
	return c.repo.PendingApprovalRequests(ctx)
}

func (c *Core) OpenSession(ctx context.Context, user *entity.User, invitationID string) (*editor.Session, error) {
	if c.sessions == nil {
		return nil, fmt.Errorf("edit sessions not connected")
	}
	return c.sessions.Open(ctx, invitationID, user)
}

// Save runs the save pipeline of the session through its handler cell.
func (c *Core) Save(ctx context.Context, user *entity.User, sessionID, trigger string, snapshot entity.Snapshot) (editor.Result, error) {
	s, err := c.session(user, sessionID)
	if err != nil {
		return editor.Result{}, err
	}
	return s.Bind(trigger)(ctx, snapshot)
}

func (c *Core) Upload(ctx context.Context, user *entity.User, sessionID string, open editor.Opener) (string, error) {
	s, err := c.session(user, sessionID)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, open)
}

func (c *Core) CloseSession(user *entity.User, sessionID string) error {
	if _, err := c.session(user, sessionID); err != nil {
		return err
	}
	c.sessions.Close(sessionID)
	return nil
}

func (c *Core) session(user *entity.User, sessionID string) (*editor.Session, error) {
	if c.sessions == nil {
		return nil, editor.ErrSessionNotFound
	}
	return c.sessions.Get(sessionID, user)
}

// ResolvePublic serves an approved invitation by its address segment.
func (c *Core) ResolvePublic(ctx context.Context, raw string) (*entity.Invitation, error) {
	return c.resolver.Resolve(ctx, raw)
}
