// Package lifecycle owns the invitation state machine.
//
// Apply is the only place a status changes: it is a total function over
// (status, action, role) and every combination outside the transition table
// fails with ErrInvalidTransition without producing a new status.
//
//	submit   owner  draft            -> pending_approval
//	cancel   owner  pending_approval -> draft
//	approve  admin  pending_approval -> approved
//	reject   admin  pending_approval -> draft
//	revoke   admin  approved         -> draft
//	revert   owner  approved         -> draft
package lifecycle

import (
	"errors"
	"fmt"
	"wedlink/entity"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrIllegalState      = errors.New("illegal lifecycle state")
)

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionCancel  Action = "cancel"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionRevoke  Action = "revoke"
	ActionRevert  Action = "revert"
)

// Actions lists every action in table order.
var Actions = []Action{ActionSubmit, ActionCancel, ActionApprove, ActionReject, ActionRevoke, ActionRevert}

// Role is the capacity the actor acts in for one action.
type Role int

const (
	RoleNone Role = iota
	RoleOwner
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	}
	return "none"
}

type transition struct {
	role Role
	from entity.Status
	to   entity.Status
}

var table = map[Action]transition{
	ActionSubmit:  {RoleOwner, entity.StatusDraft, entity.StatusPendingApproval},
	ActionCancel:  {RoleOwner, entity.StatusPendingApproval, entity.StatusDraft},
	ActionApprove: {RoleAdmin, entity.StatusPendingApproval, entity.StatusApproved},
	ActionReject:  {RoleAdmin, entity.StatusPendingApproval, entity.StatusDraft},
	ActionRevoke:  {RoleAdmin, entity.StatusApproved, entity.StatusDraft},
	ActionRevert:  {RoleOwner, entity.StatusApproved, entity.StatusDraft},
}

// Apply returns the status reached by action from status, acting as role.
func Apply(status entity.Status, action Action, role Role) (entity.Status, error) {
	t, ok := table[action]
	if !ok {
		return status, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if t.role != role {
		return status, fmt.Errorf("%w: %s requires %s, acting as %s", ErrInvalidTransition, action, t.role, role)
	}
	if t.from != status {
		return status, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, status)
	}
	return t.to, nil
}

// RequiredRole is the role an action is performed in.
func RequiredRole(action Action) Role {
	return table[action].role
}

// RoleFor resolves the capacity user acts in for action on inv.
// Admin actions need an admin; owner actions need the owner, whatever their role.
func RoleFor(user *entity.User, inv *entity.Invitation, action Action) Role {
	switch RequiredRole(action) {
	case RoleAdmin:
		if user.IsAdmin() {
			return RoleAdmin
		}
	case RoleOwner:
		if inv.IsOwner(user) {
			return RoleOwner
		}
	}
	return RoleNone
}

// CanEdit reports whether content may be changed in status; admins may edit in any status.
func CanEdit(status entity.Status, isAdmin bool) bool {
	return isAdmin || status == entity.StatusDraft
}

// CanDelete reports whether the owner may delete an invitation in status.
func CanDelete(status entity.Status) bool {
	return status.Valid() && status != entity.StatusPendingApproval
}

// FromFlags decodes the legacy two-flag representation.
// Approved and requesting at the same time has no meaning and is rejected.
func FromFlags(isApproved, isRequestingApproval bool) (entity.Status, error) {
	switch {
	case isApproved && isRequestingApproval:
		return "", fmt.Errorf("%w: approved and requesting approval", ErrIllegalState)
	case isApproved:
		return entity.StatusApproved, nil
	case isRequestingApproval:
		return entity.StatusPendingApproval, nil
	}
	return entity.StatusDraft, nil
}
