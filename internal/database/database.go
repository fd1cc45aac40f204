// Package database is the document store: invitations, their approval request
// history and the read-only user profiles.
//
// Writes are last-write-wins at the document level; nothing here coordinates
// concurrent writers to the same invitation.
package database

import (
	"errors"
	"fmt"
	"wedlink/entity"
	"wedlink/internal/lifecycle"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrSlugTaken = errors.New("slug already taken")
)

// invitationRecord is the stored shape of an invitation. Records written before the
// status field existed carry the two legacy flags instead.
type invitationRecord struct {
	entity.Invitation    `bson:",inline"`
	IsApproved           bool `bson:"is_approved,omitempty"`
	IsRequestingApproval bool `bson:"is_requesting_approval,omitempty"`
}

func (r *invitationRecord) decode() (*entity.Invitation, error) {
	inv := r.Invitation
	if inv.Status == "" {
		status, err := lifecycle.FromFlags(r.IsApproved, r.IsRequestingApproval)
		if err != nil {
			return nil, fmt.Errorf("invitation %s: %w", inv.ID, err)
		}
		inv.Status = status
	}
	if !inv.Status.Valid() {
		return nil, fmt.Errorf("invitation %s: %w: status %q", inv.ID, lifecycle.ErrIllegalState, inv.Status)
	}
	return inv.Clone(), nil
}

func applyPatch(inv *entity.Invitation, patch entity.InvitationPatch) {
	if patch.Slug != nil {
		inv.Slug = *patch.Slug
	}
	if patch.Content != nil {
		inv.Content = patch.Content.Clone()
	}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	if patch.Published != nil {
		inv.Published = *patch.Published
	}
}
