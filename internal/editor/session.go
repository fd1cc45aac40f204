// Package editor is the save pipeline of an edit session.
//
// A Session allows one save in flight at a time: a save started while another
// is running is dropped, not queued. Every trigger path calls the session's
// current Handler through one indirection cell, so a replaced handler takes
// effect for all of them at once.
package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"wedlink/entity"
	"wedlink/internal/assets"
	"wedlink/internal/database"
	"wedlink/internal/lifecycle"
	"wedlink/internal/slug"
	"wedlink/internal/validation"
	"wedlink/lib/sl"

	"github.com/google/uuid"
)

var (
	ErrUploadInProgress  = errors.New("an image is still uploading, try again when it finishes")
	ErrLockedForApproval = errors.New("invitation is locked")
	ErrPersistenceFailed = errors.New("could not save the invitation, please try again")
	ErrSlugImmutable     = errors.New("the address cannot change after the invitation was published")
	ErrValidationFailed  = validation.ErrFailed
)

// LockedError tells the owner why the invitation cannot be edited now.
type LockedError struct {
	Status entity.Status
}

func (e *LockedError) Error() string {
	switch e.Status {
	case entity.StatusPendingApproval:
		return "invitation is waiting for approval and cannot be edited"
	case entity.StatusApproved:
		return "invitation is already approved; revert it to draft to edit"
	}
	return ErrLockedForApproval.Error()
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLockedForApproval
}

// Store is the part of the document store a save needs.
type Store interface {
	GetInvitation(ctx context.Context, id string) (*entity.Invitation, error)
	WriteInvitation(ctx context.Context, id string, patch entity.InvitationPatch) (*entity.Invitation, error)
}

type Result struct {
	// Dropped is set when another save of the session was in flight; nothing was done.
	Dropped    bool               `json:"dropped,omitempty"`
	NavigateTo string             `json:"navigate_to,omitempty"`
	Invitation *entity.Invitation `json:"invitation,omitempty"`
}

// Handler saves a snapshot; it is what every trigger path ends up calling.
type Handler func(ctx context.Context, snapshot entity.Snapshot) (Result, error)

type Session struct {
	ID           string
	InvitationID string
	Actor        *entity.User

	store   Store
	cache   lifecycle.Invalidator
	assets  assets.Host
	log     *slog.Logger
	newSlug func() string
	now     func() time.Time

	saving   atomic.Bool
	uploads  atomic.Int32
	handler  atomic.Pointer[Handler]
	lastUsed atomic.Int64
}

func newSession(id, invitationID string, actor *entity.User, store Store, cache lifecycle.Invalidator, host assets.Host, log *slog.Logger) *Session {
	s := &Session{
		ID:           id,
		InvitationID: invitationID,
		Actor:        actor,
		store:        store,
		cache:        cache,
		assets:       host,
		log:          log.With(sl.Session(id), sl.Invitation(invitationID)),
		newSlug:      GenerateSlug,
		now:          time.Now,
	}
	s.SetHandler(s.Save)
	s.touch()
	return s
}

// GenerateSlug returns a short random slug for invitations saved without one.
func GenerateSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// SetHandler replaces the handler every bound trigger calls from now on.
func (s *Session) SetHandler(h Handler) {
	s.handler.Store(&h)
}

// Bind returns the function a trigger path calls. It reads the current handler on
// every call, so triggers bound before SetHandler still reach the new one.
func (s *Session) Bind(trigger string) Handler {
	return func(ctx context.Context, snapshot entity.Snapshot) (Result, error) {
		s.log.Debug("save triggered", slog.String("trigger", trigger))
		return (*s.handler.Load())(ctx, snapshot)
	}
}

// acquire takes the session's save token; ok is false when a save is in flight.
func (s *Session) acquire() (release func(), ok bool) {
	if !s.saving.CompareAndSwap(false, true) {
		return nil, false
	}
	return func() { s.saving.Store(false) }, true
}

// Saving reports whether a save is in flight.
func (s *Session) Saving() bool {
	return s.saving.Load()
}

// BeginUpload marks an upload as running until done is called; saves are refused meanwhile.
func (s *Session) BeginUpload() (done func()) {
	s.uploads.Add(1)
	s.touch()
	var once sync.Once
	return func() {
		once.Do(func() { s.uploads.Add(-1) })
	}
}

func (s *Session) Uploading() bool {
	return s.uploads.Load() > 0
}

// Opener yields the image of an upload as a stream and its file name.
type Opener func() (name string, r io.Reader, err error)

// Upload holds the upload flag from before open is called until the asset host has
// answered, so saves are refused for the whole transfer including the request body.
func (s *Session) Upload(ctx context.Context, open Opener) (string, error) {
	done := s.BeginUpload()
	defer done()
	name, r, err := open()
	if err != nil {
		return "", err
	}
	url, err := s.assets.Upload(ctx, name, r)
	if err != nil {
		s.log.Warn("upload failed", slog.String("name", name), sl.Err(err))
		return "", err
	}
	return url, nil
}

// Save runs the pipeline: guard, validation, slug, permission, persist, navigate.
func (s *Session) Save(ctx context.Context, snapshot entity.Snapshot) (Result, error) {
	release, ok := s.acquire()
	if !ok {
		s.log.Debug("save dropped, another one is in flight")
		return Result{Dropped: true}, nil
	}
	defer release()
	s.touch()

	if s.Uploading() {
		return Result{}, ErrUploadInProgress
	}

	if err := validation.Check(snapshot.Content); err != nil {
		s.log.Debug("save rejected by validation", sl.Err(err))
		return Result{}, err
	}

	current, err := s.store.GetInvitation(ctx, s.InvitationID)
	if err != nil {
		return Result{}, s.persistenceError("load", err)
	}

	slugValue := strings.TrimSpace(snapshot.Slug)
	switch {
	case slugValue == "" && current.Slug != "":
		slugValue = current.Slug
	case slugValue == "":
		slugValue = s.newSlug()
	}

	if !current.IsOwner(s.Actor) && !s.Actor.IsAdmin() {
		return Result{}, lifecycle.ErrForbidden
	}
	if !lifecycle.CanEdit(current.Status, s.Actor.IsAdmin()) {
		return Result{}, &LockedError{Status: current.Status}
	}
	if current.Published && slugValue != current.Slug {
		return Result{}, ErrSlugImmutable
	}

	content := snapshot.Content.Clone()
	patch := entity.InvitationPatch{Content: &content}
	if slugValue != current.Slug {
		patch.Slug = &slugValue
	}
	// the write completes even if the caller goes away
	saved, err := s.store.WriteInvitation(context.WithoutCancel(ctx), s.InvitationID, patch)
	if err != nil {
		if errors.Is(err, database.ErrSlugTaken) {
			return Result{}, err
		}
		return Result{}, s.persistenceError("write", err)
	}

	if s.cache != nil {
		if err = s.cache.Invalidate(context.WithoutCancel(ctx), slug.Tags(saved.ID, current.Slug, saved.Slug)...); err != nil {
			s.log.Warn("cache invalidate", sl.Err(err))
		}
	}

	s.log.Info("saved", slog.String("slug", saved.Slug))
	return Result{NavigateTo: NavigatePath(saved.ID), Invitation: saved}, nil
}

// NavigatePath is where the editor goes after a successful save.
func NavigatePath(invitationID string) string {
	return "/invitations/" + invitationID
}

func (s *Session) persistenceError(op string, err error) error {
	s.log.Error("save "+op, sl.Err(err))
	return ErrPersistenceFailed
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}

// idleSince is when the session was last used.
func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}
