package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"wedlink/entity"
	"wedlink/internal/assets"
	"wedlink/internal/lifecycle"
	"wedlink/lib/sl"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var ErrSessionNotFound = errors.New("edit session not found")

// Registry keeps the open edit sessions by id and sweeps idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    Store
	cache    lifecycle.Invalidator
	assets   assets.Host
	idle     time.Duration
	log      *slog.Logger
	now      func() time.Time
	cron     *cron.Cron
}

func NewRegistry(store Store, cache lifecycle.Invalidator, host assets.Host, idle time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		cache:    cache,
		assets:   host,
		idle:     idle,
		log:      log.With(sl.Module("editor")),
		now:      time.Now,
	}
}

// Open starts an edit session of invitationID for actor, who must be its owner or an admin.
func (r *Registry) Open(ctx context.Context, invitationID string, actor *entity.User) (*Session, error) {
	inv, err := r.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if !inv.IsOwner(actor) && !actor.IsAdmin() {
		return nil, lifecycle.ErrForbidden
	}

	s := newSession(uuid.NewString(), invitationID, actor, r.store, r.cache, r.assets, r.log)
	s.now = r.now
	s.touch()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	s.log.Debug("session opened", sl.User(actor.ID))
	return s, nil
}

// Get returns the session id if it belongs to actor.
func (r *Registry) Get(id string, actor *entity.User) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok || actor == nil || s.Actor.ID != actor.ID {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Close forgets a session; a save in flight still completes.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the idle timeout, skipping busy ones.
func (r *Registry) Sweep() int {
	limit := r.now().Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.Saving() || s.Uploading() || s.idleSince().After(limit) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	if removed > 0 {
		r.log.Debug("idle sessions swept", slog.Int("count", removed), slog.Int("open", len(r.sessions)))
	}
	return removed
}

// StartSweeper runs Sweep on schedule until Stop.
func (r *Registry) StartSweeper(schedule string) error {
	r.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := r.cron.AddFunc(schedule, func() { r.Sweep() }); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Registry) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
