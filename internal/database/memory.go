package database

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
	"wedlink/entity"
)

// MemoryStore keeps everything in process; it backs local runs without mongo and tests.
// Values are copied on the way in and out, like a round trip through the database.
type MemoryStore struct {
	mu          sync.RWMutex
	invitations map[string]*entity.Invitation
	requests    []*entity.ApprovalRequest
	users       map[string]*entity.User
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invitations: make(map[string]*entity.Invitation),
		users:       make(map[string]*entity.User),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PutUser adds or replaces a profile.
func (s *MemoryStore) PutUser(user *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[u.ID] = &u
}

func (s *MemoryStore) slugTaken(slug, exceptID string) bool {
	if slug == "" {
		return false
	}
	for id, inv := range s.invitations {
		if id != exceptID && inv.Slug == slug {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateInvitation(_ context.Context, inv *entity.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[inv.ID]; ok {
		return fmt.Errorf("invitation %s already exists", inv.ID)
	}
	if s.slugTaken(inv.Slug, inv.ID) {
		return ErrSlugTaken
	}
	now := s.now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	s.invitations[inv.ID] = inv.Clone()
	return nil
}

func (s *MemoryStore) GetInvitation(_ context.Context, id string) (*entity.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inv.Clone(), nil
}

func (s *MemoryStore) ListInvitations(_ context.Context, ownerID string) ([]*entity.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*entity.Invitation, 0)
	for _, inv := range s.invitations {
		if inv.OwnerID == ownerID {
			list = append(list, inv.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *MemoryStore) FindBySlugs(_ context.Context, slugs []string) ([]*entity.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*entity.Invitation
	for _, inv := range s.invitations {
		if inv.Slug != "" && slices.Contains(slugs, inv.Slug) {
			list = append(list, inv.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *MemoryStore) WriteInvitation(_ context.Context, id string, patch entity.InvitationPatch) (*entity.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Slug != nil && s.slugTaken(*patch.Slug, id) {
		return nil, ErrSlugTaken
	}
	next := inv.Clone()
	applyPatch(next, patch)
	next.UpdatedAt = s.now()
	s.invitations[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) DeleteInvitation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[id]; !ok {
		return ErrNotFound
	}
	delete(s.invitations, id)
	return nil
}

func (s *MemoryStore) InsertApprovalRequest(_ context.Context, req *entity.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *req
	s.requests = append(s.requests, &r)
	return nil
}

func (s *MemoryStore) UpdateApprovalRequest(_ context.Context, req *entity.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.requests {
		if r.ID == req.ID {
			c := *req
			s.requests[i] = &c
			return nil
		}
	}
	return ErrNotFound
}

// requestsOf returns copies in insertion order, which is creation order.
func (s *MemoryStore) requestsOf(match func(*entity.ApprovalRequest) bool) []*entity.ApprovalRequest {
	list := make([]*entity.ApprovalRequest, 0)
	for _, r := range s.requests {
		if match(r) {
			c := *r
			list = append(list, &c)
		}
	}
	return list
}

func (s *MemoryStore) LatestApprovalRequest(_ context.Context, invitationID string) (*entity.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.requestsOf(func(r *entity.ApprovalRequest) bool { return r.InvitationID == invitationID })
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

func (s *MemoryStore) OpenApprovalRequest(_ context.Context, invitationID string) (*entity.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.requestsOf(func(r *entity.ApprovalRequest) bool {
		return r.InvitationID == invitationID && r.IsOpen()
	})
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

func (s *MemoryStore) ApprovalRequests(_ context.Context, invitationID string) ([]*entity.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestsOf(func(r *entity.ApprovalRequest) bool { return r.InvitationID == invitationID }), nil
}

func (s *MemoryStore) PendingApprovalRequests(_ context.Context) ([]*entity.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestsOf(func(r *entity.ApprovalRequest) bool { return r.IsOpen() }), nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) GetTelegramAdmins(_ context.Context) ([]*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*entity.User
	for _, u := range s.users {
		if u.IsAdmin() && u.TelegramId > 0 && u.TelegramEnabled {
			c := *u
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *MemoryStore) GetUserByTelegramId(_ context.Context, telegramId int64) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.TelegramId == telegramId {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetTelegramEnabled(_ context.Context, telegramId int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TelegramId == telegramId {
			u.TelegramEnabled = enabled
			return nil
		}
	}
	return ErrNotFound
}
