package slug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"wedlink/entity"
	"wedlink/internal/cache"
	"wedlink/lib/sl"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound is the only failure a public lookup reports; it never says why.
var ErrNotFound = errors.New("invitation not found")

// Finder is the batched read side of the document store.
type Finder interface {
	FindBySlugs(ctx context.Context, slugs []string) ([]*entity.Invitation, error)
}

type Resolver struct {
	store Finder
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
	log   *slog.Logger
}

func NewResolver(store Finder, c cache.Cache, ttl time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		store: store,
		cache: c,
		ttl:   ttl,
		log:   log.With(sl.Module("slug.resolver")),
	}
}

// Resolve returns the approved invitation raw names.
// Lookup failures are logged and reported as ErrNotFound like any other miss.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*entity.Invitation, error) {
	candidates := Candidates(raw)
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	found, err := r.lookup(ctx, candidates)
	if err != nil {
		r.log.With(slog.String("slug", raw)).Error("slug lookup", sl.Err(err))
		return nil, ErrNotFound
	}

	visible := make([]*entity.Invitation, 0, len(found))
	for _, inv := range found {
		if inv.Status == entity.StatusApproved {
			visible = append(visible, inv)
		}
	}
	inv := pick(visible, raw)
	if inv == nil {
		return nil, ErrNotFound
	}
	return inv, nil
}

// Invalidate drops cached lookups tagged with tags.
func (r *Resolver) Invalidate(ctx context.Context, tags ...string) error {
	if r.cache == nil || len(tags) == 0 {
		return nil
	}
	return r.cache.Invalidate(ctx, tags...)
}

// lookup runs one batched store query per candidate set, shared by concurrent callers
// and cached for ttl.
func (r *Resolver) lookup(ctx context.Context, candidates []string) ([]*entity.Invitation, error) {
	key := Key(candidates)

	if r.cache != nil {
		data, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.log.Warn("cache get", sl.Err(err))
		} else if ok {
			var cached []*entity.Invitation
			if err = json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
			r.log.Warn("cache decode", sl.Err(err))
		}
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// shared by every waiting caller, so the first one's cancellation must not end it
		findCtx := context.WithoutCancel(ctx)
		stamp := r.stamp(findCtx, candidates)
		found, err := r.store.FindBySlugs(findCtx, candidates)
		if err != nil {
			return nil, fmt.Errorf("find by slugs: %w", err)
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].ID < found[j].ID })
		r.remember(findCtx, key, stamp, candidates, found)
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(v.([]*entity.Invitation)), nil
}

// stamp records the candidate slug tag versions before the store read. Every write
// that can change the answer invalidates the slug it is stored under, which is one of
// the candidates whenever it matters here.
func (r *Resolver) stamp(ctx context.Context, candidates []string) cache.Stamp {
	if r.cache == nil {
		return nil
	}
	tags := make([]string, len(candidates))
	for i, c := range candidates {
		tags[i] = SlugTag(c)
	}
	stamp, err := r.cache.Stamp(ctx, tags...)
	if err != nil {
		r.log.Warn("cache stamp", sl.Err(err))
		return nil
	}
	return stamp
}

// remember caches found unless an invalidation landed after stamp was taken.
func (r *Resolver) remember(ctx context.Context, key string, stamp cache.Stamp, candidates []string, found []*entity.Invitation) {
	if stamp == nil {
		return
	}
	data, err := json.Marshal(found)
	if err != nil {
		r.log.Warn("cache encode", sl.Err(err))
		return
	}
	tags := make([]string, 0, len(candidates)+len(found))
	for _, c := range candidates {
		tags = append(tags, SlugTag(c))
	}
	for _, inv := range found {
		tags = append(tags, InvitationTag(inv.ID))
	}
	stored, err := r.cache.SetFresh(ctx, key, data, r.ttl, stamp, tags...)
	if err != nil {
		r.log.Warn("cache set", sl.Err(err))
		return
	}
	if !stored {
		r.log.Debug("lookup overtaken by invalidation", slog.String("key", key))
	}
}

// pick prefers a stored slug identical to the raw segment, then the lowest ID.
func pick(found []*entity.Invitation, raw string) *entity.Invitation {
	if len(found) == 0 {
		return nil
	}
	for _, inv := range found {
		if inv.Slug == raw {
			return inv
		}
	}
	return found[0]
}

func cloneAll(list []*entity.Invitation) []*entity.Invitation {
	out := make([]*entity.Invitation, len(list))
	for i, inv := range list {
		out[i] = inv.Clone()
	}
	return out
}
