package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"wedlink/entity"
	"wedlink/internal/cache"
	"wedlink/internal/database"
	"wedlink/internal/lifecycle"
	"wedlink/internal/slug"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	owner = &entity.User{ID: "owner", Role: entity.RoleUser}
	admin = &entity.User{ID: "admin", Role: entity.RoleAdmin}
	other = &entity.User{ID: "other", Role: entity.RoleUser}
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validContent() entity.Content {
	return entity.Content{
		Groom:     entity.Person{Name: "Minjun Kim"},
		Bride:     entity.Person{Name: "Seoyeon Lee"},
		MainImage: "https://cdn.example.com/main.jpg",
		Event:     entity.Event{Date: "2026-05-16", Time: "13:30"},
		Venue:     entity.Venue{Name: "Grand Hall", Address: "1 Main St"},
		Greeting:  entity.Greeting{Title: "Hello", Body: "<p>Join us</p>"},
		Gallery:   []entity.Image{{URL: "https://cdn.example.com/1.jpg"}},
	}
}

// gatedStore blocks writes until released and counts them.
type gatedStore struct {
	*database.MemoryStore
	entered chan struct{}
	release chan struct{}
	writes  atomic.Int32
	err     error
}

func (g *gatedStore) WriteInvitation(ctx context.Context, id string, patch entity.InvitationPatch) (*entity.Invitation, error) {
	g.writes.Add(1)
	if g.entered != nil {
		g.entered <- struct{}{}
		<-g.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.MemoryStore.WriteInvitation(ctx, id, patch)
}

type panicStore struct {
	*database.MemoryStore
}

func (panicStore) GetInvitation(context.Context, string) (*entity.Invitation, error) {
	panic("boom")
}

type hostMock struct {
	mock.Mock
}

func (h *hostMock) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	args := h.Called(ctx, name, r)
	return args.String(0), args.Error(1)
}

func newStore(t *testing.T, inv *entity.Invitation) *database.MemoryStore {
	t.Helper()
	store := database.NewMemoryStore()
	require.NoError(t, store.CreateInvitation(context.Background(), inv))
	return store
}

func draft() *entity.Invitation {
	return &entity.Invitation{ID: "inv", OwnerID: owner.ID, Status: entity.StatusDraft}
}

func newTestSession(store Store, actor *entity.User) *Session {
	return newSession("sid", "inv", actor, store, nil, nil, discard())
}

func TestSaveAssignsSlugAndNavigates(t *testing.T) {
	store := newStore(t, draft())
	s := newTestSession(store, owner)
	s.newSlug = func() string { return "generated" }

	res, err := s.Save(context.Background(), entity.Snapshot{Content: validContent()})
	require.NoError(t, err)
	assert.False(t, res.Dropped)
	assert.Equal(t, "/invitations/inv", res.NavigateTo)
	assert.Equal(t, "generated", res.Invitation.Slug)

	// an existing slug is kept when the snapshot has none
	s.newSlug = func() string { return "other" }
	res, err = s.Save(context.Background(), entity.Snapshot{Content: validContent()})
	require.NoError(t, err)
	assert.Equal(t, "generated", res.Invitation.Slug)

	res, err = s.Save(context.Background(), entity.Snapshot{Slug: " kim-lee ", Content: validContent()})
	require.NoError(t, err)
	assert.Equal(t, "kim-lee", res.Invitation.Slug)
}

func TestGenerateSlug(t *testing.T) {
	a, b := GenerateSlug(), GenerateSlug()
	assert.Len(t, a, 10)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestSaveSingleFlight(t *testing.T) {
	store := &gatedStore{
		MemoryStore: newStore(t, draft()),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	s := newTestSession(store, owner)

	var wg sync.WaitGroup
	var first Result
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = s.Save(context.Background(), entity.Snapshot{Slug: "a", Content: validContent()})
	}()
	<-store.entered

	for _, trigger := range []string{"toolbar", "shortcut", "mobile"} {
		res, err := s.Bind(trigger)(context.Background(), entity.Snapshot{Slug: "b", Content: validContent()})
		require.NoError(t, err)
		assert.True(t, res.Dropped, trigger)
	}

	close(store.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, "a", first.Invitation.Slug)
	assert.EqualValues(t, 1, store.writes.Load())
	assert.False(t, s.Saving())
}

func TestSaveConcurrentTriggersWriteOnce(t *testing.T) {
	store := &gatedStore{
		MemoryStore: newStore(t, draft()),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	s := newTestSession(store, owner)

	var wg sync.WaitGroup
	var dropped atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Save(context.Background(), entity.Snapshot{Content: validContent()})
			assert.NoError(t, err)
			if res.Dropped {
				dropped.Add(1)
			}
		}()
	}
	<-store.entered
	require.Eventually(t, func() bool { return dropped.Load() == 15 }, time.Second, time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.EqualValues(t, 1, store.writes.Load())
}

func TestSaveUploadInProgress(t *testing.T) {
	store := newStore(t, draft())
	s := newTestSession(store, owner)

	done := s.BeginUpload()
	_, err := s.Save(context.Background(), entity.Snapshot{Content: validContent()})
	assert.ErrorIs(t, err, ErrUploadInProgress)
	assert.False(t, s.Saving(), "lock released on refusal")

	done()
	done() // second call is a no-op
	assert.False(t, s.Uploading())
	_, err = s.Save(context.Background(), entity.Snapshot{Content: validContent()})
	assert.NoError(t, err)
}

func TestSaveValidationFailure(t *testing.T) {
	store := newStore(t, draft())
	s := newTestSession(store, owner)

	content := validContent()
	content.Accounts = []entity.Account{{Bank: "KB"}}
	_, err := s.Save(context.Background(), entity.Snapshot{Content: content})
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, "Fill in bank, account number and holder, or leave the account empty.", err.Error())
	assert.False(t, s.Saving())

	stored, err := store.GetInvitation(context.Background(), "inv")
	require.NoError(t, err)
	assert.Empty(t, stored.Content.Accounts, "nothing written")
}

func TestSavePanicReleasesLock(t *testing.T) {
	s := newTestSession(panicStore{database.NewMemoryStore()}, owner)

	assert.Panics(t, func() {
		_, _ = s.Save(context.Background(), entity.Snapshot{Content: validContent()})
	})
	assert.False(t, s.Saving())
}

func TestSaveLockedForApproval(t *testing.T) {
	for _, status := range []entity.Status{entity.StatusPendingApproval, entity.StatusApproved} {
		inv := draft()
		inv.Status = status
		store := newStore(t, inv)

		_, err := newTestSession(store, owner).Save(context.Background(), entity.Snapshot{Content: validContent()})
		require.ErrorIs(t, err, ErrLockedForApproval, status)
		var locked *LockedError
		require.True(t, errors.As(err, &locked))
		assert.Equal(t, status, locked.Status)

		// admins may still correct content
		_, err = newTestSession(store, admin).Save(context.Background(), entity.Snapshot{Content: validContent()})
		assert.NoError(t, err, status)
	}
}

func TestSaveForbidden(t *testing.T) {
	store := newStore(t, draft())
	_, err := newTestSession(store, other).Save(context.Background(), entity.Snapshot{Content: validContent()})
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)
}

func TestSaveSlugImmutableOncePublished(t *testing.T) {
	inv := draft()
	inv.Slug = "kim"
	inv.Published = true
	store := newStore(t, inv)
	s := newTestSession(store, owner)

	_, err := s.Save(context.Background(), entity.Snapshot{Slug: "lee", Content: validContent()})
	assert.ErrorIs(t, err, ErrSlugImmutable)

	res, err := s.Save(context.Background(), entity.Snapshot{Slug: "kim", Content: validContent()})
	require.NoError(t, err)
	assert.Equal(t, "kim", res.Invitation.Slug)
}

func TestSavePersistenceFailed(t *testing.T) {
	store := &gatedStore{MemoryStore: newStore(t, draft()), err: errors.New("socket closed by 10.0.0.7")}
	s := newTestSession(store, owner)

	_, err := s.Save(context.Background(), entity.Snapshot{Content: validContent()})
	require.ErrorIs(t, err, ErrPersistenceFailed)
	assert.NotContains(t, err.Error(), "10.0.0.7")
	assert.False(t, s.Saving(), "next click may retry")

	store.err = nil
	_, err = s.Save(context.Background(), entity.Snapshot{Content: validContent()})
	assert.NoError(t, err)
}

func TestSaveSlugTaken(t *testing.T) {
	store := newStore(t, draft())
	require.NoError(t, store.CreateInvitation(context.Background(), &entity.Invitation{ID: "x", Slug: "kim"}))
	s := newTestSession(store, owner)

	_, err := s.Save(context.Background(), entity.Snapshot{Slug: "kim", Content: validContent()})
	assert.ErrorIs(t, err, database.ErrSlugTaken)
}

func TestSaveOutlivesCaller(t *testing.T) {
	store := &gatedStore{MemoryStore: newStore(t, draft())}
	s := newTestSession(store, owner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Save(ctx, entity.Snapshot{Slug: "kim", Content: validContent()})
	require.NoError(t, err)
	assert.Equal(t, "kim", res.Invitation.Slug)
}

func TestBoundTriggerUsesCurrentHandler(t *testing.T) {
	s := newTestSession(newStore(t, draft()), owner)
	toolbar := s.Bind("toolbar")
	shortcut := s.Bind("shortcut")

	var calls []string
	s.SetHandler(func(_ context.Context, snap entity.Snapshot) (Result, error) {
		calls = append(calls, snap.Slug)
		return Result{NavigateTo: "/replaced"}, nil
	})

	res, err := toolbar(context.Background(), entity.Snapshot{Slug: "t"})
	require.NoError(t, err)
	assert.Equal(t, "/replaced", res.NavigateTo)
	_, _ = shortcut(context.Background(), entity.Snapshot{Slug: "s"})
	assert.Equal(t, []string{"t", "s"}, calls)
}

func TestSaveInvalidatesPublicLookup(t *testing.T) {
	ctx := context.Background()
	inv := draft()
	inv.Slug = "kim"
	inv.Status = entity.StatusApproved
	inv.Published = true
	inv.Content = validContent()
	store := newStore(t, inv)
	resolver := slug.NewResolver(store, cache.NewMemory(), time.Minute, discard())

	before, err := resolver.Resolve(ctx, "kim")
	require.NoError(t, err)
	assert.Equal(t, "Hello", before.Content.Greeting.Title)

	s := newSession("sid", "inv", admin, store, resolver, nil, discard())
	content := validContent()
	content.Greeting.Title = "Corrected"
	_, err = s.Save(ctx, entity.Snapshot{Slug: "kim", Content: content})
	require.NoError(t, err)

	after, err := resolver.Resolve(ctx, "kim")
	require.NoError(t, err)
	assert.Equal(t, "Corrected", after.Content.Greeting.Title)
}

func TestUploadHoldsBusyFlag(t *testing.T) {
	host := &hostMock{}
	s := newSession("sid", "inv", owner, newStore(t, draft()), nil, host, discard())

	host.On("Upload", mock.Anything, "a.png", mock.Anything).Run(func(mock.Arguments) {
		assert.True(t, s.Uploading())
		_, err := s.Save(context.Background(), entity.Snapshot{Content: validContent()})
		assert.ErrorIs(t, err, ErrUploadInProgress)
	}).Return("https://cdn.example.com/a.png", nil).Once()
	host.On("Upload", mock.Anything, "b.png", mock.Anything).Return("", errors.New("too large")).Once()

	url, err := s.Upload(context.Background(), file("a.png", "x"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", url)
	assert.False(t, s.Uploading())

	_, err = s.Upload(context.Background(), file("b.png", "x"))
	assert.Error(t, err)
	assert.False(t, s.Uploading())
	host.AssertExpectations(t)
}

func file(name, data string) Opener {
	return func() (string, io.Reader, error) {
		return name, strings.NewReader(data), nil
	}
}

func TestUploadHoldsBusyFlagWhileReadingBody(t *testing.T) {
	host := &hostMock{}
	s := newSession("sid", "inv", owner, newStore(t, draft()), nil, host, discard())

	read := func() (string, io.Reader, error) {
		assert.True(t, s.Uploading())
		_, err := s.Save(context.Background(), entity.Snapshot{Content: validContent()})
		assert.ErrorIs(t, err, ErrUploadInProgress)
		return "", nil, errors.New("unexpected EOF")
	}

	_, err := s.Upload(context.Background(), read)
	assert.EqualError(t, err, "unexpected EOF")
	assert.False(t, s.Uploading())
	host.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}
