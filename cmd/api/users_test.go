package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"groundz/internal/events"
	"groundz/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFollowerStore struct {
	mu          sync.Mutex
	circle      []uuid.UUID
	followersOf map[uuid.UUID]int
	block       chan struct{} // when set, edge mutations wait until closed
}

func (s *fakeFollowerStore) Follow(ctx context.Context, followerID, userID uuid.UUID) error {
	if s.block != nil {
		<-s.block
	}
	return nil
}

func (s *fakeFollowerStore) Unfollow(ctx context.Context, followerID, userID uuid.UUID) error {
	if s.block != nil {
		<-s.block
	}
	return nil
}

func (s *fakeFollowerStore) CircleIDs(ctx context.Context, viewerID uuid.UUID) ([]uuid.UUID, error) {
	return s.circle, nil
}

func (s *fakeFollowerStore) ListFollowers(ctx context.Context, profileID, viewerID uuid.UUID) ([]store.FollowProfile, error) {
	return nil, nil
}

func (s *fakeFollowerStore) ListFollowing(ctx context.Context, profileID, viewerID uuid.UUID) ([]store.FollowProfile, error) {
	return nil, nil
}

func (s *fakeFollowerStore) Counts(ctx context.Context, userID uuid.UUID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followersOf[userID], len(s.circle), nil
}

type noTokensStore struct{}

func (noTokensStore) AddOrUpdatePushToken(ctx context.Context, userID uuid.UUID, token string, deviceInfo []byte) error {
	return nil
}

func (noTokensStore) RemovePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	return nil
}

func (noTokensStore) GetTokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	return map[uuid.UUID][]string{}, nil
}

func newFollowTestApp(fs *fakeFollowerStore) *application {
	return &application{
		logger:  zap.NewNop().Sugar(),
		bus:     events.NewMemoryBus(),
		follows: newFollowSessions(),
		store: store.Storage{
			Followers:  fs,
			PushTokens: noTokensStore{},
		},
	}
}

func followRouter(app *application) http.Handler {
	r := chi.NewRouter()
	r.Put("/users/{userID}/follow", app.followUserHandler)
	r.Put("/users/{userID}/unfollow", app.unfollowUserHandler)
	return r
}

func doFollow(t *testing.T, router http.Handler, viewer *store.User, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, path, nil)
	req = req.WithContext(context.WithValue(req.Context(), userCtx, viewer))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func drainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

// Following two different profiles back to back must publish each profile's
// follower-count change, with the count seeded from that profile's storage row.
func TestFollowAcrossProfilesPublishesBothFollowerCounts(t *testing.T) {
	profileA := uuid.New()
	profileB := uuid.New()
	fs := &fakeFollowerStore{followersOf: map[uuid.UUID]int{profileA: 5, profileB: 11}}
	app := newFollowTestApp(fs)
	router := followRouter(app)
	viewer := &store.User{ID: uuid.New(), Username: "asha"}

	followerCh, cancel := app.bus.Subscribe(events.TopicFollowerCount)
	defer cancel()

	rr := doFollow(t, router, viewer, "/users/"+profileA.String()+"/follow")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doFollow(t, router, viewer, "/users/"+profileB.String()+"/follow")
	require.Equal(t, http.StatusNoContent, rr.Code)

	got := drainEvents(followerCh)
	require.Len(t, got, 2)
	assert.Equal(t, profileA, got[0].UserID)
	assert.Equal(t, 1, got[0].CountChange)
	assert.Equal(t, profileB, got[1].UserID)
	assert.Equal(t, 1, got[1].CountChange)

	toggler := app.follows.togglers[viewer.ID]
	require.NotNil(t, toggler)
	assert.Equal(t, profileB, toggler.Profile())
	assert.Equal(t, 12, toggler.FollowerCount(), "seeded from B's row plus the new edge")
}

// A follow that lands while an unfollow for the same target is still
// resolving is accepted as a no-op rather than reported as a conflict.
func TestFollowWhileToggleInFlightIsAccepted(t *testing.T) {
	target := uuid.New()
	viewer := &store.User{ID: uuid.New(), Username: "asha"}
	fs := &fakeFollowerStore{
		circle:      []uuid.UUID{target},
		followersOf: map[uuid.UUID]int{target: 3},
		block:       make(chan struct{}),
	}
	app := newFollowTestApp(fs)
	router := followRouter(app)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- doFollow(t, router, viewer, "/users/"+target.String()+"/unfollow")
	}()

	// wait for the optimistic flip; the storage call is still blocked
	require.Eventually(t, func() bool {
		app.follows.mu.Lock()
		toggler := app.follows.togglers[viewer.ID]
		app.follows.mu.Unlock()
		return toggler != nil && !toggler.IsFollowing(target)
	}, time.Second, time.Millisecond)

	rr := doFollow(t, router, viewer, "/users/"+target.String()+"/follow")
	assert.Equal(t, http.StatusAccepted, rr.Code)

	close(fs.block)
	require.Equal(t, http.StatusNoContent, (<-first).Code)
	assert.False(t, app.follows.togglers[viewer.ID].IsFollowing(target))
}
