package follow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"groundz/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore counts edge mutations and can fail or block on demand.
type fakeStore struct {
	mu        sync.Mutex
	follows   int
	unfollows int
	err       error
	block     chan struct{} // when set, mutations wait until closed
}

func (s *fakeStore) Follow(ctx context.Context, followerID, userID uuid.UUID) error {
	return s.mutate(&s.follows)
}

func (s *fakeStore) Unfollow(ctx context.Context, followerID, userID uuid.UUID) error {
	return s.mutate(&s.unfollows)
}

func (s *fakeStore) mutate(counter *int) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	*counter++
	return nil
}

func newToggler(store *fakeStore, bus events.Bus, profileID uuid.UUID) (*Toggler, uuid.UUID) {
	viewer := uuid.New()
	return NewToggler(viewer, profileID, store, bus, zap.NewNop().Sugar()), viewer
}

func drain(ch <-chan events.Event) []events.Event {
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

func TestToggleFollowPublishesCounts(t *testing.T) {
	store := &fakeStore{}
	bus := events.NewMemoryBus()
	target := uuid.New()
	toggler, viewer := newToggler(store, bus, target) // viewing the target's profile
	toggler.Seed(nil, 10, 3)

	followingCh, cancelFollowing := bus.Subscribe(events.TopicFollowingCount)
	defer cancelFollowing()
	followerCh, cancelFollower := bus.Subscribe(events.TopicFollowerCount)
	defer cancelFollower()

	require.NoError(t, toggler.Toggle(context.Background(), target))

	assert.True(t, toggler.IsFollowing(target))
	assert.Equal(t, 11, toggler.FollowerCount())
	assert.Equal(t, 4, toggler.FollowingCount())
	assert.Equal(t, 1, store.follows)

	followingEvents := drain(followingCh)
	require.Len(t, followingEvents, 1)
	assert.Equal(t, viewer, followingEvents[0].UserID)
	assert.Equal(t, 1, followingEvents[0].CountChange)
	assert.True(t, followingEvents[0].Immediate)

	followerEvents := drain(followerCh)
	require.Len(t, followerEvents, 1)
	assert.Equal(t, target, followerEvents[0].UserID)
	assert.Equal(t, 1, followerEvents[0].CountChange)
}

func TestToggleTwiceUnfollows(t *testing.T) {
	store := &fakeStore{}
	bus := events.NewMemoryBus()
	target := uuid.New()
	toggler, _ := newToggler(store, bus, target)
	toggler.Seed(nil, 10, 3)

	require.NoError(t, toggler.Toggle(context.Background(), target))
	require.NoError(t, toggler.Toggle(context.Background(), target))

	assert.False(t, toggler.IsFollowing(target))
	assert.Equal(t, 10, toggler.FollowerCount())
	assert.Equal(t, 3, toggler.FollowingCount())
	assert.Equal(t, 1, store.follows)
	assert.Equal(t, 1, store.unfollows)
}

// A failed mutation must leave local state bit for bit equal to the
// pre-toggle state, and publish nothing.
func TestToggleRollsBackOnFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("edge insert failed")}
	bus := events.NewMemoryBus()
	target := uuid.New()
	toggler, _ := newToggler(store, bus, target)
	toggler.Seed([]uuid.UUID{uuid.New()}, 10, 3)

	followingCh, cancel := bus.Subscribe(events.TopicFollowingCount)
	defer cancel()

	err := toggler.Toggle(context.Background(), target)
	require.Error(t, err)

	assert.False(t, toggler.IsFollowing(target))
	assert.Equal(t, 10, toggler.FollowerCount())
	assert.Equal(t, 3, toggler.FollowingCount())
	assert.Empty(t, drain(followingCh))

	// a later toggle is not poisoned by the failed one
	store.err = nil
	require.NoError(t, toggler.Toggle(context.Background(), target))
	assert.True(t, toggler.IsFollowing(target))
}

// While a toggle for X is in flight, a second toggle for X is a no-op; a
// toggle for Y proceeds.
func TestToggleGuardPerTarget(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	bus := events.NewMemoryBus()
	target := uuid.New()
	other := uuid.New()
	toggler, _ := newToggler(store, bus, target)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- toggler.Toggle(context.Background(), target)
	}()

	// wait for the optimistic flip, which happens before the blocked
	// storage call
	require.Eventually(t, func() bool {
		return toggler.IsFollowing(target)
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, toggler.Toggle(context.Background(), target), ErrToggleInFlight)

	// distinct target is independent: its optimistic flip applies even
	// while the first target's mutation is still blocked
	otherDone := make(chan error, 1)
	go func() {
		otherDone <- toggler.Toggle(context.Background(), other)
	}()
	require.Eventually(t, func() bool {
		return toggler.IsFollowing(other)
	}, time.Second, time.Millisecond)

	close(store.block)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-otherDone)

	assert.True(t, toggler.IsFollowing(target))
	assert.True(t, toggler.IsFollowing(other))

	// guard released: the same target can toggle again
	require.NoError(t, toggler.Toggle(context.Background(), target))
	assert.False(t, toggler.IsFollowing(target))
}

// A session that moves between profiles publishes each profile's follower
// count change, not just the first profile's.
func TestViewProfileRepointsFollowerCount(t *testing.T) {
	store := &fakeStore{}
	bus := events.NewMemoryBus()
	profileA := uuid.New()
	profileB := uuid.New()
	toggler, _ := newToggler(store, bus, profileA)
	toggler.Seed(nil, 5, 0)

	followerCh, cancel := bus.Subscribe(events.TopicFollowerCount)
	defer cancel()

	require.NoError(t, toggler.Toggle(context.Background(), profileA))
	assert.Equal(t, 6, toggler.FollowerCount())

	toggler.ViewProfile(profileB, 12)
	assert.Equal(t, profileB, toggler.Profile())
	assert.Equal(t, 12, toggler.FollowerCount())

	require.NoError(t, toggler.Toggle(context.Background(), profileB))
	assert.Equal(t, 13, toggler.FollowerCount())
	assert.True(t, toggler.IsFollowing(profileA), "earlier follow survives the repoint")

	followerEvents := drain(followerCh)
	require.Len(t, followerEvents, 2)
	assert.Equal(t, profileA, followerEvents[0].UserID)
	assert.Equal(t, profileB, followerEvents[1].UserID)
	assert.Equal(t, 1, followerEvents[1].CountChange)
}

func TestFollowerCountOnlyForViewedProfile(t *testing.T) {
	store := &fakeStore{}
	bus := events.NewMemoryBus()
	viewedProfile := uuid.New()
	someoneElse := uuid.New()
	toggler, _ := newToggler(store, bus, viewedProfile)
	toggler.Seed(nil, 10, 3)

	followerCh, cancel := bus.Subscribe(events.TopicFollowerCount)
	defer cancel()

	require.NoError(t, toggler.Toggle(context.Background(), someoneElse))

	assert.Equal(t, 10, toggler.FollowerCount(), "viewed profile's count untouched")
	assert.Equal(t, 4, toggler.FollowingCount())
	assert.Empty(t, drain(followerCh), "no follower-count event for an unviewed profile")
}
