// Package follow implements the optimistic follow/unfollow flow: the local
// view flips immediately, the storage mutation runs after, and a failed
// mutation rolls the view back to exactly its prior state.
package follow

import (
	"context"
	"errors"
	"sync"

	"groundz/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrToggleInFlight means a toggle for the same target has not resolved yet.
// Callers treat it as a no-op, not a failure to surface.
var ErrToggleInFlight = errors.New("follow toggle already in flight for this user")

// Store is the persistence contract: create or destroy one follow edge.
type Store interface {
	Follow(ctx context.Context, followerID, userID uuid.UUID) error
	Unfollow(ctx context.Context, followerID, userID uuid.UUID) error
}

type phase int

const (
	phasePending phase = iota
	phaseCommitted
	phaseRolledBack
)

// mutation is one two-phase optimistic transition. It is created in the
// pending phase with the optimistic flip already applied; it ends committed
// or rolled back, never both.
type mutation struct {
	target       uuid.UUID
	wasFollowing bool
	phase        phase
}

// Toggler tracks one viewer's session view of follow state: which users they
// follow, the viewed profile's follower count and the viewer's own following
// count. Count changes are broadcast on the bus so independently rendered
// surfaces stay in sync without shared state.
type Toggler struct {
	viewerID  uuid.UUID
	profileID uuid.UUID // profile currently being viewed

	store  Store
	bus    events.Bus
	logger *zap.SugaredLogger

	mu             sync.Mutex
	following      map[uuid.UUID]bool
	inflight       map[uuid.UUID]bool
	followerCount  int // of the viewed profile
	followingCount int // of the viewer
}

func NewToggler(viewerID, profileID uuid.UUID, store Store, bus events.Bus, logger *zap.SugaredLogger) *Toggler {
	return &Toggler{
		viewerID:  viewerID,
		profileID: profileID,
		store:     store,
		bus:       bus,
		logger:    logger,
		following: make(map[uuid.UUID]bool),
		inflight:  make(map[uuid.UUID]bool),
	}
}

// Seed installs the server-fetched state the session starts from.
func (t *Toggler) Seed(following []uuid.UUID, followerCount, followingCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range following {
		t.following[id] = true
	}
	t.followerCount = followerCount
	t.followingCount = followingCount
}

// Profile reports which profile the session currently views.
func (t *Toggler) Profile() uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.profileID
}

// ViewProfile repoints the session at another profile and installs that
// profile's server-fetched follower count. The following set and the viewer's
// own following count carry over unchanged.
func (t *Toggler) ViewProfile(profileID uuid.UUID, followerCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profileID = profileID
	t.followerCount = followerCount
}

func (t *Toggler) IsFollowing(target uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.following[target]
}

func (t *Toggler) FollowerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.followerCount
}

func (t *Toggler) FollowingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.followingCount
}

// Toggle flips the follow state for target. The optimistic flip is applied
// synchronously before the storage call is dispatched, so readers never see
// a stale pre-toggle state while the request is in flight. A second toggle
// for the same target while one is pending is rejected; toggles for distinct
// targets are independent.
func (t *Toggler) Toggle(ctx context.Context, target uuid.UUID) error {
	m, err := t.begin(target)
	if err != nil {
		return err
	}
	defer t.finish(m)

	if m.wasFollowing {
		err = t.store.Unfollow(ctx, t.viewerID, target)
	} else {
		err = t.store.Follow(ctx, t.viewerID, target)
	}

	if err != nil {
		t.rollback(m)
		t.logger.Errorw("follow toggle failed, reverted optimistic state",
			"viewer", t.viewerID, "target", target, "error", err)
		return err
	}

	t.commit(ctx, m)
	return nil
}

// begin acquires the per-target guard and applies the optimistic flip in one
// critical section.
func (t *Toggler) begin(target uuid.UUID) (*mutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inflight[target] {
		return nil, ErrToggleInFlight
	}
	t.inflight[target] = true

	m := &mutation{target: target, wasFollowing: t.following[target]}
	t.applyLocked(target, !m.wasFollowing)
	return m, nil
}

// applyLocked sets the local follow bit and adjusts whichever counts this
// session displays. Caller holds t.mu.
func (t *Toggler) applyLocked(target uuid.UUID, nowFollowing bool) {
	t.following[target] = nowFollowing

	delta := -1
	if nowFollowing {
		delta = 1
	}
	t.followingCount += delta
	if target == t.profileID {
		t.followerCount += delta
	}
}

func (t *Toggler) commit(ctx context.Context, m *mutation) {
	t.mu.Lock()
	m.phase = phaseCommitted
	nowFollowing := t.following[m.target]
	t.mu.Unlock()

	delta := -1
	if nowFollowing {
		delta = 1
	}

	// the viewer's own following count changed
	t.publish(ctx, events.Event{
		Topic:       events.TopicFollowingCount,
		UserID:      t.viewerID,
		CountChange: delta,
		Immediate:   true,
	})
	// the target's follower count changed; only the viewed profile has a
	// rendered counter to update
	if m.target == t.profileID {
		t.publish(ctx, events.Event{
			Topic:       events.TopicFollowerCount,
			UserID:      m.target,
			CountChange: delta,
			Immediate:   true,
		})
	}
}

// rollback restores the pre-toggle state bit for bit. No events are
// published for a failed toggle.
func (t *Toggler) rollback(m *mutation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m.phase = phaseRolledBack
	t.applyLocked(m.target, m.wasFollowing)
}

func (t *Toggler) finish(m *mutation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, m.target)
}

func (t *Toggler) publish(ctx context.Context, e events.Event) {
	if err := t.bus.Publish(ctx, e); err != nil {
		t.logger.Warnw("failed to publish count event", "topic", e.Topic, "error", err)
	}
}
