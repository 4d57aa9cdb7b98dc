// Package events is the signaling port between otherwise independent parts of
// the system: follow toggles publish count deltas, timeline writes publish
// refresh hints, and subscribers (the realtime hub, tests) consume them
// without sharing state.
package events

import (
	"context"

	"github.com/google/uuid"
)

const (
	TopicFollowerCount   = "profile.follower_count"
	TopicFollowingCount  = "profile.following_count"
	TopicPostsRefresh    = "profile.posts_refresh"
	TopicTimelineRefresh = "review.timeline_refresh"
)

// Event is one published signal. CountChange is ±1 for the count topics and
// zero for refresh topics. Immediate tells UI consumers to skip debouncing.
type Event struct {
	Topic       string    `json:"topic"`
	UserID      uuid.UUID `json:"user_id"`
	CountChange int       `json:"count_change,omitempty"`
	Immediate   bool      `json:"immediate,omitempty"`
}

// Bus is the pub/sub port. Subscribe returns a receive channel and a cancel
// func; after cancel the channel is closed and no more events arrive.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string) (<-chan Event, func())
}
