package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversInPublishOrder(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe(TopicFollowerCount)
	defer cancel()

	user := uuid.New()
	for _, delta := range []int{1, -1, 1} {
		require.NoError(t, bus.Publish(context.Background(), Event{
			Topic:       TopicFollowerCount,
			UserID:      user,
			CountChange: delta,
		}))
	}

	assert.Equal(t, 1, (<-ch).CountChange)
	assert.Equal(t, -1, (<-ch).CountChange)
	assert.Equal(t, 1, (<-ch).CountChange)
}

func TestMemoryBusTopicsAreIsolated(t *testing.T) {
	bus := NewMemoryBus()
	followerCh, cancelFollower := bus.Subscribe(TopicFollowerCount)
	defer cancelFollower()
	refreshCh, cancelRefresh := bus.Subscribe(TopicPostsRefresh)
	defer cancelRefresh()

	require.NoError(t, bus.Publish(context.Background(), Event{Topic: TopicPostsRefresh, UserID: uuid.New()}))

	select {
	case <-followerCh:
		t.Fatal("follower subscriber received a posts-refresh event")
	default:
	}
	assert.Equal(t, TopicPostsRefresh, (<-refreshCh).Topic)
}

func TestMemoryBusCancelClosesChannel(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe(TopicFollowingCount)

	cancel()
	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic or deliver
	require.NoError(t, bus.Publish(context.Background(), Event{Topic: TopicFollowingCount}))

	// double cancel is safe
	cancel()
}

func TestMemoryBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe(TopicTimelineRefresh)
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{Topic: TopicTimelineRefresh}))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, received)
}
