package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"groundz/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

func TestSendToUserReachesEverySession(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	userID := uuid.New()

	phone := newTestClient(userID)
	laptop := newTestClient(userID)
	hub.Register(phone)
	hub.Register(laptop)

	hub.SendToUser(userID, []byte("hello"))

	assert.Equal(t, []byte("hello"), <-phone.Send)
	assert.Equal(t, []byte("hello"), <-laptop.Send)
	assert.Equal(t, 1, hub.ConnectedUsers())
}

func TestSendToUnknownUserIsNoOp(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())

	client := newTestClient(uuid.New())
	hub.Register(client)

	hub.SendToUser(uuid.New(), []byte("misdirected"))

	select {
	case payload := <-client.Send:
		t.Fatalf("unexpected payload %q", payload)
	default:
	}
}

// A disconnect racing with a fanout must never crash the sender; under -race
// this also checks the lock discipline around the session map and channels.
func TestSendDuringDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	userID := uuid.New()

	for i := 0; i < 100; i++ {
		client := newTestClient(userID)
		hub.Register(client)

		done := make(chan struct{})
		go func() {
			for j := 0; j < 20; j++ {
				hub.SendToUser(userID, []byte("tick"))
			}
			close(done)
		}()
		hub.Unregister(client)
		<-done
	}

	assert.Equal(t, 0, hub.ConnectedUsers())
}

func TestHubForwardsBusEvents(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	bus := events.NewMemoryBus()
	hub.Run(bus)
	defer hub.Stop()

	userID := uuid.New()
	client := newTestClient(userID)
	hub.Register(client)

	err := bus.Publish(context.Background(), events.Event{
		Topic:       events.TopicFollowerCount,
		UserID:      userID,
		CountChange: 1,
		Immediate:   true,
	})
	require.NoError(t, err)

	select {
	case payload := <-client.Send:
		var e events.Event
		require.NoError(t, json.Unmarshal(payload, &e))
		assert.Equal(t, events.TopicFollowerCount, e.Topic)
		assert.Equal(t, userID, e.UserID)
		assert.Equal(t, 1, e.CountChange)
		assert.True(t, e.Immediate)
	case <-time.After(time.Second):
		t.Fatal("event never reached the client")
	}
}
