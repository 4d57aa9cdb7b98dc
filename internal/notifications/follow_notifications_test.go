package notifications

import (
	"context"
	"testing"

	"groundz/internal/store"

	"github.com/9ssi7/exponent"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePush struct {
	published [][]*exponent.Message
}

func (p *fakePush) Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	p.published = append(p.published, msgs)
	return nil, nil
}

func (p *fakePush) PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error) {
	return p.Publish(ctx, []*exponent.Message{msg})
}

type fakeFollowers struct {
	followers []store.FollowProfile
}

func (f *fakeFollowers) Follow(ctx context.Context, followerID, userID uuid.UUID) error   { return nil }
func (f *fakeFollowers) Unfollow(ctx context.Context, followerID, userID uuid.UUID) error { return nil }
func (f *fakeFollowers) CircleIDs(ctx context.Context, viewerID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeFollowers) ListFollowers(ctx context.Context, profileID, viewerID uuid.UUID) ([]store.FollowProfile, error) {
	return f.followers, nil
}
func (f *fakeFollowers) ListFollowing(ctx context.Context, profileID, viewerID uuid.UUID) ([]store.FollowProfile, error) {
	return nil, nil
}
func (f *fakeFollowers) Counts(ctx context.Context, userID uuid.UUID) (int, int, error) {
	return len(f.followers), 0, nil
}

type fakeTokens struct {
	tokens map[uuid.UUID][]string
}

func (f *fakeTokens) AddOrUpdatePushToken(ctx context.Context, userID uuid.UUID, token string, deviceInfo []byte) error {
	return nil
}

func (f *fakeTokens) RemovePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	return nil
}

func (f *fakeTokens) GetTokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	return f.tokens, nil
}

func TestTimelineUpdateWithoutFollowersIsNoTokens(t *testing.T) {
	push := &fakePush{}
	storage := store.Storage{
		Followers:  &fakeFollowers{},
		PushTokens: &fakeTokens{},
	}
	review := &store.Review{ID: uuid.New(), UserID: uuid.New(), Title: "Field Notes", Username: "asha"}

	err := SendTimelineUpdateToFollowers(context.Background(), push, storage, review)

	assert.ErrorIs(t, err, store.ErrNoTokens)
	assert.Empty(t, push.published, "nothing to publish without followers")
}

func TestTimelineUpdateFansOutToFollowerTokens(t *testing.T) {
	follower := uuid.New()
	push := &fakePush{}
	storage := store.Storage{
		Followers: &fakeFollowers{followers: []store.FollowProfile{{ID: follower, Username: "ben"}}},
		PushTokens: &fakeTokens{tokens: map[uuid.UUID][]string{
			follower: {"ExponentPushToken[abc]", "ExponentPushToken[abc]"},
		}},
	}
	review := &store.Review{ID: uuid.New(), UserID: uuid.New(), Title: "Field Notes", Username: "asha"}

	err := SendTimelineUpdateToFollowers(context.Background(), push, storage, review)

	require.NoError(t, err)
	require.Len(t, push.published, 1)
	assert.Len(t, push.published[0], 1, "duplicate tokens collapse to one message")
	assert.Equal(t, "Timeline updated", push.published[0][0].Title)
}

func TestNewFollowerWithoutTokensIsNoTokens(t *testing.T) {
	push := &fakePush{}
	storage := store.Storage{
		PushTokens: &fakeTokens{},
	}

	err := SendNewFollowerToUser(context.Background(), push, storage, uuid.New(), "asha")

	assert.ErrorIs(t, err, store.ErrNoTokens)
	assert.Empty(t, push.published)
}

func TestNewExpoSenderIsReady(t *testing.T) {
	sender := NewExpoSender()
	require.NotNil(t, sender)

	var _ PushSender = sender
}
