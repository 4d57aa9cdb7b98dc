package notifications

import (
	"context"
	"fmt"

	"groundz/internal/store"

	"github.com/9ssi7/exponent"
	"github.com/google/uuid"
)

// SendNewFollowerToUser - notify a user that someone started following them
func SendNewFollowerToUser(ctx context.Context, push PushSender, storage store.Storage, userID uuid.UUID, followerName string) error {
	tokensMap, err := storage.PushTokens.GetTokensByUserIDs(ctx, []uuid.UUID{userID})
	if err != nil {
		return err
	}
	tokens := dedupe(tokensMap[userID])
	if len(tokens) == 0 {
		return store.ErrNoTokens
	}

	msgs := make([]*exponent.Message, 0, len(tokens))
	title := "New follower"
	body := fmt.Sprintf("%s started following you", followerName)
	screen := fmt.Sprintf("profile/%s", userID)
	for _, t := range tokens {
		token := exponent.Token(t)
		msg := &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":   "new_follower",
				"screen": screen,
			},
		}
		msgs = append(msgs, msg)
	}
	_, err = push.Publish(ctx, msgs)
	return err
}

// SendTimelineUpdateToFollowers - notify a review author's followers that the
// review got a new timeline update
func SendTimelineUpdateToFollowers(ctx context.Context, push PushSender, storage store.Storage, review *store.Review) error {
	followers, err := storage.Followers.ListFollowers(ctx, review.UserID, review.UserID)
	if err != nil {
		return err
	}
	if len(followers) == 0 {
		return store.ErrNoTokens
	}

	ids := make([]uuid.UUID, 0, len(followers))
	for _, f := range followers {
		ids = append(ids, f.ID)
	}

	tokensMap, err := storage.PushTokens.GetTokensByUserIDs(ctx, ids)
	if err != nil {
		return err
	}

	allTokens := make([]string, 0)
	for _, tokens := range tokensMap {
		allTokens = append(allTokens, tokens...)
	}
	compactTokens := dedupe(allTokens)
	if len(compactTokens) == 0 {
		return store.ErrNoTokens
	}

	msgs := make([]*exponent.Message, 0, len(compactTokens))
	title := "Timeline updated"
	body := fmt.Sprintf("%s posted an update on %q", review.Username, review.Title)
	screen := fmt.Sprintf("reviews/%s", review.ID)
	for _, t := range compactTokens {
		token := exponent.Token(t)
		msg := &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":      "timeline_update",
				"review_id": review.ID.String(),
				"screen":    screen,
			},
		}
		msgs = append(msgs, msg)
	}
	_, err = push.Publish(ctx, msgs)
	return err
}
