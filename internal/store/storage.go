package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Users interface {
		CreateAndInvite(context.Context, *User, string, time.Duration) error
		Activate(context.Context, string) error
		GetByID(context.Context, uuid.UUID) (*User, error)
		GetByEmail(context.Context, string) (*User, error)
		UpdateProfile(context.Context, uuid.UUID, map[string]interface{}) error
		SetAvatar(context.Context, uuid.UUID, string) error
		SetRefreshToken(context.Context, uuid.UUID, string) error
		Delete(context.Context, uuid.UUID) error
	}
	Entities interface {
		Create(context.Context, *Entity) error
		GetByID(context.Context, uuid.UUID) (*Entity, error)
		Search(context.Context, string, int) ([]Entity, error)
	}
	Reviews interface {
		Create(context.Context, *Review) error
		GetByID(context.Context, uuid.UUID) (*Review, error)
		GetByShareSeq(context.Context, int64) (*Review, error)
		GetByEntity(context.Context, uuid.UUID) ([]Review, error)
		GetByUser(context.Context, uuid.UUID) ([]Review, error)
		SoftDelete(context.Context, uuid.UUID, uuid.UUID) error
		AddPhotoURL(context.Context, uuid.UUID, string) error
		SetAISummary(context.Context, uuid.UUID, string) error
	}
	ReviewUpdates interface {
		Fetch(context.Context, uuid.UUID) ([]ReviewUpdate, error)
		Add(context.Context, *ReviewUpdate) error
	}
	Followers interface {
		Follow(ctx context.Context, followerID, userID uuid.UUID) error
		Unfollow(ctx context.Context, followerID, userID uuid.UUID) error
		CircleIDs(ctx context.Context, viewerID uuid.UUID) ([]uuid.UUID, error)
		ListFollowers(ctx context.Context, profileID, viewerID uuid.UUID) ([]FollowProfile, error)
		ListFollowing(ctx context.Context, profileID, viewerID uuid.UUID) ([]FollowProfile, error)
		Counts(ctx context.Context, userID uuid.UUID) (followers int, following int, err error)
	}
	PushTokens interface {
		AddOrUpdatePushToken(ctx context.Context, userID uuid.UUID, token string, deviceInfo []byte) error
		RemovePushToken(ctx context.Context, userID uuid.UUID, token string) error
		GetTokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Users:         &UsersStore{db},
		Entities:      &EntitiesStore{db},
		Reviews:       &ReviewStore{db},
		ReviewUpdates: &ReviewUpdateStore{db},
		Followers:     &FollowerStore{db},
		PushTokens:    &PushTokensStore{db},
	}
}
