package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Follower struct {
	UserID     uuid.UUID `json:"user_id"`
	FollowerID uuid.UUID `json:"follower_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// FollowProfile is one row of a followers/following listing, personalized
// with whether the viewer follows that user.
type FollowProfile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	IsFollowing bool      `json:"is_following"`
}

type FollowerStore struct {
	db *pgxpool.Pool
}

func (s *FollowerStore) Follow(ctx context.Context, followerID, userID uuid.UUID) error {
	query := `
	  INSERT INTO follows (user_id, follower_id) VALUES ($1, $2)
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.db.Exec(ctx, query, userID, followerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *FollowerStore) Unfollow(ctx context.Context, followerID, userID uuid.UUID) error {
	query := `
	  DELETE FROM follows
	  WHERE user_id = $1 AND follower_id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, userID, followerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CircleIDs is the set of users the viewer follows, used as the trust signal
// for feed classification.
func (s *FollowerStore) CircleIDs(ctx context.Context, viewerID uuid.UUID) ([]uuid.UUID, error) {
	query := `
	  SELECT user_id FROM follows WHERE follower_id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *FollowerStore) ListFollowers(ctx context.Context, profileID, viewerID uuid.UUID) ([]FollowProfile, error) {
	query := `
	  SELECT u.id, u.username, u.avatar_url,
	         EXISTS (
	           SELECT 1 FROM follows v
	           WHERE v.follower_id = $2 AND v.user_id = u.id
	         ) AS is_following
	  FROM follows f
	  JOIN users u ON u.id = f.follower_id
	  WHERE f.user_id = $1
	  ORDER BY f.created_at DESC
	`
	return s.queryProfiles(ctx, query, profileID, viewerID)
}

func (s *FollowerStore) ListFollowing(ctx context.Context, profileID, viewerID uuid.UUID) ([]FollowProfile, error) {
	query := `
	  SELECT u.id, u.username, u.avatar_url,
	         EXISTS (
	           SELECT 1 FROM follows v
	           WHERE v.follower_id = $2 AND v.user_id = u.id
	         ) AS is_following
	  FROM follows f
	  JOIN users u ON u.id = f.user_id
	  WHERE f.follower_id = $1
	  ORDER BY f.created_at DESC
	`
	return s.queryProfiles(ctx, query, profileID, viewerID)
}

func (s *FollowerStore) queryProfiles(ctx context.Context, query string, profileID, viewerID uuid.UUID) ([]FollowProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, profileID, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []FollowProfile
	for rows.Next() {
		var p FollowProfile
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.IsFollowing); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *FollowerStore) Counts(ctx context.Context, userID uuid.UUID) (int, int, error) {
	query := `
	  SELECT
	    (SELECT COUNT(*) FROM follows WHERE user_id = $1) AS followers,
	    (SELECT COUNT(*) FROM follows WHERE follower_id = $1) AS following
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var followers, following int
	err := s.db.QueryRow(ctx, query, userID).Scan(&followers, &following)
	return followers, following, err
}
