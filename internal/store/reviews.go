package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Review struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	EntityID      *uuid.UUID `json:"entity_id,omitempty"`
	Title         string     `json:"title"`
	Subtitle      *string    `json:"subtitle,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Rating        float64    `json:"rating"` // 0-5
	Category      string     `json:"category"`
	Status        string     `json:"status"` // published | deleted
	IsVerified    bool       `json:"is_verified"`
	HasTimeline   bool       `json:"has_timeline"`
	TimelineCount int        `json:"timeline_count"`
	AISummary     *string    `json:"ai_summary,omitempty"`
	Media         []string   `json:"media,omitempty"`
	ShareSeq      int64      `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Joined fields
	Username  string  `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type ReviewStore struct {
	db *pgxpool.Pool
}

const reviewColumns = `
  r.id, r.user_id, r.entity_id, r.title, r.subtitle, r.description, r.rating,
  r.category, r.status, r.is_verified, r.has_timeline, r.timeline_count,
  r.ai_summary, r.media, r.share_seq, r.created_at, r.updated_at,
  u.username, u.avatar_url
`

func scanReview(row pgx.Row, review *Review) error {
	return row.Scan(
		&review.ID,
		&review.UserID,
		&review.EntityID,
		&review.Title,
		&review.Subtitle,
		&review.Description,
		&review.Rating,
		&review.Category,
		&review.Status,
		&review.IsVerified,
		&review.HasTimeline,
		&review.TimelineCount,
		&review.AISummary,
		&review.Media,
		&review.ShareSeq,
		&review.CreatedAt,
		&review.UpdatedAt,
		&review.Username,
		&review.AvatarURL,
	)
}

func (s *ReviewStore) Create(ctx context.Context, review *Review) error {
	query := `
	  INSERT INTO reviews (user_id, entity_id, title, subtitle, description, rating, category, media)
	  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	  RETURNING id, status, share_seq, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.db.QueryRow(ctx, query,
		review.UserID,
		review.EntityID,
		review.Title,
		review.Subtitle,
		review.Description,
		review.Rating,
		review.Category,
		review.Media,
	).Scan(&review.ID, &review.Status, &review.ShareSeq, &review.CreatedAt, &review.UpdatedAt)
}

func (s *ReviewStore) GetByID(ctx context.Context, reviewID uuid.UUID) (*Review, error) {
	query := `
	  SELECT ` + reviewColumns + `
	  FROM reviews r
	  JOIN users u ON u.id = r.user_id
	  WHERE r.id = $1 AND r.status = 'published'
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	if err := scanReview(s.db.QueryRow(ctx, query, reviewID), &review); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

func (s *ReviewStore) GetByShareSeq(ctx context.Context, shareSeq int64) (*Review, error) {
	query := `
	  SELECT ` + reviewColumns + `
	  FROM reviews r
	  JOIN users u ON u.id = r.user_id
	  WHERE r.share_seq = $1 AND r.status = 'published'
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	if err := scanReview(s.db.QueryRow(ctx, query, shareSeq), &review); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

// GetByEntity returns published reviews newest-first. The feed classifier
// relies on that order when it preserves per-bucket insertion order.
func (s *ReviewStore) GetByEntity(ctx context.Context, entityID uuid.UUID) ([]Review, error) {
	query := `
	  SELECT ` + reviewColumns + `
	  FROM reviews r
	  JOIN users u ON u.id = r.user_id
	  WHERE r.entity_id = $1 AND r.status = 'published'
	  ORDER BY r.created_at DESC
	`
	return s.queryReviews(ctx, query, entityID)
}

func (s *ReviewStore) GetByUser(ctx context.Context, userID uuid.UUID) ([]Review, error) {
	query := `
	  SELECT ` + reviewColumns + `
	  FROM reviews r
	  JOIN users u ON u.id = r.user_id
	  WHERE r.user_id = $1 AND r.status = 'published'
	  ORDER BY r.created_at DESC
	`
	return s.queryReviews(ctx, query, userID)
}

func (s *ReviewStore) queryReviews(ctx context.Context, query string, arg any) ([]Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		if err := scanReview(rows, &review); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// SoftDelete flips the status flag. Review rows are never physically removed
// so timeline entries and share links keep resolving for moderation.
func (s *ReviewStore) SoftDelete(ctx context.Context, reviewID, userID uuid.UUID) error {
	query := `
	  UPDATE reviews SET status = 'deleted', updated_at = NOW()
	  WHERE id = $1 AND user_id = $2 AND status = 'published'
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, reviewID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ReviewStore) AddPhotoURL(ctx context.Context, reviewID uuid.UUID, url string) error {
	query := `
	  UPDATE reviews SET media = array_append(media, $1), updated_at = NOW()
	  WHERE id = $2 AND status = 'published'
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, url, reviewID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ReviewStore) SetAISummary(ctx context.Context, reviewID uuid.UUID, summary string) error {
	query := `
	  UPDATE reviews SET ai_summary = $1, updated_at = NOW()
	  WHERE id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, summary, reviewID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
