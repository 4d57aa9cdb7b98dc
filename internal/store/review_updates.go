package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmptyComment is a validation failure raised before any I/O happens.
var ErrEmptyComment = errors.New("update comment cannot be empty")

// ReviewUpdate is an append-only timeline entry under a review. Past entries
// are never edited or removed.
type ReviewUpdate struct {
	ID        uuid.UUID `json:"id"`
	ReviewID  uuid.UUID `json:"review_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    *float64  `json:"rating,omitempty"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type ReviewUpdateStore struct {
	db *pgxpool.Pool
}

// Fetch returns all updates for a review, newest-first. A missing review is
// ErrNotFound; callers treat that the same as an empty timeline.
func (s *ReviewUpdateStore) Fetch(ctx context.Context, reviewID uuid.UUID) ([]ReviewUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE id = $1)`, reviewID,
	).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	query := `
	  SELECT id, review_id, user_id, rating, comment, created_at
	  FROM review_updates
	  WHERE review_id = $1
	  ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []ReviewUpdate
	for rows.Next() {
		var update ReviewUpdate
		err := rows.Scan(
			&update.ID,
			&update.ReviewID,
			&update.UserID,
			&update.Rating,
			&update.Comment,
			&update.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	return updates, rows.Err()
}

// Add appends one timeline entry and bumps the parent review's counter in the
// same transaction: if the insert fails the counter must not move.
func (s *ReviewUpdateStore) Add(ctx context.Context, update *ReviewUpdate) error {
	update.Comment = strings.TrimSpace(update.Comment)
	if update.Comment == "" {
		return ErrEmptyComment
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return withTx(ctx, s.db, func(tx pgx.Tx) error {
		query := `
		  INSERT INTO review_updates (review_id, user_id, rating, comment)
		  VALUES ($1, $2, $3, $4)
		  RETURNING id, created_at
		`
		err := tx.QueryRow(ctx, query,
			update.ReviewID,
			update.UserID,
			update.Rating,
			update.Comment,
		).Scan(&update.ID, &update.CreatedAt)
		if err != nil {
			return err
		}

		bump := `
		  UPDATE reviews
		  SET timeline_count = timeline_count + 1, has_timeline = TRUE, updated_at = NOW()
		  WHERE id = $1 AND user_id = $2 AND status = 'published'
		`
		tag, err := tx.Exec(ctx, bump, update.ReviewID, update.UserID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
