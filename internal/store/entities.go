package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entity is anything users review: a place, product, book, movie or food item.
type Entity struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"` // place | product | book | movie | food
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type EntitiesStore struct {
	db *pgxpool.Pool
}

func (s *EntitiesStore) Create(ctx context.Context, entity *Entity) error {
	query := `
	  INSERT INTO entities (name, type, description, image_url, created_by)
	  VALUES ($1, $2, $3, $4, $5)
	  RETURNING id, created_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return s.db.QueryRow(ctx, query,
		entity.Name,
		entity.Type,
		entity.Description,
		entity.ImageURL,
		entity.CreatedBy,
	).Scan(&entity.ID, &entity.CreatedAt)
}

func (s *EntitiesStore) GetByID(ctx context.Context, entityID uuid.UUID) (*Entity, error) {
	query := `
	  SELECT id, name, type, description, image_url, created_by, created_at
	  FROM entities
	  WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var entity Entity
	err := s.db.QueryRow(ctx, query, entityID).Scan(
		&entity.ID,
		&entity.Name,
		&entity.Type,
		&entity.Description,
		&entity.ImageURL,
		&entity.CreatedBy,
		&entity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

func (s *EntitiesStore) Search(ctx context.Context, term string, limit int) ([]Entity, error) {
	query := `
	  SELECT id, name, type, description, image_url, created_by, created_at
	  FROM entities
	  WHERE name ILIKE '%' || $1 || '%'
	  ORDER BY created_at DESC
	  LIMIT $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var entity Entity
		err := rows.Scan(
			&entity.ID,
			&entity.Name,
			&entity.Type,
			&entity.Description,
			&entity.ImageURL,
			&entity.CreatedBy,
			&entity.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}
