package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/holidayheroes/holiday-heroes/internal/models"
)

// CreateProvider вставляет нового организатора и возвращает его ID.
func (s *Storage) CreateProvider(ctx context.Context, p models.Provider) (int, error) {
	const op = "storage.CreateProvider"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO providers (name, description, location, category,
			      age_min, age_max, website, vetted)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Location, p.Category,
		p.AgeMin, p.AgeMax, p.Website, p.Vetted).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadProvider возвращает организатора по его ID.
func (s *Storage) ReadProvider(ctx context.Context, id int) (*models.Provider, error) {
	const op = "storage.ReadProvider"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, description, location, category, age_min, age_max,
			      website, vetted, created_at
			  FROM providers WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	var result models.Provider
	err := row.Scan(&result.ID, &result.Name, &result.Description, &result.Location,
		&result.Category, &result.AgeMin, &result.AgeMax, &result.Website,
		&result.Vetted, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// ListProviders возвращает проверенных организаторов с пагинацией.
func (s *Storage) ListProviders(ctx context.Context, limit, offset int) ([]*models.Provider, error) {
	const op = "storage.ListProviders"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, description, location, category, age_min, age_max,
			      website, vetted, created_at
			  FROM providers
			  WHERE vetted = true
			  ORDER BY name
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Provider
	for rows.Next() {
		var item models.Provider
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Location,
			&item.Category, &item.AgeMin, &item.AgeMax, &item.Website,
			&item.Vetted, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
