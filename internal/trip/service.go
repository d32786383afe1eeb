package trip

import (
	"context"
	"regexp"
	"strings"

	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

const tripColumns = `id, title, slug, COALESCE(description, ''), duration_days, difficulty, price, COALESCE(region, ''), is_active, created_at, updated_at`

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

type Service struct {
	db    db.Querier
	retry []retry.Option
}

func NewService(db db.Querier, logger *logrus.Logger, opts ...retry.Option) *Service {
	return &Service{
		db:    db,
		retry: append([]retry.Option{retry.WithLogger(logging.OrDiscard(logger))}, opts...),
	}
}

// Slugify lowercases title and joins its alphanumeric runs with dashes.
func Slugify(title string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

func (s *Service) CreateTrip(ctx context.Context, input Trip) (Trip, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Trip{}, apperr.Validation("title is required")
	}
	if input.Slug == "" {
		input.Slug = Slugify(input.Title)
	}
	if input.Difficulty == "" {
		input.Difficulty = DifficultyModerate
	}
	if err := validateTrip(input); err != nil {
		return Trip{}, err
	}
	input.ID = uuid.NewString()

	trip, err := retry.Do(ctx, func(ctx context.Context) (Trip, error) {
		return scanTrip(s.db.QueryRow(ctx, `
			INSERT INTO trips (id, title, slug, description, duration_days, difficulty, price, region, is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING `+tripColumns,
			input.ID, input.Title, input.Slug, input.Description, input.DurationDays,
			string(input.Difficulty), input.Price, input.Region, input.IsActive))
	}, s.retry...)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return Trip{}, apperr.Conflict("A trip with this slug already exists.")
		}
		return Trip{}, apperr.Normalize(err)
	}
	return trip, nil
}

func (s *Service) UpdateTrip(ctx context.Context, id string, patch TripPatch) (Trip, error) {
	trip, err := s.GetTrip(ctx, id)
	if err != nil {
		return Trip{}, err
	}
	if patch.Title != nil {
		trip.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Slug != nil {
		trip.Slug = *patch.Slug
	}
	if patch.Description != nil {
		trip.Description = *patch.Description
	}
	if patch.DurationDays != nil {
		trip.DurationDays = *patch.DurationDays
	}
	if patch.Difficulty != nil {
		trip.Difficulty = *patch.Difficulty
	}
	if patch.Price != nil {
		trip.Price = *patch.Price
	}
	if patch.Region != nil {
		trip.Region = *patch.Region
	}
	if patch.IsActive != nil {
		trip.IsActive = *patch.IsActive
	}
	if err := validateTrip(trip); err != nil {
		return Trip{}, err
	}

	updated, err := retry.Do(ctx, func(ctx context.Context) (Trip, error) {
		return scanTrip(s.db.QueryRow(ctx, `
			UPDATE trips
			SET title=$2, slug=$3, description=$4, duration_days=$5, difficulty=$6, price=$7, region=$8, is_active=$9, updated_at=now()
			WHERE id=$1
			RETURNING `+tripColumns,
			trip.ID, trip.Title, trip.Slug, trip.Description, trip.DurationDays,
			string(trip.Difficulty), trip.Price, trip.Region, trip.IsActive))
	}, s.retry...)
	if err != nil {
		return Trip{}, apperr.Normalize(err)
	}
	return updated, nil
}

func (s *Service) GetTrip(ctx context.Context, id string) (Trip, error) {
	trip, err := retry.Do(ctx, func(ctx context.Context) (Trip, error) {
		return scanTrip(s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=$1`, id))
	}, s.retry...)
	if err != nil {
		return Trip{}, apperr.Normalize(err)
	}
	return trip, nil
}

// GetActiveBySlug is the customer lookup; inactive trips read as not found.
func (s *Service) GetActiveBySlug(ctx context.Context, slug string) (Trip, error) {
	trip, err := retry.Do(ctx, func(ctx context.Context) (Trip, error) {
		return scanTrip(s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE slug=$1 AND is_active`, slug))
	}, s.retry...)
	if err != nil {
		return Trip{}, apperr.Normalize(err)
	}
	return trip, nil
}

// ListActive returns active trips, optionally narrowed to one region.
func (s *Service) ListActive(ctx context.Context, region string) ([]Trip, error) {
	if region == "" {
		return s.list(ctx, `SELECT `+tripColumns+` FROM trips WHERE is_active ORDER BY title`)
	}
	return s.list(ctx, `SELECT `+tripColumns+` FROM trips WHERE is_active AND region=$1 ORDER BY title`, region)
}

func (s *Service) ListAll(ctx context.Context) ([]Trip, error) {
	return s.list(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY created_at DESC`)
}

func (s *Service) DeleteTrip(ctx context.Context, id string) error {
	err := retry.Run(ctx, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `DELETE FROM trips WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	}, s.retry...)
	return apperr.Normalize(err)
}

func (s *Service) list(ctx context.Context, sql string, args ...any) ([]Trip, error) {
	trips, err := retry.Do(ctx, func(ctx context.Context) ([]Trip, error) {
		rows, err := s.db.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		trips := []Trip{}
		for rows.Next() {
			trip, err := scanTrip(rows)
			if err != nil {
				return nil, err
			}
			trips = append(trips, trip)
		}
		return trips, rows.Err()
	}, s.retry...)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return trips, nil
}

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	var difficulty string
	err := row.Scan(&t.ID, &t.Title, &t.Slug, &t.Description, &t.DurationDays, &difficulty,
		&t.Price, &t.Region, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Trip{}, err
	}
	t.Difficulty = Difficulty(difficulty)
	return t, nil
}

func validateTrip(t Trip) error {
	if t.Title == "" {
		return apperr.Validation("title is required")
	}
	if t.Slug == "" || Slugify(t.Slug) != t.Slug {
		return apperr.Validation("slug must be lowercase letters, digits and dashes")
	}
	if !t.Difficulty.Valid() {
		return apperr.Validation("difficulty must be easy, moderate or challenging")
	}
	if t.DurationDays < 0 || t.Price < 0 {
		return apperr.Validation("duration and price cannot be negative")
	}
	return nil
}
