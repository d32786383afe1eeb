package profile

import (
	"context"
	"strings"

	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

const profileColumns = `id, email, COALESCE(full_name, ''), COALESCE(phone, ''), COALESCE(experience_level, 'beginner'),
	COALESCE(dietary_requirements, ''), COALESCE(emergency_contact_name, ''), COALESCE(emergency_contact_phone, ''),
	COALESCE(travel_notes, ''), created_at, updated_at`

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

func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	p, err := retry.Do(ctx, func(ctx context.Context) (Profile, error) {
		return scanProfile(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id=$1`, userID))
	}, s.retry...)
	if err != nil {
		return Profile{}, apperr.Normalize(err)
	}
	return p, nil
}

// Update applies patch to the profile owned by userID and returns the stored row.
func (s *Service) Update(ctx context.Context, userID string, patch ProfilePatch) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	if patch.FullName != nil {
		p.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Phone != nil {
		p.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.ExperienceLevel != nil {
		if !patch.ExperienceLevel.Valid() {
			return Profile{}, apperr.Validation("experience_level must be beginner, intermediate, advanced or expert")
		}
		p.ExperienceLevel = *patch.ExperienceLevel
	}
	if patch.DietaryRequirements != nil {
		p.DietaryRequirements = *patch.DietaryRequirements
	}
	if patch.EmergencyContactName != nil {
		p.EmergencyContactName = *patch.EmergencyContactName
	}
	if patch.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = *patch.EmergencyContactPhone
	}
	if patch.TravelNotes != nil {
		p.TravelNotes = *patch.TravelNotes
	}

	updated, err := retry.Do(ctx, func(ctx context.Context) (Profile, error) {
		return scanProfile(s.db.QueryRow(ctx, `
			UPDATE user_profiles
			SET full_name=$2, phone=$3, experience_level=$4, dietary_requirements=$5,
				emergency_contact_name=$6, emergency_contact_phone=$7, travel_notes=$8, updated_at=now()
			WHERE id=$1
			RETURNING `+profileColumns,
			p.ID, p.FullName, p.Phone, string(p.ExperienceLevel), p.DietaryRequirements,
			p.EmergencyContactName, p.EmergencyContactPhone, p.TravelNotes))
	}, s.retry...)
	if err != nil {
		return Profile{}, apperr.Normalize(err)
	}
	return updated, nil
}

func (s *Service) List(ctx context.Context) ([]Profile, error) {
	profiles, err := retry.Do(ctx, func(ctx context.Context) ([]Profile, error) {
		rows, err := s.db.Query(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY created_at DESC`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		profiles := []Profile{}
		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				return nil, err
			}
			profiles = append(profiles, p)
		}
		return profiles, rows.Err()
	}, s.retry...)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return profiles, nil
}

// Delete removes a profile together with its identity. Only the admin
// surface calls this; bookings cascade at the database.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := retry.Run(ctx, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			WITH removed AS (DELETE FROM user_profiles WHERE id=$1 RETURNING id)
			DELETE FROM auth_users WHERE id IN (SELECT id FROM removed)
		`, id)
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

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var level string
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Phone, &level, &p.DietaryRequirements,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.TravelNotes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	p.ExperienceLevel = ExperienceLevel(level)
	return p, nil
}
