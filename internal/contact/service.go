package contact

import (
	"context"
	"strings"

	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"
	"backend-birdtours/internal/shared/validate"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	MsgMissingFields = "Please fill in your name and email address before submitting."
	MsgInvalidEmail  = "Please enter a valid email address."
	MsgThanks        = "Thank you for your inquiry! We'll be in touch within 24 hours."
)

type Service struct {
	db     db.Querier
	logger *logrus.Logger
	retry  []retry.Option
}

func NewService(db db.Querier, logger *logrus.Logger, opts ...retry.Option) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{db: db, logger: logger, retry: append([]retry.Option{retry.WithLogger(logger)}, opts...)}
}

// Validate checks the inquiry without touching the store.
func Validate(in Inquiry) error {
	if validate.Blank(in.FirstName) || validate.Blank(in.Email) {
		return apperr.Validation(MsgMissingFields)
	}
	if !validate.Email(validate.NormalizeEmail(in.Email)) {
		return apperr.Validation(MsgInvalidEmail)
	}
	return nil
}

func (s *Service) Submit(ctx context.Context, in Inquiry) (Stored, error) {
	if err := Validate(in); err != nil {
		return Stored{}, err
	}

	stored := Stored{ID: uuid.NewString()}
	err := retry.Run(ctx, func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `
			INSERT INTO contact_inquiries
				(id, first_name, last_name, email, phone, travel_dates, group_size, experience_level, tour_types, regions, message)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING created_at
		`, stored.ID, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), validate.NormalizeEmail(in.Email),
			strings.TrimSpace(in.Phone), in.TravelDates, in.GroupSize, in.ExperienceLevel,
			nonNil(in.TourTypes), nonNil(in.Regions), strings.TrimSpace(in.Message)).Scan(&stored.CreatedAt)
	}, s.retry...)
	if err != nil {
		s.logger.WithError(err).WithField("type", "contact").Error("Failed to store inquiry")
		return Stored{}, apperr.Normalize(err)
	}

	s.logger.WithFields(logrus.Fields{
		"inquiry_id": stored.ID,
		"regions":    in.Regions,
		"tour_types": in.TourTypes,
		"type":       "contact",
	}).Info("Inquiry received")
	return stored, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
