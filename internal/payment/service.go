package payment

import (
	"context"
	"fmt"

	"backend-birdtours/internal/booking"
	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"
	"backend-birdtours/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

const Table = "booking_payments"

const paymentColumns = `id, booking_id, amount, payment_status, due_date, paid_at, created_at, updated_at`

// Service manages payment milestones. Scheduling a milestone does not touch
// the booking's own payment_status; operators move that separately.
type Service struct {
	db     db.Querier
	events booking.Publisher
	retry  []retry.Option
}

func NewService(db db.Querier, events booking.Publisher, logger *logrus.Logger, opts ...retry.Option) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		db:     db,
		events: events,
		retry:  append([]retry.Option{retry.WithLogger(logger)}, opts...),
	}
}

func (s *Service) List(ctx context.Context, userID, bookingID string) ([]Payment, error) {
	if err := booking.RequireOwner(ctx, s.db, userID, bookingID, s.retry...); err != nil {
		return nil, err
	}
	return s.ListForBooking(ctx, bookingID)
}

func (s *Service) ListForBooking(ctx context.Context, bookingID string) ([]Payment, error) {
	payments, err := retry.Do(ctx, func(ctx context.Context) ([]Payment, error) {
		rows, err := s.db.Query(ctx, `SELECT `+paymentColumns+` FROM booking_payments WHERE booking_id=$1 ORDER BY due_date NULLS LAST, created_at`, bookingID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		payments := []Payment{}
		for rows.Next() {
			p, err := scanPayment(rows)
			if err != nil {
				return nil, err
			}
			payments = append(payments, p)
		}
		return payments, rows.Err()
	}, s.retry...)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return payments, nil
}

// Schedule adds a pending milestone to bookingID.
func (s *Service) Schedule(ctx context.Context, bookingID string, req ScheduleRequest) (Payment, error) {
	if req.Amount <= 0 {
		return Payment{}, apperr.Validation("amount must be greater than zero")
	}
	owner, err := booking.OwnerOf(ctx, s.db, bookingID, s.retry...)
	if err != nil {
		return Payment{}, err
	}

	id := uuid.NewString()
	p, err := retry.Do(ctx, func(ctx context.Context) (Payment, error) {
		return scanPayment(s.db.QueryRow(ctx, `
			INSERT INTO booking_payments (id, booking_id, amount, payment_status, due_date)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING `+paymentColumns,
			id, bookingID, req.Amount, string(booking.PaymentPending), req.DueDate))
	}, s.retry...)
	if err != nil {
		return Payment{}, apperr.Normalize(err)
	}

	s.publish(ctx, stream.EventInsert, owner, p)
	return p, nil
}

// UpdateStatus moves a milestone along the payment axis. paid_at is stamped
// on the move to paid.
func (s *Service) UpdateStatus(ctx context.Context, paymentID string, status booking.PaymentStatus) (Payment, error) {
	if !status.Valid() {
		return Payment{}, apperr.Validation(fmt.Sprintf("unknown payment status %q", status))
	}

	var current string
	err := retry.Run(ctx, func(ctx context.Context) error {
		return s.db.QueryRow(ctx, `SELECT payment_status FROM booking_payments WHERE id=$1`, paymentID).Scan(&current)
	}, s.retry...)
	if err != nil {
		return Payment{}, apperr.Normalize(err)
	}
	if !booking.CanTransitionPayment(booking.PaymentStatus(current), status) {
		return Payment{}, apperr.Validation(fmt.Sprintf("payment status cannot move from %s to %s", current, status))
	}

	var owner string
	p, err := retry.Do(ctx, func(ctx context.Context) (Payment, error) {
		row := s.db.QueryRow(ctx, `
			UPDATE booking_payments
			SET payment_status=$2,
				paid_at=CASE WHEN $2='paid' THEN now() ELSE paid_at END,
				updated_at=now()
			WHERE id=$1
			RETURNING `+paymentColumns+`, (SELECT user_id FROM trip_bookings WHERE id=booking_id)`,
			paymentID, string(status))
		return scanPaymentWithOwner(row, &owner)
	}, s.retry...)
	if err != nil {
		return Payment{}, apperr.Normalize(err)
	}

	s.publish(ctx, stream.EventUpdate, owner, p)
	return p, nil
}

func (s *Service) publish(ctx context.Context, typ stream.EventType, owner string, p Payment) {
	if s.events == nil {
		return
	}
	s.events.PublishEvent(ctx, stream.NewChangeEvent(Table, typ, owner, p))
}

func scanPayment(row pgx.Row) (Payment, error) {
	return scanPaymentWithOwner(row, nil)
}

func scanPaymentWithOwner(row pgx.Row, owner *string) (Payment, error) {
	var p Payment
	var status string
	dest := []any{&p.ID, &p.BookingID, &p.Amount, &status, &p.DueDate, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt}
	if owner != nil {
		dest = append(dest, owner)
	}
	if err := row.Scan(dest...); err != nil {
		return Payment{}, err
	}
	p.PaymentStatus = booking.PaymentStatus(status)
	return p, nil
}
