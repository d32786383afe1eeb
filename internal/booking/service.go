package booking

import (
	"context"
	"fmt"
	"strings"

	"backend-birdtours/internal/db"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/shared/apperr"
	"backend-birdtours/internal/shared/retry"
	"backend-birdtours/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

const Table = "trip_bookings"

const bookingColumns = `id, user_id, trip_id, COALESCE(reference_number, ''), status, payment_status, participants,
	total_amount, departure_date, return_date, COALESCE(special_requests, ''), created_at, updated_at`

const (
	MsgDeleteNotSaved = "Only saved bookings can be deleted. Cancel the booking instead."
	MsgCustomerStatus = "You can only send an inquiry for or cancel a booking."
)

// Publisher receives change events after successful mutations. *stream.Hub
// implements it.
type Publisher interface {
	PublishEvent(ctx context.Context, ev stream.ChangeEvent)
}

type Service struct {
	db     db.Querier
	events Publisher
	logger *logrus.Logger
	retry  []retry.Option
}

func NewService(db db.Querier, events Publisher, logger *logrus.Logger, opts ...retry.Option) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		db:     db,
		events: events,
		logger: logger,
		retry:  append([]retry.Option{retry.WithLogger(logger)}, opts...),
	}
}

// List returns the user's bookings, newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, userID string, status Status) ([]Booking, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown booking status %q", status))
	}
	if status == "" {
		return s.list(ctx, `SELECT `+bookingColumns+` FROM trip_bookings WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	}
	return s.list(ctx, `SELECT `+bookingColumns+` FROM trip_bookings WHERE user_id=$1 AND status=$2 ORDER BY created_at DESC`, userID, string(status))
}

// ListAll is the operator view across every user.
func (s *Service) ListAll(ctx context.Context, status Status) ([]Booking, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown booking status %q", status))
	}
	if status == "" {
		return s.list(ctx, `SELECT `+bookingColumns+` FROM trip_bookings ORDER BY created_at DESC`)
	}
	return s.list(ctx, `SELECT `+bookingColumns+` FROM trip_bookings WHERE status=$1 ORDER BY created_at DESC`, string(status))
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	bookings, err := s.List(ctx, userID, "")
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(bookings), nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Booking, error) {
	b, err := retry.Do(ctx, func(ctx context.Context) (Booking, error) {
		return scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM trip_bookings WHERE id=$1 AND user_id=$2`, id, userID))
	}, s.retry...)
	if err != nil {
		return Booking{}, apperr.Normalize(err)
	}
	return b, nil
}

func (s *Service) getAny(ctx context.Context, id string) (Booking, error) {
	b, err := retry.Do(ctx, func(ctx context.Context) (Booking, error) {
		return scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM trip_bookings WHERE id=$1`, id))
	}, s.retry...)
	if err != nil {
		return Booking{}, apperr.Normalize(err)
	}
	return b, nil
}

// Create stores a new booking in saved or inquiry state. The returned record
// carries the database-assigned reference number.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Booking, error) {
	if req.TripID == "" {
		return Booking{}, apperr.Validation("trip_id is required")
	}
	if req.Status == "" {
		req.Status = StatusSaved
	}
	if req.Status != StatusSaved && req.Status != StatusInquiry {
		return Booking{}, apperr.Validation("new bookings start as saved or inquiry")
	}
	if req.Participants == 0 {
		req.Participants = 1
	}
	if err := validateShape(req.Participants, req.TotalAmount, req.DepartureDate, req.ReturnDate); err != nil {
		return Booking{}, err
	}

	id := uuid.NewString()
	b, err := retry.Do(ctx, func(ctx context.Context) (Booking, error) {
		return scanBooking(s.db.QueryRow(ctx, `
			INSERT INTO trip_bookings (id, user_id, trip_id, status, payment_status, participants, total_amount, departure_date, return_date, special_requests)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING `+bookingColumns,
			id, userID, req.TripID, string(req.Status), string(PaymentPending), req.Participants,
			req.TotalAmount, req.DepartureDate, req.ReturnDate, strings.TrimSpace(req.SpecialRequests)))
	}, s.retry...)
	if err != nil {
		return Booking{}, apperr.Normalize(err)
	}

	s.publish(ctx, stream.EventInsert, b)
	return b, nil
}

// Update applies a customer's patch. Customers may only move a booking to
// inquiry or cancelled and cannot touch payment or price fields.
func (s *Service) Update(ctx context.Context, userID, id string, patch Patch) (Booking, error) {
	if patch.PaymentStatus != nil || patch.TotalAmount != nil {
		return Booking{}, apperr.AccessDenied("")
	}
	if patch.Status != nil && *patch.Status != StatusInquiry && *patch.Status != StatusCancelled {
		return Booking{}, apperr.Validation(MsgCustomerStatus)
	}

	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return Booking{}, err
	}
	return s.update(ctx, current, patch, true)
}

// AdminUpdate applies an operator patch to any booking.
func (s *Service) AdminUpdate(ctx context.Context, id string, patch Patch) (Booking, error) {
	current, err := s.getAny(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	return s.update(ctx, current, patch, false)
}

func (s *Service) update(ctx context.Context, b Booking, patch Patch, scoped bool) (Booking, error) {
	if patch.Status != nil {
		if !CanTransition(b.Status, *patch.Status) {
			return Booking{}, apperr.Validation(fmt.Sprintf("a %s booking cannot become %s", b.Status, *patch.Status))
		}
		b.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		if !CanTransitionPayment(b.PaymentStatus, *patch.PaymentStatus) {
			return Booking{}, apperr.Validation(fmt.Sprintf("payment status cannot move from %s to %s", b.PaymentStatus, *patch.PaymentStatus))
		}
		b.PaymentStatus = *patch.PaymentStatus
	}
	if patch.Participants != nil {
		b.Participants = *patch.Participants
	}
	if patch.TotalAmount != nil {
		b.TotalAmount = *patch.TotalAmount
	}
	if patch.DepartureDate != nil {
		b.DepartureDate = patch.DepartureDate
	}
	if patch.ReturnDate != nil {
		b.ReturnDate = patch.ReturnDate
	}
	if patch.SpecialRequests != nil {
		b.SpecialRequests = strings.TrimSpace(*patch.SpecialRequests)
	}
	if err := validateShape(b.Participants, b.TotalAmount, b.DepartureDate, b.ReturnDate); err != nil {
		return Booking{}, err
	}

	where := `WHERE id=$1`
	args := []any{b.ID, string(b.Status), string(b.PaymentStatus), b.Participants, b.TotalAmount,
		b.DepartureDate, b.ReturnDate, b.SpecialRequests}
	if scoped {
		where = `WHERE id=$1 AND user_id=$9`
		args = append(args, b.UserID)
	}

	updated, err := retry.Do(ctx, func(ctx context.Context) (Booking, error) {
		return scanBooking(s.db.QueryRow(ctx, `
			UPDATE trip_bookings
			SET status=$2, payment_status=$3, participants=$4, total_amount=$5, departure_date=$6, return_date=$7, special_requests=$8, updated_at=now()
			`+where+`
			RETURNING `+bookingColumns, args...))
	}, s.retry...)
	if err != nil {
		return Booking{}, apperr.Normalize(err)
	}

	s.publish(ctx, stream.EventUpdate, updated)
	return updated, nil
}

// Delete removes one of the user's saved bookings. Bookings past saved are
// cancelled through Update instead.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if current.Status != StatusSaved {
		return apperr.Validation(MsgDeleteNotSaved)
	}

	err = retry.Run(ctx, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `DELETE FROM trip_bookings WHERE id=$1 AND user_id=$2 AND status=$3`, id, userID, string(StatusSaved))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	}, s.retry...)
	if err != nil {
		return apperr.Normalize(err)
	}

	s.publish(ctx, stream.EventDelete, current)
	return nil
}

func (s *Service) publish(ctx context.Context, typ stream.EventType, b Booking) {
	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"user_id":    b.UserID,
		"status":     b.Status,
		"event":      typ,
		"type":       "booking",
	}).Info("Booking changed")
	if s.events == nil {
		return
	}
	s.events.PublishEvent(ctx, stream.NewChangeEvent(Table, typ, b.UserID, b))
}

func (s *Service) list(ctx context.Context, sql string, args ...any) ([]Booking, error) {
	bookings, err := retry.Do(ctx, func(ctx context.Context) ([]Booking, error) {
		rows, err := s.db.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		bookings := []Booking{}
		for rows.Next() {
			b, err := scanBooking(rows)
			if err != nil {
				return nil, err
			}
			bookings = append(bookings, b)
		}
		return bookings, rows.Err()
	}, s.retry...)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	var status, payment string
	err := row.Scan(&b.ID, &b.UserID, &b.TripID, &b.ReferenceNumber, &status, &payment, &b.Participants,
		&b.TotalAmount, &b.DepartureDate, &b.ReturnDate, &b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Booking{}, err
	}
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(payment)
	return b, nil
}
