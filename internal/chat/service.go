package chat

import (
	"context"
	"net/url"
	"strings"

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

const Table = "chat_messages"

const maxMessageLength = 4000

const messageColumns = `id, booking_id, sender_id, sender_type, message, is_read, COALESCE(attachment_url, ''), created_at`

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

// List returns the thread for bookingID, oldest first, if userID owns it.
func (s *Service) List(ctx context.Context, userID, bookingID string) ([]Message, error) {
	if err := booking.RequireOwner(ctx, s.db, userID, bookingID, s.retry...); err != nil {
		return nil, err
	}
	return s.Thread(ctx, bookingID)
}

// Thread returns every message on bookingID without an ownership check.
func (s *Service) Thread(ctx context.Context, bookingID string) ([]Message, error) {
	messages, err := retry.Do(ctx, func(ctx context.Context) ([]Message, error) {
		rows, err := s.db.Query(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE booking_id=$1 ORDER BY created_at`, bookingID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		messages := []Message{}
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return nil, err
			}
			messages = append(messages, m)
		}
		return messages, rows.Err()
	}, s.retry...)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return messages, nil
}

// SendAsUser posts a customer message on their own booking.
func (s *Service) SendAsUser(ctx context.Context, userID, bookingID string, req SendRequest) (Message, error) {
	req.SenderID = userID
	req.SenderType = SenderUser
	if err := validateSend(req); err != nil {
		return Message{}, err
	}
	if err := booking.RequireOwner(ctx, s.db, userID, bookingID, s.retry...); err != nil {
		return Message{}, err
	}
	return s.insert(ctx, userID, bookingID, req)
}

// SendAsStaff posts an admin or guide message on any booking.
func (s *Service) SendAsStaff(ctx context.Context, bookingID string, req SendRequest) (Message, error) {
	if req.SenderType == SenderUser {
		return Message{}, apperr.Validation("staff messages must use sender_type admin or guide")
	}
	if err := validateSend(req); err != nil {
		return Message{}, err
	}
	owner, err := booking.OwnerOf(ctx, s.db, bookingID, s.retry...)
	if err != nil {
		return Message{}, err
	}
	return s.insert(ctx, owner, bookingID, req)
}

// MarkRead flags the unread messages reader has received on bookingID and
// returns how many changed. Customers receive staff messages and staff
// receive customer messages.
func (s *Service) MarkRead(ctx context.Context, bookingID string, reader SenderType) (int64, error) {
	sql := `UPDATE chat_messages SET is_read=true WHERE booking_id=$1 AND sender_type='user' AND NOT is_read`
	if reader == SenderUser {
		sql = `UPDATE chat_messages SET is_read=true WHERE booking_id=$1 AND sender_type<>'user' AND NOT is_read`
	}

	n, err := retry.Do(ctx, func(ctx context.Context) (int64, error) {
		tag, err := s.db.Exec(ctx, sql, bookingID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}, s.retry...)
	if err != nil {
		return 0, apperr.Normalize(err)
	}
	return n, nil
}

// MarkReadAsUser is MarkRead for the booking's owner.
func (s *Service) MarkReadAsUser(ctx context.Context, userID, bookingID string) (int64, error) {
	if err := booking.RequireOwner(ctx, s.db, userID, bookingID, s.retry...); err != nil {
		return 0, err
	}
	return s.MarkRead(ctx, bookingID, SenderUser)
}

func (s *Service) insert(ctx context.Context, owner, bookingID string, req SendRequest) (Message, error) {
	id := uuid.NewString()
	m, err := retry.Do(ctx, func(ctx context.Context) (Message, error) {
		return scanMessage(s.db.QueryRow(ctx, `
			INSERT INTO chat_messages (id, booking_id, sender_id, sender_type, message, attachment_url)
			VALUES ($1,$2,$3,$4,$5,NULLIF($6, ''))
			RETURNING `+messageColumns,
			id, bookingID, req.SenderID, string(req.SenderType), strings.TrimSpace(req.Message), req.AttachmentURL))
	}, s.retry...)
	if err != nil {
		return Message{}, apperr.Normalize(err)
	}

	if s.events != nil {
		s.events.PublishEvent(ctx, stream.NewChangeEvent(Table, stream.EventInsert, owner, m))
	}
	return m, nil
}

func validateSend(req SendRequest) error {
	body := strings.TrimSpace(req.Message)
	if body == "" {
		return apperr.Validation("message cannot be empty")
	}
	if len(body) > maxMessageLength {
		return apperr.Validation("message is too long")
	}
	if !req.SenderType.Valid() {
		return apperr.Validation("sender_type must be user, admin or guide")
	}
	if req.SenderID == "" {
		return apperr.Validation("sender_id is required")
	}
	if req.AttachmentURL != "" {
		u, err := url.Parse(req.AttachmentURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return apperr.Validation("attachment_url must be an http(s) URL")
		}
	}
	return nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	var sender string
	err := row.Scan(&m.ID, &m.BookingID, &m.SenderID, &sender, &m.Message, &m.IsRead, &m.AttachmentURL, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	m.SenderType = SenderType(sender)
	return m, nil
}
