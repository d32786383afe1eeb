package payment

import (
	"time"

	"backend-birdtours/internal/booking"
)

// Payment is one scheduled milestone against a booking.
type Payment struct {
	ID            string                `json:"id"`
	BookingID     string                `json:"booking_id"`
	Amount        float64               `json:"amount"`
	PaymentStatus booking.PaymentStatus `json:"payment_status"`
	DueDate       *booking.Date         `json:"due_date"`
	PaidAt        *time.Time            `json:"paid_at"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type ScheduleRequest struct {
	Amount  float64    `json:"amount"`
	DueDate *booking.Date `json:"due_date"`
}

type StatusRequest struct {
	PaymentStatus booking.PaymentStatus `json:"payment_status"`
}
