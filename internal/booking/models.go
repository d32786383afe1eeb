package booking

import "time"

type Status string

const (
	StatusSaved     Status = "saved"
	StatusInquiry   Status = "inquiry"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every booking status in lifecycle order.
var Statuses = []Status{StatusSaved, StatusInquiry, StatusConfirmed, StatusPaid, StatusCompleted, StatusCancelled}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking links a traveller to a trip. Status and PaymentStatus move
// independently; ReferenceNumber is assigned by the database.
type Booking struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	TripID          string        `json:"trip_id"`
	ReferenceNumber string        `json:"reference_number"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	Participants    int           `json:"participants"`
	TotalAmount     float64       `json:"total_amount"`
	DepartureDate   *Date         `json:"departure_date"`
	ReturnDate      *Date         `json:"return_date"`
	SpecialRequests string        `json:"special_requests"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type CreateRequest struct {
	TripID          string     `json:"trip_id"`
	Status          Status     `json:"status"`
	Participants    int        `json:"participants"`
	TotalAmount     float64    `json:"total_amount"`
	DepartureDate   *Date      `json:"departure_date"`
	ReturnDate      *Date      `json:"return_date"`
	SpecialRequests string     `json:"special_requests"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Status          *Status        `json:"status"`
	PaymentStatus   *PaymentStatus `json:"payment_status"`
	Participants    *int           `json:"participants"`
	TotalAmount     *float64       `json:"total_amount"`
	DepartureDate   *Date          `json:"departure_date"`
	ReturnDate      *Date          `json:"return_date"`
	SpecialRequests *string        `json:"special_requests"`
}

type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[Status]int `json:"by_status"`
	TotalSpent float64        `json:"total_spent"`
}
