package chat

import "time"

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAdmin SenderType = "admin"
	SenderGuide SenderType = "guide"
)

func (t SenderType) Valid() bool {
	return t == SenderUser || t == SenderAdmin || t == SenderGuide
}

// Message is immutable once sent apart from IsRead.
type Message struct {
	ID            string     `json:"id"`
	BookingID     string     `json:"booking_id"`
	SenderID      string     `json:"sender_id"`
	SenderType    SenderType `json:"sender_type"`
	Message       string     `json:"message"`
	IsRead        bool       `json:"is_read"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SendRequest struct {
	SenderID      string     `json:"sender_id"`
	SenderType    SenderType `json:"sender_type"`
	Message       string     `json:"message"`
	AttachmentURL string     `json:"attachment_url"`
}
