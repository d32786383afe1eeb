package stream

import "encoding/json"

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row change on a user-owned table. For deletes, Record
// carries at least the row id.
type ChangeEvent struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	UserID string          `json:"user_id"`
	Record json.RawMessage `json:"record"`
}

// NewChangeEvent encodes record into a ChangeEvent.
func NewChangeEvent(table string, typ EventType, userID string, record any) ChangeEvent {
	raw, err := json.Marshal(record)
	if err != nil {
		raw = []byte("null")
	}
	return ChangeEvent{Table: table, Type: typ, UserID: userID, Record: raw}
}

func UserTopic(userID string) string {
	return "user:" + userID
}
