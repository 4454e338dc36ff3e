package models

import "time"

// MessageType distinguishes user chat from server generated notices.
type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeSystem MessageType = "system"
)

// Message is a chat line in a room.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName"`
	Content    string      `json:"content"`
	Timestamp  string      `json:"timestamp"` // RFC 3339
	Type       MessageType `json:"type"`
}

// Time parses the message timestamp.
func (m Message) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}

// FormatTimestamp renders t the way messages carry it on the wire.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
