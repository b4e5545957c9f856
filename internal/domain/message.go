package domain

import "time"

// Message kinds recorded in the append-only message log.
const (
	MessageKindText     = "text"
	MessageKindPhoto    = "photo"
	MessageKindVideo    = "video"
	MessageKindDocument = "document"
	MessageKindVoice    = "voice"
)

// MessageLogEntry is a write-once record of a processed inbound message.
// Content holds the text body for text messages; FileID holds the
// provider-assigned file reference for media.
type MessageLogEntry struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	MessageID int64     `bson:"message_id" json:"message_id"`
	ChatID    int64     `bson:"chat_id" json:"chat_id"`
	Kind      string    `bson:"kind" json:"kind"`
	Content   string    `bson:"content,omitempty" json:"content,omitempty"`
	FileID    string    `bson:"file_id,omitempty" json:"file_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// StatsSnapshot is a daily aggregate written by the snapshot job.
type StatsSnapshot struct {
	Date          time.Time `bson:"date" json:"date"`
	TotalUsers    int64     `bson:"total_users" json:"total_users"`
	ActiveUsers   int64     `bson:"active_users" json:"active_users"`
	TotalMessages int64     `bson:"total_messages" json:"total_messages"`
}
