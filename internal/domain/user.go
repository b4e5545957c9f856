// Package domain defines the persistent entities shared across the bot.
package domain

import "time"

// User is the durable per-user record keyed by the Telegram user_id.
// MessagesCount counts successfully routed text messages only.
type User struct {
	UserID        int64     `bson:"user_id" json:"user_id"`
	Username      string    `bson:"username,omitempty" json:"username,omitempty"`
	FullName      string    `bson:"full_name" json:"full_name"`
	IsAdmin       bool      `bson:"is_admin" json:"is_admin"`
	MessagesCount int64     `bson:"messages_count" json:"messages_count"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	LastActivity  time.Time `bson:"last_activity" json:"last_activity"`
	LanguageCode  string    `bson:"language_code,omitempty" json:"language_code,omitempty"`
	Settings      string    `bson:"settings,omitempty" json:"settings,omitempty"`
}
