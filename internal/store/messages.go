package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siberianesports-creator/chatbotbecks/internal/domain"
	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
)

type insertCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MessageLog appends processed inbound messages to the append-only messages
// collection. Entries are write-once; nothing in the bot updates or deletes
// them. Failures are logged and swallowed.
type MessageLog struct {
	messages insertCollection
	logger   *logrus.Entry
}

// NewMessageLog constructs a MessageLog for the provided messages collection.
func NewMessageLog(messages insertCollection, logger *logrus.Entry) *MessageLog {
	if logger == nil {
		logger = logging.Logger()
	}

	return &MessageLog{
		messages: messages,
		logger:   logger,
	}
}

// Append records one message log entry, stamping CreatedAt when unset.
func (l *MessageLog) Append(ctx context.Context, entry domain.MessageLogEntry) {
	if l == nil || l.messages == nil || ctx == nil || entry.UserID == 0 {
		return
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := l.messages.InsertOne(ctx, entry); err != nil {
		l.logger.WithFields(logging.Fields{
			"event":   "message_log_failed",
			"user_id": entry.UserID,
			"kind":    entry.Kind,
		}).WithError(err).Warn("dropping message log entry")
	}
}
