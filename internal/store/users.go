package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siberianesports-creator/chatbotbecks/internal/domain"
	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
)

const defaultLanguageCode = "ru"

type userCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// UserStore owns the per-user record lifecycle. Persistence failures are
// caught here: every operation logs the failure and degrades to a no-op so
// message handling never halts on a storage outage. Counters may under-count
// during an outage; the conversation keeps flowing.
type UserStore struct {
	users  userCollection
	logger *logrus.Entry
}

// NewUserStore constructs a UserStore for the provided users collection.
func NewUserStore(users userCollection, logger *logrus.Entry) *UserStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &UserStore{
		users:  users,
		logger: logger,
	}
}

// GetByID fetches a user by Telegram user_id. The second result is false when
// the record is absent or the store is unavailable.
func (s *UserStore) GetByID(ctx context.Context, userID int64) (domain.User, bool) {
	if s == nil || s.users == nil || ctx == nil || userID == 0 {
		return domain.User{}, false
	}

	result := s.users.FindOne(ctx, bson.M{"user_id": userID})
	if result == nil {
		return domain.User{}, false
	}
	if err := result.Err(); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			s.warn("user_lookup_failed", userID, err)
		}
		return domain.User{}, false
	}

	var user domain.User
	if err := result.Decode(&user); err != nil {
		s.warn("user_decode_failed", userID, err)
		return domain.User{}, false
	}

	return user, true
}

// GetOrCreate returns the existing record for user_id unchanged, or creates a
// fresh one with zeroed counters. It never overwrites the stored display
// metadata of an existing user. When the store is unavailable it returns a
// non-persisted record built from the arguments so the caller can still
// compose a reply.
func (s *UserStore) GetOrCreate(ctx context.Context, userID int64, fullName, username string) (domain.User, bool) {
	fallback := func() domain.User {
		now := time.Now().UTC().Truncate(time.Millisecond)
		return domain.User{
			UserID:       userID,
			Username:     username,
			FullName:     fullName,
			CreatedAt:    now,
			LastActivity: now,
			LanguageCode: defaultLanguageCode,
		}
	}

	if s == nil || s.users == nil || ctx == nil || userID == 0 {
		return fallback(), false
	}

	if existing, ok := s.GetByID(ctx, userID); ok {
		return existing, false
	}

	user := fallback()
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a race against a concurrent first message; the unique
			// user_id index guarantees exactly one record.
			if existing, ok := s.GetByID(ctx, userID); ok {
				return existing, false
			}
		}
		s.warn("user_create_failed", userID, err)
		return user, false
	}

	s.logger.WithFields(logging.Fields{
		"event":   "user_registered",
		"user_id": userID,
	}).Info("registered new user")

	return user, true
}

// TouchActivity sets last_activity to now for an existing record; absent
// records and storage failures are logged no-ops.
func (s *UserStore) TouchActivity(ctx context.Context, userID int64) {
	if s == nil || s.users == nil || ctx == nil || userID == 0 {
		return
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := s.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"last_activity": now}},
	)
	if err != nil {
		s.warn("user_touch_failed", userID, err)
		return
	}

	if result != nil && result.MatchedCount == 0 {
		s.logger.WithFields(logging.Fields{
			"event":   "user_touch_missing",
			"user_id": userID,
		}).Debug("activity update for unknown user")
	}
}

// IncrementMessageCount atomically increments messages_count for an existing
// record via $inc, so concurrent messages from one user cannot lose updates.
func (s *UserStore) IncrementMessageCount(ctx context.Context, userID int64) {
	if s == nil || s.users == nil || ctx == nil || userID == 0 {
		return
	}

	result, err := s.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$inc": bson.M{"messages_count": 1}},
	)
	if err != nil {
		s.warn("user_count_failed", userID, err)
		return
	}

	if result != nil && result.MatchedCount == 0 {
		s.logger.WithFields(logging.Fields{
			"event":   "user_count_missing",
			"user_id": userID,
		}).Debug("counter update for unknown user")
	}
}

func (s *UserStore) warn(event string, userID int64, err error) {
	s.logger.WithFields(logging.Fields{
		"event":   event,
		"user_id": userID,
	}).WithError(err).Warn("user store operation degraded to no-op")
}
