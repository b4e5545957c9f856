// Package admin provides startup helpers for flagging the configured admin
// users in the database. The flag is display metadata only; the router gates
// admin commands on the configured allow-list, never on this field.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
)

type userCollection interface {
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar reconciles the stored is_admin flags with the configured allow-list.
type Registrar struct {
	users  userCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// EnsureAdmins sets is_admin=true on every configured admin user already in
// the store and clears it on users no longer listed. Admins who have not
// messaged the bot yet get flagged on their first sighting by a later run.
func (r *Registrar) EnsureAdmins(ctx context.Context, adminIDs []int64) error {
	if r == nil || r.users == nil {
		return errors.New("admin registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if len(adminIDs) == 0 {
		return errors.New("admin ids are required")
	}

	demoteResult, err := r.users.UpdateMany(ctx,
		bson.M{"is_admin": true, "user_id": bson.M{"$nin": adminIDs}},
		bson.M{"$set": bson.M{"is_admin": false}},
	)
	if err != nil {
		return fmt.Errorf("demote stale admins: %w", err)
	}

	promoteResult, err := r.users.UpdateMany(ctx,
		bson.M{"user_id": bson.M{"$in": adminIDs}},
		bson.M{"$set": bson.M{"is_admin": true}},
	)
	if err != nil {
		return fmt.Errorf("flag admins: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":      "admin_bootstrap",
		"configured": len(adminIDs),
		"demoted":    modifiedCount(demoteResult),
		"flagged":    matchedCount(promoteResult),
	}).Info("reconciled admin flags")

	return nil
}

func modifiedCount(result *mongo.UpdateResult) int64 {
	if result == nil {
		return 0
	}
	return result.ModifiedCount
}

func matchedCount(result *mongo.UpdateResult) int64 {
	if result == nil {
		return 0
	}
	return result.MatchedCount
}
