// Package snapshot persists daily statistics aggregates on a cron schedule.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siberianesports-creator/chatbotbecks/internal/domain"
	"github.com/siberianesports-creator/chatbotbecks/internal/logging"
)

// activeWindow matches the /stats command's definition of an active user.
const activeWindow = 24 * time.Hour

// runTimeout bounds one scheduled snapshot run.
const runTimeout = 30 * time.Second

// Counts supplies the aggregates captured by a snapshot.
type Counts interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context, since time.Time) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
}

type insertCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Job periodically writes a StatsSnapshot to the statistics collection.
type Job struct {
	counts     Counts
	statistics insertCollection
	scheduler  *cron.Cron
	logger     *logrus.Entry
	now        func() time.Time
}

// NewJob constructs a snapshot job over the given counts source and
// statistics collection.
func NewJob(counts Counts, statistics insertCollection, logger *logrus.Entry) *Job {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Job{
		counts:     counts,
		statistics: statistics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the job under the given cron schedule and begins running it.
func (j *Job) Start(schedule string) error {
	if j == nil {
		return errors.New("snapshot job is not initialized")
	}
	if j.scheduler != nil {
		return errors.New("snapshot job already started")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if err := j.Run(ctx); err != nil {
			j.logger.WithField("event", "snapshot_failed").WithError(err).Warn("scheduled snapshot failed")
		}
	}); err != nil {
		return fmt.Errorf("register snapshot schedule %q: %w", schedule, err)
	}

	j.scheduler = scheduler
	scheduler.Start()

	j.logger.WithFields(logging.Fields{
		"event":    "snapshot_scheduled",
		"schedule": schedule,
	}).Info("statistics snapshot job started")

	return nil
}

// Stop halts the scheduler; an in-flight run finishes on its own.
func (j *Job) Stop() {
	if j == nil || j.scheduler == nil {
		return
	}

	j.scheduler.Stop()
	j.logger.WithField("event", "snapshot_stopped").Info("statistics snapshot job stopped")
}

// Run captures one snapshot immediately. The snapshot date is the current
// UTC day at midnight, so re-running on the same day produces the same key.
func (j *Job) Run(ctx context.Context) error {
	if j == nil || j.counts == nil || j.statistics == nil {
		return errors.New("snapshot job is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := j.now()

	totalUsers, err := j.counts.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("snapshot users: %w", err)
	}
	activeUsers, err := j.counts.CountActiveUsers(ctx, now.Add(-activeWindow))
	if err != nil {
		return fmt.Errorf("snapshot active users: %w", err)
	}
	totalMessages, err := j.counts.CountMessages(ctx)
	if err != nil {
		return fmt.Errorf("snapshot messages: %w", err)
	}

	snapshot := domain.StatsSnapshot{
		Date:          time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		TotalUsers:    totalUsers,
		ActiveUsers:   activeUsers,
		TotalMessages: totalMessages,
	}

	if _, err := j.statistics.InsertOne(ctx, snapshot); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	j.logger.WithFields(logging.Fields{
		"event":          "snapshot_written",
		"date":           snapshot.Date.Format("2006-01-02"),
		"total_users":    snapshot.TotalUsers,
		"active_users":   snapshot.ActiveUsers,
		"total_messages": snapshot.TotalMessages,
	}).Info("statistics snapshot written")

	return nil
}
