package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davidahmann/geogate/internal/ledger"
	"github.com/davidahmann/geogate/internal/metrics"
	"github.com/davidahmann/geogate/pkg/types"
)

// Outbox delivers pending escalation notifications.
type Outbox struct {
	Store   ledger.Store
	Poster  Poster
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// ProcessDue sends due pending notifications and applies exponential backoff
// when posting fails. It returns how many rows were updated.
func (o *Outbox) ProcessDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if o.Store == nil {
		return 0, fmt.Errorf("missing store")
	}
	if o.Poster == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	log := o.logger()
	stamp := now.UTC().Format(time.RFC3339)

	due, err := o.Store.ListNotificationsDue(stamp, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if rec.Status != StatusPending {
			continue
		}

		if task, ok := o.Store.GetReviewTask(rec.TaskID); ok && task.Status != string(types.TaskPending) {
			rec.Status = StatusSkipped
			rec.UpdatedAt = stamp
			if err := o.Store.PutNotification(rec); err != nil {
				return processed, err
			}
			o.Metrics.ObserveNotification(StatusSkipped)
			processed++
			continue
		}

		var msg EscalationMessage
		if err := json.Unmarshal(rec.MessageJSON, &msg); err != nil {
			// Bad payload; mark as sent to prevent infinite retries.
			errMsg := "invalid message_json: " + err.Error()
			rec.LastError = &errMsg
			rec.Status = StatusSent
			rec.SentAt = &stamp
			rec.UpdatedAt = stamp
			if err := o.Store.PutNotification(rec); err != nil {
				return processed, err
			}
			log.Warn("dropping malformed notification", zap.String("notification_id", rec.NotificationID), zap.Error(err))
			o.Metrics.ObserveNotification("invalid")
			processed++
			continue
		}

		if err := o.Poster.Post(ctx, rec.Channel, msg); err != nil {
			backoff := nextAttempt(rec.AttemptCount)
			rec.AttemptCount++
			rec.NextAttemptAt = now.UTC().Add(backoff).Format(time.RFC3339)
			errMsg := err.Error()
			rec.LastError = &errMsg
			rec.UpdatedAt = stamp
			if err := o.Store.PutNotification(rec); err != nil {
				return processed, err
			}
			log.Warn("notification post failed",
				zap.String("notification_id", rec.NotificationID),
				zap.Int("attempt", rec.AttemptCount),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			o.Metrics.ObserveNotification("failed")
			processed++
			continue
		}

		rec.Status = StatusSent
		rec.SentAt = &stamp
		rec.UpdatedAt = stamp
		if err := o.Store.PutNotification(rec); err != nil {
			return processed, err
		}
		log.Info("notification sent", zap.String("notification_id", rec.NotificationID), zap.String("task_id", rec.TaskID))
		o.Metrics.ObserveNotification(StatusSent)
		processed++
	}

	return processed, nil
}

func nextAttempt(attemptCount int) time.Duration {
	// 5s, 10s, 20s, 40s, 80s, 160s, ... capped at 5m.
	base := 5 * time.Second
	if attemptCount <= 0 {
		return base
	}
	if attemptCount > 16 {
		attemptCount = 16
	}
	d := base << attemptCount
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}

// Run polls and processes due notifications until ctx is cancelled.
func (o *Outbox) Run(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := o.ProcessDue(ctx, now, 25); err != nil && ctx.Err() == nil {
				o.logger().Error("outbox pass failed", zap.Error(err))
			}
		}
	}
}

func (o *Outbox) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
