package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/services/notification"
)

// NotificationJob delivers queued notifications by email
type NotificationJob struct {
	sender notification.Sender
	log    *zap.Logger
}

// NewNotificationJob creates a new notification job handler
func NewNotificationJob(sender notification.Sender, log *zap.Logger) *NotificationJob {
	return &NotificationJob{sender: sender, log: log.Named("notification_job")}
}

// Process renders and sends one notification. A missing SMTP configuration
// completes the job so it is not retried forever.
func (j *NotificationJob) Process(ctx context.Context, job queue.Job) (interface{}, error) {
	var note notification.Notification
	if err := queue.JobPayload(job, &note); err != nil {
		return nil, err
	}

	subject, body, err := notification.Render(note)
	if err != nil {
		j.log.Warn("dropping unrenderable notification", zap.String("kind", string(note.Kind)), zap.Error(err))
		return nil, nil
	}

	err = j.sender.Send(ctx, note.Recipient, subject, body)
	if errors.Is(err, notification.ErrSenderNotConfigured) {
		j.log.Warn("email not configured, notification skipped",
			zap.String("kind", string(note.Kind)),
			zap.String("job_id", job.ID.String()),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send %s notification: %w", note.Kind, err)
	}
	return nil, nil
}
