// Package notification dispatches user-facing messages out of band. Callers
// never wait on delivery and never see its errors.
package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/queue"
)

// Kind names the message template
type Kind string

const (
	KindOrderPaid          Kind = "order_paid"
	KindCommissionCredited Kind = "commission_credited"
	KindPayoutRequested    Kind = "payout_requested"
	KindPayoutApproved     Kind = "payout_approved"
	KindPayoutRejected     Kind = "payout_rejected"
	KindPayoutCompleted    Kind = "payout_completed"
)

// Notification is one message for one recipient
type Notification struct {
	Kind      Kind              `json:"kind"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
}

// Notifier accepts notifications without blocking on delivery
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

const enqueueTimeout = 2 * time.Second

// QueueNotifier hands notifications to the job queue. Enqueues run in the
// background so a slow queue never holds up the caller.
type QueueNotifier struct {
	queue queue.Enqueuer
	log   *zap.Logger
	wg    sync.WaitGroup
}

// NewQueueNotifier creates a notifier backed by the send_notification job
func NewQueueNotifier(q queue.Enqueuer, log *zap.Logger) *QueueNotifier {
	return &QueueNotifier{queue: q, log: log.Named("notifier")}
}

// Notify enqueues n in the background and returns at once. Enqueue failures
// are logged and dropped.
func (n *QueueNotifier) Notify(ctx context.Context, note Notification) {
	if note.Recipient == "" {
		n.log.Debug("notification without recipient dropped", zap.String("kind", string(note.Kind)))
		return
	}

	job, err := queue.NewJob(queue.JobTypeSendNotification, note, 3)
	if err != nil {
		n.log.Warn("failed to build notification job", zap.String("kind", string(note.Kind)), zap.Error(err))
		return
	}

	// the request may already be finishing; enqueue on a context that outlives it
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(detached, enqueueTimeout)
		defer cancel()
		if err := n.queue.Enqueue(ctx, job); err != nil {
			n.log.Warn("failed to enqueue notification",
				zap.String("kind", string(note.Kind)),
				zap.String("recipient", note.Recipient),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until background enqueues have finished
func (n *QueueNotifier) Wait() {
	n.wg.Wait()
}

// NopNotifier discards everything
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}
