package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/awibowo/backend-storefront/internal/obs"
)

// TaskClient is the slice of asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer queues transactional email as background tasks. It satisfies the
// auth package's Notifier interface.
type Enqueuer struct {
	Client TaskClient
}

// SendOTP queues a one-time login code email.
func (e Enqueuer) SendOTP(ctx context.Context, email, code string) error {
	return e.enqueue(ctx, TypeEmailOTP, OTPPayload{Email: email, Code: code})
}

// SendPasswordReset queues a password reset link email.
func (e Enqueuer) SendPasswordReset(ctx context.Context, email, link string) error {
	return e.enqueue(ctx, TypeEmailPasswordReset, PasswordResetPayload{Email: email, Link: link})
}

// SendOrderReceipt queues an order confirmation email.
func (e Enqueuer) SendOrderReceipt(ctx context.Context, p OrderReceiptPayload) error {
	return e.enqueue(ctx, TypeEmailOrderReceipt, p)
}

// SendOrderStatus queues a status change notification.
func (e Enqueuer) SendOrderStatus(ctx context.Context, p OrderStatusPayload) error {
	return e.enqueue(ctx, TypeEmailOrderStatus, p)
}

func (e Enqueuer) enqueue(ctx context.Context, kind string, payload any) error {
	task, err := newTask(kind, payload)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", kind, err)
	}
	if obs.EmailsEnqueuedTotal != nil {
		obs.EmailsEnqueuedTotal.WithLabelValues(kind).Inc()
	}
	return nil
}
