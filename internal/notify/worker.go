package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Worker turns queued email tasks into delivered mail.
type Worker struct {
	Mail   common.EmailSender
	From   string
	Logger zerolog.Logger
}

// Register mounts the worker's handlers on the asynq mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeEmailOTP, w.handleOTP)
	mux.HandleFunc(TypeEmailPasswordReset, w.handlePasswordReset)
	mux.HandleFunc(TypeEmailOrderReceipt, w.handleOrderReceipt)
	mux.HandleFunc(TypeEmailOrderStatus, w.handleOrderStatus)
}

func (w *Worker) handleOTP(_ context.Context, task *asynq.Task) error {
	var p OTPPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("notify: decode otp payload: %w", err)
	}
	body := fmt.Sprintf("<p>Your login code is <strong>%s</strong>. It expires in a few minutes.</p>", p.Code)
	return w.send(p.Email, "Your login code", body)
}

func (w *Worker) handlePasswordReset(_ context.Context, task *asynq.Task) error {
	var p PasswordResetPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("notify: decode reset payload: %w", err)
	}
	body := fmt.Sprintf("<p>Reset your password using <a href=%q>this link</a>. If you did not ask for this, ignore this email.</p>", p.Link)
	return w.send(p.Email, "Reset your password", body)
}

func (w *Worker) handleOrderReceipt(_ context.Context, task *asynq.Task) error {
	var p OrderReceiptPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("notify: decode receipt payload: %w", err)
	}
	subject := fmt.Sprintf("Order %s confirmed", p.OrderNumber)
	body := fmt.Sprintf("<p>Thanks for your order <strong>%s</strong>.</p><p>Total: %s %s</p>",
		p.OrderNumber, p.Currency, p.Total)
	return w.send(p.Email, subject, body)
}

func (w *Worker) handleOrderStatus(_ context.Context, task *asynq.Task) error {
	var p OrderStatusPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("notify: decode status payload: %w", err)
	}
	subject := fmt.Sprintf("Order %s update", p.OrderNumber)
	body := fmt.Sprintf("<p>Your order <strong>%s</strong> is now <strong>%s</strong>.</p>", p.OrderNumber, p.Status)
	return w.send(p.Email, subject, body)
}

func (w *Worker) send(to, subject, body string) error {
	if to == "" {
		return nil
	}
	if err := w.Mail.Send(w.From, to, subject, body); err != nil {
		w.Logger.Error().Err(err).Str("subject", subject).Msg("email delivery failed")
		return err
	}
	w.Logger.Info().Str("subject", subject).Msg("email delivered")
	return nil
}
