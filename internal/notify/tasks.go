package notify

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names routed through the asynq mux.
const (
	TypeEmailOTP           = "email:otp"
	TypeEmailPasswordReset = "email:password_reset"
	TypeEmailOrderReceipt  = "email:order_receipt"
	TypeEmailOrderStatus   = "email:order_status"

	// QueueEmails is the asynq queue all email tasks land on.
	QueueEmails = "emails"
)

// OTPPayload carries a one-time login code.
type OTPPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// PasswordResetPayload carries a reset link.
type PasswordResetPayload struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

// OrderReceiptPayload carries the confirmation for a freshly placed order.
type OrderReceiptPayload struct {
	Email       string `json:"email"`
	OrderNumber string `json:"order_number"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
}

// OrderStatusPayload announces an order status change.
type OrderStatusPayload struct {
	Email       string `json:"email"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

func newTask(kind string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notify: encode %s payload: %w", kind, err)
	}
	return asynq.NewTask(kind, data, asynq.Queue(QueueEmails), asynq.MaxRetry(5)), nil
}
