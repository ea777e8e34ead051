package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Intent statuses as stored on payment_intents.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// IntentRequest asks a provider to open a payment for an order.
type IntentRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
}

// IntentResult is the provider's half of a freshly opened payment.
type IntentResult struct {
	ExternalID  string
	Status      string
	RedirectURL string
}

// Provider integrates an external payment processor.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResult, error)
}

// ProviderFor returns the provider selected by deployment configuration.
// Unknown names fail at startup rather than at the first checkout.
func ProviderFor(name, baseURL string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sandbox":
		return Sandbox{BaseURL: baseURL}, nil
	default:
		return nil, fmt.Errorf("payment: unknown provider %q", name)
	}
}

// Sandbox is an in-process provider for development and tests. Every intent
// opens as pending; the outcome arrives through the callback endpoint the
// redirect URL points at.
type Sandbox struct {
	BaseURL string
}

// Name implements Provider.
func (Sandbox) Name() string { return "sandbox" }

// CreateIntent implements Provider.
func (s Sandbox) CreateIntent(_ context.Context, req IntentRequest) (IntentResult, error) {
	if req.Amount.Sign() <= 0 {
		return IntentResult{}, fmt.Errorf("sandbox: non-positive amount %s", req.Amount)
	}
	externalID := "sbx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return IntentResult{
		ExternalID:  externalID,
		Status:      StatusPending,
		RedirectURL: strings.TrimSuffix(s.BaseURL, "/") + "/sandbox/pay/" + externalID,
	}, nil
}
