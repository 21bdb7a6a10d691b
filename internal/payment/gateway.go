package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Gateway errors. Implementations wrap one of these so callers never see provider types.
var (
	ErrGatewayUnavailable = errors.New("payment gateway is currently unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrInvalidAmount      = errors.New("invalid payment amount")
)

// Metadata keys attached to every checkout session.
const (
	MetaRegistrationID = "registration_id"
	MetaCompanyEmail   = "company_email"
	MetaAdminEmail     = "admin_email"
	MetaPlanName       = "plan_name"
)

// CheckoutSessionRequest carries everything needed to open a hosted checkout page.
type CheckoutSessionRequest struct {
	RegistrationID string
	PlanName       string
	BillingCycle   string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutSessionStatus is the polled state of a session.
type CheckoutSessionStatus struct {
	ID        string
	Status    string
	IsPaid    bool
	PaymentID string
	Metadata  map[string]string
}

// Gateway is the external payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionStatus, error)
}

// MinorUnits converts an amount to the provider's smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
