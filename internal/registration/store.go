// Package registration holds subscription sign-ups between checkout creation and payment verification.
package registration

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("pending registration not found")

// PendingRegistration is a validated sign-up waiting for payment. The admin password is
// only ever held as a bcrypt hash.
type PendingRegistration struct {
	RegistrationID string          `json:"registration_id"`
	SessionID      string          `json:"session_id"`
	CompanyName    string          `json:"company_name"`
	CompanyEmail   string          `json:"company_email"`
	CompanyPhone   string          `json:"company_phone"`
	CompanyAddress string          `json:"company_address"`
	Industry       string          `json:"industry"`
	AdminFirstName string          `json:"admin_first_name"`
	AdminLastName  string          `json:"admin_last_name"`
	AdminEmail     string          `json:"admin_email"`
	AdminPhone     string          `json:"admin_phone"`
	PasswordHash   string          `json:"password_hash"`
	PlanName       string          `json:"plan_name"`
	BillingCycle   string          `json:"billing_cycle"`
	Modules        []string        `json:"modules"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Store keeps pending registrations keyed by registration id with an explicit TTL.
type Store interface {
	Put(ctx context.Context, id string, reg PendingRegistration, ttl time.Duration) error
	// Get returns ErrNotFound when the entry is absent or expired.
	Get(ctx context.Context, id string) (*PendingRegistration, error)
	Remove(ctx context.Context, id string) error
}
