package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"compugear/internal/metrics"
	"compugear/internal/payment"
	"compugear/internal/registration"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CheckoutConfig struct {
	PublicBaseURL string
	Currency      string
	PendingTTL    time.Duration
}

type CheckoutResult struct {
	RegistrationID    string          `json:"registration_id"`
	CheckoutURL       string          `json:"checkout_url"`
	CheckoutSessionID string          `json:"checkout_session_id"`
	PlanName          string          `json:"plan_name"`
	BillingCycle      string          `json:"billing_cycle"`
	Amount            decimal.Decimal `json:"amount"`
}

type VerifyPaymentRequest struct {
	RegistrationID string `json:"registration_id" binding:"required"`
	SessionID      string `json:"session_id"`
}

type VerifyResult struct {
	PlanName           string `json:"plan_name"`
	CompanyID          string `json:"company_id"`
	CompanyName        string `json:"company_name"`
	AdminEmail         string `json:"admin_email"`
	PaymentID          string `json:"payment_id"`
	AlreadyProvisioned bool   `json:"already_provisioned"`
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req SubscribeRequest) (CheckoutResult, error)
	VerifyPaymentAndRegister(ctx context.Context, registrationID, sessionID string) (VerifyResult, error)
}

type checkoutService struct {
	subs    SubscriptionService
	gateway payment.Gateway
	store   registration.Store
	cfg     CheckoutConfig
	log     *zap.Logger
	now     func() time.Time

	inflight singleflight.Group
}

func NewCheckoutService(subs SubscriptionService, gateway payment.Gateway, store registration.Store, cfg CheckoutConfig, log *zap.Logger) CheckoutService {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 2 * time.Hour
	}
	return &checkoutService{subs: subs, gateway: gateway, store: store, cfg: cfg, log: log, now: time.Now}
}

func (s *checkoutService) CreateCheckout(ctx context.Context, req SubscribeRequest) (CheckoutResult, error) {
	prep, err := s.subs.Validate(ctx, req)
	if err != nil {
		return CheckoutResult{}, err
	}

	registrationID := uuid.NewString()
	amount := prep.Plan.Amount(prep.BillingCycle)
	q := url.Values{}
	q.Set("registration_id", registrationID)

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutSessionRequest{
		RegistrationID: registrationID,
		PlanName:       prep.Plan.Name,
		BillingCycle:   prep.BillingCycle,
		Amount:         amount,
		Currency:       s.cfg.Currency,
		Description:    fmt.Sprintf("%s subscription for %s", prep.Plan.Name, prep.CompanyName),
		// The gateway substitutes the literal {CHECKOUT_SESSION_ID} on redirect.
		SuccessURL: s.cfg.PublicBaseURL + "/erpwebsite/payment-success?" + q.Encode() + "&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.PublicBaseURL + "/erpwebsite/payment-cancelled?" + q.Encode(),
		Metadata: map[string]string{
			payment.MetaCompanyEmail: prep.CompanyEmail,
			payment.MetaAdminEmail:   prep.AdminEmail,
			payment.MetaPlanName:     prep.Plan.Name,
		},
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("%w: could not create checkout session: %v", ErrExternalService, err)
	}

	pending := registration.PendingRegistration{
		RegistrationID: registrationID,
		SessionID:      session.ID,
		CompanyName:    prep.CompanyName,
		CompanyEmail:   prep.CompanyEmail,
		CompanyPhone:   prep.CompanyPhone,
		CompanyAddress: prep.CompanyAddress,
		Industry:       prep.Industry,
		AdminFirstName: prep.AdminFirstName,
		AdminLastName:  prep.AdminLastName,
		AdminEmail:     prep.AdminEmail,
		AdminPhone:     prep.AdminPhone,
		PasswordHash:   prep.PasswordHash,
		PlanName:       prep.Plan.Name,
		BillingCycle:   prep.BillingCycle,
		Modules:        prep.Modules,
		Amount:         amount,
		CreatedAt:      s.now(),
	}
	if err := s.store.Put(ctx, registrationID, pending, s.cfg.PendingTTL); err != nil {
		return CheckoutResult{}, fmt.Errorf("failed to store pending registration: %w", err)
	}

	return CheckoutResult{
		RegistrationID:    registrationID,
		CheckoutURL:       session.URL,
		CheckoutSessionID: session.ID,
		PlanName:          prep.Plan.Name,
		BillingCycle:      prep.BillingCycle,
		Amount:            amount,
	}, nil
}

func (s *checkoutService) VerifyPaymentAndRegister(ctx context.Context, registrationID, sessionID string) (VerifyResult, error) {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		return VerifyResult{}, fmt.Errorf("%w: registration id is required", ErrValidation)
	}

	// Joined callers share this run, so it must outlive the first caller's request.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.inflight.Do(registrationID, func() (interface{}, error) {
		return s.verify(shared, registrationID, strings.TrimSpace(sessionID))
	})
	if err != nil {
		metrics.RecordCheckoutVerify(verifyResultLabel(err))
		return VerifyResult{}, err
	}

	res := v.(VerifyResult)
	if res.AlreadyProvisioned {
		metrics.RecordCheckoutVerify("already_provisioned")
	} else {
		metrics.RecordCheckoutVerify("provisioned")
	}
	return res, nil
}

func (s *checkoutService) verify(ctx context.Context, registrationID, sessionID string) (VerifyResult, error) {
	pending, err := s.store.Get(ctx, registrationID)
	if err != nil {
		if !errors.Is(err, registration.ErrNotFound) {
			return VerifyResult{}, fmt.Errorf("failed to load pending registration: %w", err)
		}
		pending = nil
	}

	if sessionID == "" || isTemplateToken(sessionID) {
		if pending == nil {
			return VerifyResult{}, fmt.Errorf("%w: registration not found or expired, please subscribe again", ErrRegistrationExpired)
		}
		sessionID = pending.SessionID
	}

	status, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: could not verify payment: %v", ErrExternalService, err)
	}
	if !status.IsPaid {
		return VerifyResult{}, fmt.Errorf("%w: payment has not been completed", ErrPaymentNotCompleted)
	}
	if owner := status.Metadata[payment.MetaRegistrationID]; owner != "" && owner != registrationID {
		return VerifyResult{}, fmt.Errorf("%w: checkout session does not belong to this registration", ErrValidation)
	}

	paymentID := status.PaymentID
	if paymentID == "" {
		paymentID = status.ID
	}

	companyEmail, adminEmail := status.Metadata[payment.MetaCompanyEmail], status.Metadata[payment.MetaAdminEmail]
	if pending != nil {
		companyEmail, adminEmail = pending.CompanyEmail, pending.AdminEmail
	}

	if companyEmail != "" && adminEmail != "" {
		existing, err := s.subs.ExistingRegistration(ctx, companyEmail, adminEmail)
		if err != nil {
			return VerifyResult{}, err
		}
		if existing != nil {
			s.clearPending(ctx, registrationID)
			return toVerifyResult(*existing, paymentID, true), nil
		}
	}
	if pending == nil {
		return VerifyResult{}, fmt.Errorf("%w: registration not found or expired, please subscribe again", ErrRegistrationExpired)
	}

	prep, err := preparedFromPending(*pending)
	if err != nil {
		return VerifyResult{}, err
	}
	result, err := s.subs.Provision(ctx, prep, ProvisionOptions{
		EntryPoint:       EntryPointCheckout,
		PaymentReference: paymentID,
		AmountPaid:       pending.Amount,
	})
	if err != nil {
		if !isDuplicate(err) {
			return VerifyResult{}, err
		}
		// Another node won the race; succeed if it produced the same tenant.
		existing, lookupErr := s.subs.ExistingRegistration(ctx, companyEmail, adminEmail)
		if lookupErr != nil || existing == nil {
			return VerifyResult{}, err
		}
		s.clearPending(ctx, registrationID)
		return toVerifyResult(*existing, paymentID, true), nil
	}

	s.clearPending(ctx, registrationID)
	return toVerifyResult(result, paymentID, false), nil
}

func (s *checkoutService) clearPending(ctx context.Context, registrationID string) {
	if err := s.store.Remove(ctx, registrationID); err != nil {
		s.log.Warn("failed to clear pending registration",
			zap.String("registration_id", registrationID), zap.Error(err))
	}
}

func preparedFromPending(p registration.PendingRegistration) (PreparedRegistration, error) {
	plan, ok := LookupPlan(p.PlanName)
	if !ok {
		return PreparedRegistration{}, fmt.Errorf("%w: unknown plan %q in pending registration", ErrValidation, p.PlanName)
	}
	return PreparedRegistration{
		CompanyName:    p.CompanyName,
		CompanyEmail:   p.CompanyEmail,
		CompanyPhone:   p.CompanyPhone,
		CompanyAddress: p.CompanyAddress,
		Industry:       p.Industry,
		AdminFirstName: p.AdminFirstName,
		AdminLastName:  p.AdminLastName,
		AdminEmail:     p.AdminEmail,
		AdminPhone:     p.AdminPhone,
		PasswordHash:   p.PasswordHash,
		Plan:           plan,
		BillingCycle:   p.BillingCycle,
		Modules:        p.Modules,
	}, nil
}

func toVerifyResult(r ProvisionResult, paymentID string, already bool) VerifyResult {
	return VerifyResult{
		PlanName:           r.PlanName,
		CompanyID:          r.CompanyID,
		CompanyName:        r.CompanyName,
		AdminEmail:         r.AdminEmail,
		PaymentID:          paymentID,
		AlreadyProvisioned: already,
	}
}

// isTemplateToken reports a session id the gateway never substituted.
func isTemplateToken(sessionID string) bool {
	return strings.ContainsAny(sessionID, "{}") || strings.EqualFold(sessionID, "CHECKOUT_SESSION_ID")
}

func verifyResultLabel(err error) string {
	switch {
	case errors.Is(err, ErrPaymentNotCompleted):
		return "unpaid"
	case errors.Is(err, ErrRegistrationExpired):
		return "expired"
	case errors.Is(err, ErrDuplicateRegistration):
		return "duplicate"
	case errors.Is(err, ErrExternalService):
		return "gateway_error"
	}
	return "failed"
}
