package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"compugear/internal/service"
	"compugear/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSubscriptions struct {
	service.SubscriptionService
	subscribeErr error
	got          service.SubscribeRequest
}

func (s *stubSubscriptions) Subscribe(_ context.Context, req service.SubscribeRequest) (service.ProvisionResult, error) {
	s.got = req
	if s.subscribeErr != nil {
		return service.ProvisionResult{}, s.subscribeErr
	}
	return service.ProvisionResult{CompanyName: req.CompanyName, PlanName: service.PlanBasic}, nil
}

func (s *stubSubscriptions) Plans() []service.Plan {
	return []service.Plan{{Name: service.PlanBasic}, {Name: service.PlanPro}}
}

type stubCheckout struct {
	service.CheckoutService
	result service.VerifyResult
	err    error
}

func (s *stubCheckout) VerifyPaymentAndRegister(_ context.Context, _, _ string) (service.VerifyResult, error) {
	return s.result, s.err
}

func serve(h *WebsiteHandler, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var res response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w, res
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: product", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: already processed", service.ErrInvalidState), http.StatusConflict},
		{service.ErrValidation, http.StatusBadRequest},
		{service.ErrDuplicateRegistration, http.StatusConflict},
		{service.ErrRegistrationExpired, http.StatusGone},
		{service.ErrPaymentNotCompleted, http.StatusPaymentRequired},
		{service.ErrExternalService, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestPlans(t *testing.T) {
	w, res := serve(NewWebsiteHandler(&stubSubscriptions{}, &stubCheckout{}), http.MethodGet, "/api/erpwebsite/plans", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Success)
	assert.Len(t, res.Data, 2)
}

func TestSubscribe(t *testing.T) {
	subs := &stubSubscriptions{}
	h := NewWebsiteHandler(subs, &stubCheckout{})

	w, res := serve(h, http.MethodPost, "/api/erpwebsite/subscribe", `{"company_name":"Acme","plan_name":"Basic"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Subscription created", res.Message)
	assert.Equal(t, "Acme", subs.got.CompanyName)

	w, res = serve(h, http.MethodPost, "/api/erpwebsite/subscribe", `{"company_name":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, res.Error, "Invalid request payload")

	subs.subscribeErr = fmt.Errorf("%w: company email already registered", service.ErrDuplicateRegistration)
	w, res = serve(h, http.MethodPost, "/api/erpwebsite/subscribe", `{"company_name":"Acme"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, subs.subscribeErr.Error(), res.Error)

	subs.subscribeErr = errors.New("connection reset by peer")
	w, res = serve(h, http.MethodPost, "/api/erpwebsite/subscribe", `{"company_name":"Acme"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", res.Error)
}

func TestVerifyPayment(t *testing.T) {
	checkout := &stubCheckout{result: service.VerifyResult{CompanyName: "Acme"}}
	h := NewWebsiteHandler(&stubSubscriptions{}, checkout)

	w, _ := serve(h, http.MethodPost, "/api/erpwebsite/verify-payment", `{"session_id":"cs_1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, res := serve(h, http.MethodPost, "/api/erpwebsite/verify-payment", `{"registration_id":"r1","session_id":"cs_1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment verified and account created", res.Message)

	checkout.result.AlreadyProvisioned = true
	_, res = serve(h, http.MethodPost, "/api/erpwebsite/verify-payment", `{"registration_id":"r1","session_id":"cs_1"}`)
	assert.Equal(t, "Account already created for this payment", res.Message)

	checkout.err = service.ErrPaymentNotCompleted
	w, _ = serve(h, http.MethodPost, "/api/erpwebsite/verify-payment", `{"registration_id":"r1","session_id":"cs_1"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	checkout.err = service.ErrRegistrationExpired
	w, _ = serve(h, http.MethodPost, "/api/erpwebsite/verify-payment", `{"registration_id":"r1"}`)
	assert.Equal(t, http.StatusGone, w.Code)
}
