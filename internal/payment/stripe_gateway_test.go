package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

func newStubGateway(t *testing.T, h http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGatewayWithBackends("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(249900), MinorUnits(decimal.NewFromInt(2499)))
	assert.Equal(t, int64(4999000), MinorUnits(decimal.NewFromInt(49990)))
	assert.Equal(t, int64(1050), MinorUnits(decimal.RequireFromString("10.499")))
}

func TestCreateCheckoutSession(t *testing.T) {
	var form map[string]string
	gw := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"mode":        r.PostForm.Get("mode"),
			"unit_amount": r.PostForm.Get("line_items[0][price_data][unit_amount]"),
			"currency":    r.PostForm.Get("line_items[0][price_data][currency]"),
			"reg":         r.PostForm.Get("metadata[registration_id]"),
			"email":       r.PostForm.Get("metadata[company_email]"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.example/cs_test_1"}`))
	})

	s, err := gw.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		RegistrationID: "reg-1",
		PlanName:       "Basic",
		BillingCycle:   "MONTHLY",
		Amount:         decimal.NewFromInt(2499),
		Currency:       "php",
		SuccessURL:     "https://app.example/success",
		CancelURL:      "https://app.example/cancel",
		Metadata:       map[string]string{MetaCompanyEmail: "acme@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "https://checkout.example/cs_test_1", s.URL)

	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "249900", form["unit_amount"])
	assert.Equal(t, "php", form["currency"])
	assert.Equal(t, "reg-1", form["reg"])
	assert.Equal(t, "acme@example.com", form["email"])
}

func TestCreateCheckoutSessionRejectsZeroAmount(t *testing.T) {
	gw := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})
	_, err := gw.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestGetCheckoutSession(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantPaid  bool
		wantPayID string
	}{
		{
			name:      "paid",
			body:      `{"id":"cs_1","object":"checkout.session","status":"complete","payment_status":"paid","payment_intent":"pi_123","metadata":{"registration_id":"reg-1"}}`,
			wantPaid:  true,
			wantPayID: "pi_123",
		},
		{
			name: "unpaid",
			body: `{"id":"cs_1","object":"checkout.session","status":"open","payment_status":"unpaid","metadata":{"registration_id":"reg-1"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			st, err := gw.GetCheckoutSession(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaid, st.IsPaid)
			assert.Equal(t, tt.wantPayID, st.PaymentID)
			assert.Equal(t, "reg-1", st.Metadata[MetaRegistrationID])
		})
	}
}

func TestGetCheckoutSessionMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"missing session", http.StatusNotFound, ErrGatewayRejected},
		{"provider outage", http.StatusServiceUnavailable, ErrGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newStubGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"boom"}}`))
			})

			_, err := gw.GetCheckoutSession(context.Background(), "cs_missing")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapStripeErrorNonStripe(t *testing.T) {
	gw := &StripeGateway{}
	err := gw.mapStripeError(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}
