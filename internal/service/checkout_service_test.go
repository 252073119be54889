package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/stripe"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"
)

func newCheckoutService(f *fakeStripe, timeout time.Duration) *CheckoutService {
	return NewCheckoutService(f, CheckoutConfig{
		Prices: map[string]string{
			"basic":  "price_basic",
			"pro":    "price_pro",
			"family": "price_1P...REPLACE_ME",
		},
		BaseURL: "https://vpn.example.com",
		Timeout: timeout,
	}, testMetrics(), logger.Nop())
}

func okSession(context.Context, int) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
}

func assertEntitlementError(t *testing.T, err error, code string, status int, sentinel error) {
	t.Helper()
	var ee *domain.EntitlementError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, code, ee.Code)
	assert.Equal(t, status, ee.StatusCode)
	assert.ErrorIs(t, err, sentinel)
}

func TestCreateCheckoutSessionSuccess(t *testing.T) {
	f := &fakeStripe{respond: okSession}
	svc := newCheckoutService(f, time.Second)

	out, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutInput{UserID: "u1", Plan: "pro", Email: "u1@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", out.URL)
	assert.Equal(t, "cs_1", out.SessionID)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "price_pro", calls[0].PriceID)
	assert.Equal(t, "u1", calls[0].UserID)
	assert.Equal(t, "pro", calls[0].Plan)
	assert.Equal(t, "https://vpn.example.com/dashboard?payment=success&session_id={CHECKOUT_SESSION_ID}", calls[0].SuccessURL)
	assert.Equal(t, "https://vpn.example.com/?payment=cancelled", calls[0].CancelURL)
	assert.NotEmpty(t, calls[0].IdempotencyKey)
}

func TestCreateCheckoutSessionRejectsBeforeProvider(t *testing.T) {
	tests := []struct {
		name     string
		in       CreateCheckoutInput
		code     string
		status   int
		sentinel error
	}{
		{"unknown plan", CreateCheckoutInput{UserID: "u1", Plan: "premium"}, domain.CodeInvalidPlan, http.StatusBadRequest, domain.ErrInvalidPlan},
		{"none plan", CreateCheckoutInput{UserID: "u1", Plan: "none"}, domain.CodeInvalidPlan, http.StatusBadRequest, domain.ErrInvalidPlan},
		{"empty plan", CreateCheckoutInput{UserID: "u1"}, domain.CodeInvalidPlan, http.StatusBadRequest, domain.ErrInvalidPlan},
		{"placeholder price", CreateCheckoutInput{UserID: "u1", Plan: "family"}, domain.CodeConfiguration, http.StatusInternalServerError, domain.ErrConfiguration},
		{"no user", CreateCheckoutInput{Plan: "pro"}, domain.CodeInvalidInput, http.StatusBadRequest, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeStripe{respond: okSession}
			svc := newCheckoutService(f, time.Second)

			_, err := svc.CreateCheckoutSession(context.Background(), tt.in)
			assertEntitlementError(t, err, tt.code, tt.status, tt.sentinel)
			assert.Empty(t, f.calls())
		})
	}
}

func TestCreateCheckoutSessionProviderRejects(t *testing.T) {
	f := &fakeStripe{respond: func(context.Context, int) (*stripe.CheckoutSession, error) {
		return nil, &stripego.Error{Type: stripego.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusBadRequest, Msg: "No such price"}
	}}
	svc := newCheckoutService(f, time.Second)

	_, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutInput{UserID: "u1", Plan: "basic"})
	assertEntitlementError(t, err, domain.CodeSessionCreation, http.StatusBadGateway, domain.ErrSessionCreation)
	assert.Len(t, f.calls(), 1)
}

func TestCreateCheckoutSessionRetriesTransientErrors(t *testing.T) {
	f := &fakeStripe{respond: func(ctx context.Context, call int) (*stripe.CheckoutSession, error) {
		if call == 1 {
			return nil, &stripego.Error{Type: stripego.ErrorTypeAPI, HTTPStatusCode: http.StatusServiceUnavailable}
		}
		return okSession(ctx, call)
	}}
	svc := newCheckoutService(f, 5*time.Second)

	out, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutInput{UserID: "u1", Plan: "basic"})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", out.SessionID)

	calls := f.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].IdempotencyKey, calls[1].IdempotencyKey)
}

func TestCreateCheckoutSessionTimeout(t *testing.T) {
	f := &fakeStripe{respond: func(ctx context.Context, _ int) (*stripe.CheckoutSession, error) {
		<-ctx.Done()
		return nil, errors.New("request canceled")
	}}
	svc := newCheckoutService(f, 50*time.Millisecond)

	_, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutInput{UserID: "u1", Plan: "pro"})
	assertEntitlementError(t, err, domain.CodeProviderTimeout, http.StatusGatewayTimeout, domain.ErrProviderTimeout)
}

func TestCreateCheckoutSessionIncompleteSession(t *testing.T) {
	tests := []struct {
		name    string
		session stripe.CheckoutSession
	}{
		{"empty url", stripe.CheckoutSession{ID: "cs_1"}},
		{"empty id", stripe.CheckoutSession{URL: "https://checkout.stripe.com/c/pay/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := tt.session
			f := &fakeStripe{respond: func(context.Context, int) (*stripe.CheckoutSession, error) {
				return &session, nil
			}}
			svc := newCheckoutService(f, time.Second)

			out, err := svc.CreateCheckoutSession(context.Background(), CreateCheckoutInput{UserID: "u1", Plan: "pro"})
			assert.Nil(t, out)
			assertEntitlementError(t, err, domain.CodeSessionCreation, http.StatusBadGateway, domain.ErrSessionCreation)
		})
	}
}

func TestIsRetryableStripeError(t *testing.T) {
	assert.True(t, isRetryableStripeError(&stripego.Error{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.True(t, isRetryableStripeError(&stripego.Error{Type: stripego.ErrorTypeAPI, HTTPStatusCode: http.StatusBadGateway}))
	assert.False(t, isRetryableStripeError(&stripego.Error{Type: stripego.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired}))
	assert.False(t, isRetryableStripeError(errors.New("dial tcp: refused")))
}
