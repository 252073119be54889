package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/metrics"
	"github.com/Dhoini/Entitlement-microservice/internal/repository"
	"github.com/Dhoini/Entitlement-microservice/internal/stripe"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testWebhookSecret = "whsec_service_test"

func testMetrics() metrics.EntitlementMetrics {
	return metrics.NewEntitlementMetrics(prometheus.NewRegistry(), logger.Nop())
}

// fakeStripe записывает запросы и отвечает через respond
type fakeStripe struct {
	mu       sync.Mutex
	requests []stripe.CheckoutRequest
	respond  func(ctx context.Context, call int) (*stripe.CheckoutSession, error)
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()
	return f.respond(ctx, call)
}

func (f *fakeStripe) calls() []stripe.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stripe.CheckoutRequest(nil), f.requests...)
}

// failingRepo отказывает в записи, чтение делегирует
type failingRepo struct {
	repository.EntitlementRepository
	err error
}

func (r failingRepo) Update(context.Context, string, domain.Mutation) (*domain.Entitlement, error) {
	return nil, r.err
}

func signedEvent(t *testing.T, id, typ string, object any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"created":     time.Now().Unix(),
		"api_version": "2024-04-10",
		"data":        map[string]json.RawMessage{"object": raw},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func checkoutObject(userID, plan, customerID, subscriptionID string) map[string]any {
	metadata := map[string]string{}
	if userID != "" {
		metadata["userId"] = userID
	}
	if plan != "" {
		metadata["plan"] = plan
	}
	return map[string]any{
		"id":           "cs_test",
		"object":       "checkout.session",
		"customer":     customerID,
		"subscription": subscriptionID,
		"metadata":     metadata,
	}
}

func subscriptionObject(subscriptionID, customerID string) map[string]any {
	return map[string]any{
		"id":       subscriptionID,
		"object":   "subscription",
		"customer": customerID,
		"status":   "canceled",
	}
}
