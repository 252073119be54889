package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/repository"
	"github.com/Dhoini/Entitlement-microservice/internal/stripe"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookFixture(t *testing.T, users ...string) (*WebhookService, *repository.InMemoryEntitlementRepository) {
	t.Helper()
	repo := repository.NewInMemoryEntitlementRepository(logger.Nop())
	for _, u := range users {
		_, _, err := repo.Create(context.Background(), domain.NewEntitlement(u, u+"@example.com"))
		require.NoError(t, err)
	}
	svc := NewWebhookService(stripe.NewWebhookVerifier(testWebhookSecret), repo, testMetrics(), logger.Nop())
	return svc, repo
}

func mustGet(t *testing.T, repo repository.EntitlementRepository, userID string) *domain.Entitlement {
	t.Helper()
	rec, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	return rec
}

func TestCheckoutCompletedGrantsTier(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "pro", "cus_1", "sub_1"))

	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, outcome)

	rec := mustGet(t, repo, "u1")
	assert.Equal(t, domain.TierPro, rec.MembershipTier)
	assert.True(t, rec.IsActive)
	assert.Equal(t, "cus_1", rec.ProviderCustomerID)
	assert.Equal(t, "sub_1", rec.ProviderSubscriptionID)
	assert.Equal(t, []domain.Region{domain.RegionUS, domain.RegionUK, domain.RegionEurope, domain.RegionAsia},
		domain.AccessibleRegions(rec.MembershipTier))
}

func TestCheckoutCompletedRedeliveryIsIdempotent(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "basic", "cus_1", "sub_1"))

	_, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	first := mustGet(t, repo, "u1")

	_, err = svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	second := mustGet(t, repo, "u1")

	assert.Equal(t, first.MembershipTier, second.MembershipTier)
	assert.Equal(t, first.IsActive, second.IsActive)
	assert.Equal(t, first.ProviderCustomerID, second.ProviderCustomerID)
	assert.Equal(t, first.ProviderSubscriptionID, second.ProviderSubscriptionID)
}

func TestCheckoutCompletedRedeliveryHasNoSideEffects(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	pub := &recordingPublisher{}
	svc.WithEvents(pub)
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "pro", "cus_1", "sub_1"))

	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, outcome)
	first := mustGet(t, repo, "u1")

	changes, unsubscribe := repo.Subscribe("u1")
	defer unsubscribe()

	outcome, err = svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeUnchanged, outcome)

	second := mustGet(t, repo, "u1")
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Len(t, pub.events, 1)
	select {
	case c := <-changes:
		t.Fatalf("unexpected change pushed to watchers: %+v", c)
	default:
	}
}

func TestCheckoutCompletedNewSubscriptionIsApplied(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "pro", "cus_1", "sub_1"))
	_, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	body, sig = signedEvent(t, "evt_2", "checkout.session.completed", checkoutObject("u1", "pro", "cus_1", "sub_2"))
	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, outcome)
	assert.Equal(t, "sub_2", mustGet(t, repo, "u1").ProviderSubscriptionID)
}

func TestCheckoutCompletedMissingMetadata(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "", "cus_1", "sub_1"))

	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	assertEntitlementError(t, err, domain.CodeMissingMetadata, http.StatusBadRequest, domain.ErrMissingMetadata)
	assert.Equal(t, domain.WebhookOutcomeRejected, outcome)
	assert.Equal(t, domain.TierNone, mustGet(t, repo, "u1").MembershipTier)
}

func TestCheckoutCompletedUnknownPlan(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "platinum", "cus_1", "sub_1"))

	_, err := svc.ProcessWebhook(context.Background(), body, sig)
	assertEntitlementError(t, err, domain.CodeInvalidPlan, http.StatusBadRequest, domain.ErrInvalidPlan)
	assert.False(t, mustGet(t, repo, "u1").IsActive)
}

func TestWebhookInvalidSignatureChangesNothing(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, _ := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "pro", "cus_1", "sub_1"))

	outcome, err := svc.ProcessWebhook(context.Background(), body, "t=1,v1=deadbeef")
	assertEntitlementError(t, err, domain.CodeSignatureInvalid, http.StatusBadRequest, domain.ErrSignatureInvalid)
	assert.Equal(t, domain.WebhookOutcomeRejected, outcome)
	assert.Equal(t, domain.TierNone, mustGet(t, repo, "u1").MembershipTier)
}

func TestCheckoutCompletedForUnknownUserIsStoreError(t *testing.T) {
	svc, _ := newWebhookFixture(t)
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("ghost", "pro", "cus_1", "sub_1"))

	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	assertEntitlementError(t, err, domain.CodeStoreWrite, http.StatusInternalServerError, domain.ErrStoreWrite)
	assert.Equal(t, domain.WebhookOutcomeFailed, outcome)
}

func TestCheckoutCompletedStoreFailure(t *testing.T) {
	repo := repository.NewInMemoryEntitlementRepository(logger.Nop())
	_, _, err := repo.Create(context.Background(), domain.NewEntitlement("u1", ""))
	require.NoError(t, err)
	svc := NewWebhookService(stripe.NewWebhookVerifier(testWebhookSecret),
		failingRepo{EntitlementRepository: repo, err: errors.New("connection reset")}, testMetrics(), logger.Nop())
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "pro", "cus_1", "sub_1"))

	_, err = svc.ProcessWebhook(context.Background(), body, sig)
	assertEntitlementError(t, err, domain.CodeStoreWrite, http.StatusInternalServerError, domain.ErrStoreWrite)
}

func TestSubscriptionDeletedRevokesButKeepsRefs(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "family", "cus_1", "sub_1"))
	_, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	body, sig = signedEvent(t, "evt_2", "customer.subscription.deleted", subscriptionObject("sub_1", "cus_1"))
	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, outcome)

	rec := mustGet(t, repo, "u1")
	assert.Equal(t, domain.TierNone, rec.MembershipTier)
	assert.False(t, rec.IsActive)
	assert.Equal(t, "cus_1", rec.ProviderCustomerID)
	assert.Equal(t, "sub_1", rec.ProviderSubscriptionID)
	assert.Empty(t, domain.AccessibleRegions(rec.MembershipTier))
}

func TestSubscriptionDeletedUnknownCustomerAcknowledged(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	body, sig := signedEvent(t, "evt_2", "customer.subscription.deleted", subscriptionObject("sub_9", "cus_unknown"))

	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeUnmatched, outcome)
	assert.Equal(t, domain.TierNone, mustGet(t, repo, "u1").MembershipTier)
}

func TestUnhandledEventIgnored(t *testing.T) {
	svc, _ := newWebhookFixture(t)
	body, sig := signedEvent(t, "evt_3", "invoice.paid", map[string]any{"id": "in_1"})

	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeIgnored, outcome)
}
