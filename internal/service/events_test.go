package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.EntitlementChanged
	err    error
}

func (p *recordingPublisher) PublishEntitlementChanged(_ context.Context, ev domain.EntitlementChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func TestWebhookPublishesAppliedChanges(t *testing.T) {
	svc, _ := newWebhookFixture(t, "u1")
	pub := &recordingPublisher{}
	svc.WithEvents(pub)

	body, sig := signedEvent(t, "evt_grant", "checkout.session.completed", checkoutObject("u1", "basic", "cus_1", "sub_1"))
	_, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	body, sig = signedEvent(t, "evt_cancel", "customer.subscription.deleted", subscriptionObject("sub_1", "cus_1"))
	_, err = svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, domain.ChangeSourceCheckout, pub.events[0].Source)
	assert.Equal(t, "evt_grant", pub.events[0].ProviderEventID)
	assert.Equal(t, []domain.Region{domain.RegionUS}, pub.events[0].Regions)
	assert.Equal(t, domain.ChangeSourceCancellation, pub.events[1].Source)
	assert.Empty(t, pub.events[1].Regions)
	assert.NotEqual(t, pub.events[0].EventID, pub.events[1].EventID)
}

func TestWebhookDoesNotPublishRejectedEvents(t *testing.T) {
	svc, _ := newWebhookFixture(t)
	pub := &recordingPublisher{}
	svc.WithEvents(pub)

	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("ghost", "pro", "cus_1", "sub_1"))
	_, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.Error(t, err)

	assert.Empty(t, pub.events)
}

func TestPublishFailureDoesNotFailWebhook(t *testing.T) {
	svc, repo := newWebhookFixture(t, "u1")
	svc.WithEvents(&recordingPublisher{err: errors.New("broker down")})

	body, sig := signedEvent(t, "evt_1", "checkout.session.completed", checkoutObject("u1", "pro", "cus_1", "sub_1"))
	outcome, err := svc.ProcessWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, outcome)
	assert.Equal(t, domain.TierPro, mustGet(t, repo, "u1").MembershipTier)
}

func TestSetTierPublishesOverride(t *testing.T) {
	_, repo := newWebhookFixture(t, "u1")
	pub := &recordingPublisher{}

	svc := NewEntitlementService(repo, testMetrics(), logger.Nop()).WithEvents(pub)
	_, err := svc.SetTier(context.Background(), "u1", "pro")
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.ChangeSourceOverride, pub.events[0].Source)
	assert.Equal(t, domain.TierPro, pub.events[0].Entitlement.MembershipTier)
}
