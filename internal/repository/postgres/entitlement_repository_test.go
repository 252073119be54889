package postgres

import (
	"testing"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePayloadRoundTrip(t *testing.T) {
	e := domain.Grant(domain.TierPro, "cus_1", "sub_1").Apply(domain.NewEntitlement("u1", "u1@example.com"), time.Now().UTC())

	payload, err := encodeChange(&e)
	require.NoError(t, err)
	assert.Less(t, len(payload), 8000)

	got, err := decodeChange(payload)
	require.NoError(t, err)
	assert.Equal(t, e.UserID, got.UserID)
	assert.Equal(t, e.MembershipTier, got.MembershipTier)
	assert.Equal(t, e.ProviderSubscriptionID, got.ProviderSubscriptionID)
	assert.True(t, e.UpdatedAt.Equal(got.UpdatedAt))
}

func TestDecodeChangeRejectsGarbage(t *testing.T) {
	_, err := decodeChange("not json")
	assert.Error(t, err)

	_, err = decodeChange(`{"membershipTier":"pro"}`)
	assert.Error(t, err)
}
