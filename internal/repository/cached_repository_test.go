package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedRepo(t *testing.T) (*CachedEntitlementRepository, *InMemoryEntitlementRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := NewInMemoryEntitlementRepository(logger.Nop())
	cache := NewRedisCacheFromClient(client, time.Minute, logger.Nop())
	return NewCachedEntitlementRepository(inner, cache, logger.Nop()), inner, mr
}

func TestCachedRepositoryWritesThrough(t *testing.T) {
	repo, _, mr := newCachedRepo(t)
	ctx := context.Background()

	_, _, err := repo.Create(ctx, domain.NewEntitlement("u1", ""))
	require.NoError(t, err)
	assert.True(t, mr.Exists("entitlement:u1"))

	_, err = repo.Update(ctx, "u1", domain.Grant(domain.TierBasic, "cus_1", "sub_1"))
	require.NoError(t, err)

	cached, err := repo.cache.GetCachedEntitlement(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, domain.TierBasic, cached.MembershipTier)
	assert.Equal(t, "cus_1", cached.ProviderCustomerID)
}

func TestCachedRepositoryFallsBackWhenCacheDown(t *testing.T) {
	repo, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	_, _, err := inner.Create(ctx, domain.NewEntitlement("u1", ""))
	require.NoError(t, err)

	mr.SetError("LOADING")
	rec, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)

	mr.SetError("")
	_, err = repo.Update(ctx, "u1", domain.Grant(domain.TierPro, "cus_1", "sub_1"))
	require.NoError(t, err)
}

func TestCachedRepositoryTTLExpires(t *testing.T) {
	repo, _, mr := newCachedRepo(t)
	ctx := context.Background()
	_, _, err := repo.Create(ctx, domain.NewEntitlement("u1", ""))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	assert.False(t, mr.Exists("entitlement:u1"))
	rec, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.True(t, mr.Exists("entitlement:u1"))
}

func TestCachedRepositoryMissingRecord(t *testing.T) {
	repo, _, _ := newCachedRepo(t)

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
