package repository

import (
	"context"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
)

// CachedEntitlementRepository реализует EntitlementRepository с кешированием
// чтения в Redis. Ошибки кеша не прерывают операции.
type CachedEntitlementRepository struct {
	repo  EntitlementRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedEntitlementRepository создает репозиторий с кешированием
func NewCachedEntitlementRepository(repo EntitlementRepository, cache *RedisCacheRepository, log *logger.Logger) *CachedEntitlementRepository {
	return &CachedEntitlementRepository{repo: repo, cache: cache, log: log}
}

// Get сначала смотрит в кеш, потом в основное хранилище
func (r *CachedEntitlementRepository) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	cached, err := r.cache.GetCachedEntitlement(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting entitlement from cache", "error", err, "userID", userID)
	}
	if cached != nil {
		return cached, nil
	}

	rec, err := r.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CacheEntitlement(ctx, rec); err != nil {
		r.log.Warnw("Failed to cache entitlement after fetching", "error", err, "userID", userID)
	}
	return rec, nil
}

func (r *CachedEntitlementRepository) Create(ctx context.Context, e domain.Entitlement) (*domain.Entitlement, bool, error) {
	rec, created, err := r.repo.Create(ctx, e)
	if err != nil {
		return nil, false, err
	}
	if err := r.cache.CacheEntitlement(ctx, rec); err != nil {
		r.log.Warnw("Failed to cache entitlement after creation", "error", err, "userID", rec.UserID)
	}
	return rec, created, nil
}

// Update пишет в основное хранилище, затем обновляет кеш. Если обновить кеш
// не удалось, ключ удаляется, чтобы не отдавать устаревшее значение.
func (r *CachedEntitlementRepository) Update(ctx context.Context, userID string, m domain.Mutation) (*domain.Entitlement, error) {
	rec, err := r.repo.Update(ctx, userID, m)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CacheEntitlement(ctx, rec); err != nil {
		r.log.Warnw("Failed to update entitlement in cache", "error", err, "userID", userID)
		if err := r.cache.DeleteCachedEntitlement(ctx, userID); err != nil {
			r.log.Errorw("Stale entitlement may remain in cache", "error", err, "userID", userID)
		}
	}
	return rec, nil
}

// FindByCustomerID не кешируется: вызывается только из вебхуков
func (r *CachedEntitlementRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.Entitlement, error) {
	return r.repo.FindByCustomerID(ctx, customerID)
}

func (r *CachedEntitlementRepository) Subscribe(userID string) (<-chan Change, func()) {
	return r.repo.Subscribe(userID)
}
