package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	entitlementKeyPrefix = "entitlement:"

	defaultCacheTTL = 5 * time.Minute
)

// RedisCacheRepository кеширует записи о подписках в Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository подключается к Redis и проверяет соединение
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, ttl time.Duration, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return NewRedisCacheFromClient(client, ttl, log), nil
}

// NewRedisCacheFromClient оборачивает готовый клиент
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func entitlementKey(userID string) string {
	return entitlementKeyPrefix + userID
}

// CacheEntitlement кеширует запись
func (r *RedisCacheRepository) CacheEntitlement(ctx context.Context, e *domain.Entitlement) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entitlement: %w", err)
	}

	if err := r.client.Set(ctx, entitlementKey(e.UserID), data, r.ttl).Err(); err != nil {
		r.log.Errorw("Failed to cache entitlement in Redis", "error", err, "userID", e.UserID)
		return fmt.Errorf("failed to cache entitlement: %w", err)
	}

	r.log.Debugw("Entitlement cached", "userID", e.UserID)
	return nil
}

// GetCachedEntitlement возвращает запись из кеша или nil, если ее там нет
func (r *RedisCacheRepository) GetCachedEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	data, err := r.client.Get(ctx, entitlementKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.log.Errorw("Error getting entitlement from Redis", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get entitlement from cache: %w", err)
	}

	var e domain.Entitlement
	if err := json.Unmarshal(data, &e); err != nil {
		r.log.Errorw("Failed to unmarshal cached entitlement", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to unmarshal cached entitlement: %w", err)
	}
	return &e, nil
}

// DeleteCachedEntitlement удаляет запись из кеша
func (r *RedisCacheRepository) DeleteCachedEntitlement(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, entitlementKey(userID)).Err(); err != nil {
		r.log.Errorw("Failed to delete entitlement from cache", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete entitlement from cache: %w", err)
	}
	return nil
}
