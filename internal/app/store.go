package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/Entitlement-microservice/config"
	"github.com/Dhoini/Entitlement-microservice/internal/api/rest/handlers"
	"github.com/Dhoini/Entitlement-microservice/internal/repository"
	"github.com/Dhoini/Entitlement-microservice/internal/repository/postgres"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
)

const storeConnectTimeout = 30 * time.Second

// Store хранилище записей вместе с его фоновой работой и проверками здоровья
type Store struct {
	Repo   repository.EntitlementRepository
	Checks map[string]handlers.Pinger

	listen  func(ctx context.Context) error
	closers []func()
}

// OpenStore подключает хранилище, выбранное в конфигурации, и при заданном
// REDIS_ADDR оборачивает его кешем. Недоступный Redis не мешает старту.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Store, error) {
	s := &Store{Checks: map[string]handlers.Pinger{}}

	switch cfg.Store.Driver {
	case "memory":
		log.Warnw("Using in-memory entitlement store, records are lost on restart")
		s.Repo = repository.NewInMemoryEntitlementRepository(log)
	case "postgres":
		pool, err := postgres.NewConnection(ctx, cfg.Store.DSN, storeConnectTimeout, log)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.Migrate(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		log.Infow("Database connection established")

		repo := postgres.NewEntitlementRepository(pool, log)
		s.Repo = repo
		s.listen = repo.Listen
		s.Checks["store"] = handlers.PingFunc(pool.Ping)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Redis.Addr == "" {
		log.Infow("Using non-cached entitlement repository")
		return s, nil
	}

	cache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, log)
	if err != nil {
		// Не фатально, но предупреждаем
		log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		return s, nil
	}
	s.closers = append(s.closers, func() {
		if err := cache.Close(); err != nil {
			log.Errorw("Error closing Redis connection", "error", err)
		}
	})
	s.Repo = repository.NewCachedEntitlementRepository(s.Repo, cache, log)
	s.Checks["cache"] = cache
	log.Infow("Using cached entitlement repository")
	return s, nil
}

// Listen раздает изменения подписчикам до отмены ctx. Для хранилища в
// памяти изменения публикуются сразу при записи, и Listen просто ждет.
func (s *Store) Listen(ctx context.Context) error {
	if s.listen == nil {
		<-ctx.Done()
		return nil
	}
	return s.listen(ctx)
}

// Close освобождает соединения в обратном порядке
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
