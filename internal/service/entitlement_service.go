package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/metrics"
	"github.com/Dhoini/Entitlement-microservice/internal/repository"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
)

// EntitlementService чтение, регистрация и наблюдение за записями о подписках
type EntitlementService struct {
	repo    repository.EntitlementRepository
	metrics metrics.EntitlementMetrics
	events  EventPublisher
	log     *logger.Logger
}

// NewEntitlementService создает сервис
func NewEntitlementService(repo repository.EntitlementRepository, m metrics.EntitlementMetrics, log *logger.Logger) *EntitlementService {
	return &EntitlementService{repo: repo, metrics: m, events: noopPublisher{}, log: log}
}

// WithEvents включает публикацию административных изменений
func (s *EntitlementService) WithEvents(p EventPublisher) *EntitlementService {
	s.events = p
	return s
}

// Get возвращает запись пользователя или domain.ErrNotFound
func (s *EntitlementService) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	return s.repo.Get(ctx, userID)
}

// Register создает запись при регистрации пользователя. Повторный вызов
// возвращает существующую запись без изменений.
func (s *EntitlementService) Register(ctx context.Context, userID, email string) (*domain.Entitlement, bool, error) {
	var verrs domain.ValidationErrors
	if strings.TrimSpace(userID) == "" {
		verrs.Add("userId", "required")
	}
	if verrs.HasErrors() {
		return nil, false, verrs
	}

	rec, created, err := s.repo.Create(ctx, domain.NewEntitlement(userID, strings.TrimSpace(email)))
	if err != nil {
		s.log.Errorw("Failed to register entitlement", "userID", userID, "error", err)
		return nil, false, domain.NewEntitlementError(domain.CodeStoreWrite, "failed to create entitlement", userID,
			http.StatusInternalServerError, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err))
	}
	if created {
		s.log.Infow("Entitlement registered", "userID", userID)
	}
	return rec, created, nil
}

// SetTier административно выставляет уровень, минуя провайдера. Ссылки на
// провайдера не меняются.
func (s *EntitlementService) SetTier(ctx context.Context, userID, plan string) (*domain.Entitlement, error) {
	tier, err := domain.ParseTier(plan)
	if err != nil {
		return nil, domain.NewEntitlementError(domain.CodeInvalidPlan,
			fmt.Sprintf("tier %q is not one of none, basic, pro, family", plan), userID, http.StatusBadRequest, domain.ErrInvalidPlan)
	}

	rec, err := s.repo.Update(ctx, userID, domain.Override(tier))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		s.log.Errorw("Failed to override entitlement tier", "userID", userID, "tier", tier, "error", err)
		return nil, domain.NewEntitlementError(domain.CodeStoreWrite, "failed to update entitlement", userID,
			http.StatusInternalServerError, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err))
	}

	s.metrics.IncTierChange(string(rec.MembershipTier))
	publishChange(ctx, s.events, s.log, domain.ChangeSourceOverride, "", rec)
	s.log.Infow("Entitlement tier overridden", "userID", userID, "tier", rec.MembershipTier)
	return rec, nil
}

// Servers возвращает список регионов и серверов, доступных пользователю.
// Пользователь без записи видит все регионы закрытыми.
func (s *EntitlementService) Servers(ctx context.Context, userID string) (domain.Tier, []domain.RegionView, error) {
	tier := domain.TierNone
	rec, err := s.repo.Get(ctx, userID)
	switch {
	case err == nil:
		if rec.IsActive {
			tier = rec.MembershipTier
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return "", nil, err
	}
	return tier, domain.ServerView(tier), nil
}

// Watch отдает текущее значение записи, затем каждое изменение. nil в канале
// означает, что записи нет или значение сейчас неизвестно. Канал закрывается
// после отмены ctx.
func (s *EntitlementService) Watch(ctx context.Context, userID string) <-chan *domain.Entitlement {
	out := make(chan *domain.Entitlement)

	// подписка до чтения, чтобы не потерять изменение между ними
	changes, unsubscribe := s.repo.Subscribe(userID)
	s.metrics.WatcherOpened()

	go func() {
		defer close(out)
		defer s.metrics.WatcherClosed()
		defer unsubscribe()

		var last *domain.Entitlement
		emit := func(e *domain.Entitlement) bool {
			select {
			case out <- e:
				last = e
				return true
			case <-ctx.Done():
				return false
			}
		}

		initial, err := s.repo.Get(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Watch: initial read failed", "userID", userID, "error", err)
		}
		if !emit(initial) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case c := <-changes:
				if c.Err != nil {
					s.log.Warnw("Watch: change feed interrupted", "userID", userID, "error", c.Err)
					if last == nil {
						continue
					}
					if !emit(nil) {
						return
					}
					continue
				}
				if isStale(last, c.Entitlement) {
					continue
				}
				if !emit(c.Entitlement) {
					return
				}
			}
		}
	}()

	return out
}

// isStale reports whether next is older than, or identical to, the last
// emitted value.
func isStale(last, next *domain.Entitlement) bool {
	if last == nil || next == nil {
		return false
	}
	if next.UpdatedAt.Before(last.UpdatedAt) {
		return true
	}
	return next.UpdatedAt.Equal(last.UpdatedAt) &&
		next.MembershipTier == last.MembershipTier &&
		next.IsActive == last.IsActive &&
		next.ProviderCustomerID == last.ProviderCustomerID &&
		next.ProviderSubscriptionID == last.ProviderSubscriptionID
}
