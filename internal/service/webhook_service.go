package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/metrics"
	"github.com/Dhoini/Entitlement-microservice/internal/repository"
	"github.com/Dhoini/Entitlement-microservice/internal/stripe"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
)

// WebhookService сверяет записи о подписках с событиями провайдера
type WebhookService struct {
	verifier *stripe.WebhookVerifier
	repo     repository.EntitlementRepository
	metrics  metrics.EntitlementMetrics
	events   EventPublisher
	log      *logger.Logger
}

// NewWebhookService создает сервис вебхуков
func NewWebhookService(verifier *stripe.WebhookVerifier, repo repository.EntitlementRepository, m metrics.EntitlementMetrics, log *logger.Logger) *WebhookService {
	return &WebhookService{verifier: verifier, repo: repo, metrics: m, events: noopPublisher{}, log: log}
}

// WithEvents включает публикацию примененных изменений
func (s *WebhookService) WithEvents(p EventPublisher) *WebhookService {
	s.events = p
	return s
}

// ProcessWebhook проверяет подпись и применяет событие. Ошибка означает,
// что провайдер должен получить не-2xx ответ.
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (domain.WebhookOutcome, error) {
	start := time.Now()

	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.log.Warnw("Rejected webhook with invalid signature", "error", err)
		s.metrics.ObserveWebhook("unknown", string(domain.WebhookOutcomeRejected), time.Since(start))
		return domain.WebhookOutcomeRejected, domain.NewEntitlementError(domain.CodeSignatureInvalid,
			"webhook signature verification failed", "", http.StatusBadRequest, err)
	}

	outcome, err := s.Dispatch(ctx, event)
	s.metrics.ObserveWebhook(string(event.Type), string(outcome), time.Since(start))
	return outcome, err
}

// Dispatch применяет проверенное событие к хранилищу
func (s *WebhookService) Dispatch(ctx context.Context, event domain.WebhookEvent) (domain.WebhookOutcome, error) {
	log := s.log.With("eventID", event.ID, "type", event.Type)

	switch event.Type {
	case domain.WebhookEventCheckoutCompleted:
		completed, err := stripe.DecodeCheckoutCompleted(event)
		if err != nil {
			log.Warnw("Checkout event rejected", "error", err)
			code, status := domain.StatusOf(err)
			return domain.WebhookOutcomeRejected, domain.NewEntitlementError(code, "checkout session lacks userId or plan metadata", "", status, err)
		}
		return s.applyCheckout(ctx, log, completed)

	case domain.WebhookEventSubscriptionDeleted:
		deleted, err := stripe.DecodeSubscriptionDeleted(event)
		if err != nil {
			log.Warnw("Subscription event rejected", "error", err)
			return domain.WebhookOutcomeRejected, domain.NewEntitlementError(domain.CodeInvalidInput, "malformed subscription object", "", http.StatusBadRequest, err)
		}
		return s.applySubscriptionDeleted(ctx, log, deleted)

	default:
		log.Infow("Webhook event ignored (unhandled type)")
		return domain.WebhookOutcomeIgnored, nil
	}
}

func (s *WebhookService) applyCheckout(ctx context.Context, log *logger.Logger, c domain.CheckoutCompleted) (domain.WebhookOutcome, error) {
	tier, err := domain.ParseTier(c.Plan)
	if err != nil || !tier.IsPaid() {
		log.Warnw("Checkout event carries unknown plan", "userID", c.UserID, "plan", c.Plan)
		return domain.WebhookOutcomeRejected, domain.NewEntitlementError(domain.CodeInvalidPlan,
			fmt.Sprintf("plan %q is not one of basic, pro, family", c.Plan), c.UserID, http.StatusBadRequest, domain.ErrInvalidPlan)
	}

	grant := domain.Grant(tier, c.CustomerID, c.SubscriptionID)

	// повторная доставка того же события ничего не меняет: не трогаем
	// updatedAt и не рассылаем изменение повторно
	if current, err := s.repo.Get(ctx, c.UserID); err == nil && !grant.Changes(*current) {
		log.Infow("Entitlement already granted", "userID", c.UserID, "tier", tier)
		return domain.WebhookOutcomeUnchanged, nil
	}

	rec, err := s.repo.Update(ctx, c.UserID, grant)
	if err != nil {
		// запись без регистрации тоже ошибка записи: провайдер повторит доставку
		log.Errorw("Failed to grant entitlement", "userID", c.UserID, "plan", tier, "error", err)
		return domain.WebhookOutcomeFailed, domain.NewEntitlementError(domain.CodeStoreWrite,
			"failed to record subscription", c.UserID, http.StatusInternalServerError, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err))
	}

	s.metrics.IncTierChange(string(rec.MembershipTier))
	publishChange(ctx, s.events, log, domain.ChangeSourceCheckout, c.EventID, rec)
	log.Infow("Entitlement granted", "userID", rec.UserID, "tier", rec.MembershipTier,
		"customerID", rec.ProviderCustomerID, "subscriptionID", rec.ProviderSubscriptionID)
	return domain.WebhookOutcomeApplied, nil
}

func (s *WebhookService) applySubscriptionDeleted(ctx context.Context, log *logger.Logger, d domain.SubscriptionDeleted) (domain.WebhookOutcome, error) {
	rec, err := s.repo.FindByCustomerID(ctx, d.CustomerID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warnw("No entitlement for canceled subscription customer", "customerID", d.CustomerID, "subscriptionID", d.SubscriptionID)
		return domain.WebhookOutcomeUnmatched, nil
	}
	if err != nil {
		log.Errorw("Failed to look up entitlement by customer", "customerID", d.CustomerID, "error", err)
		return domain.WebhookOutcomeFailed, domain.NewEntitlementError(domain.CodeStoreWrite,
			"failed to look up subscription owner", "", http.StatusInternalServerError, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err))
	}

	userID := rec.UserID
	rec, err = s.repo.Update(ctx, userID, domain.Revoke())
	if err != nil {
		log.Errorw("Failed to revoke entitlement", "userID", userID, "error", err)
		return domain.WebhookOutcomeFailed, domain.NewEntitlementError(domain.CodeStoreWrite,
			"failed to record cancellation", userID, http.StatusInternalServerError, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err))
	}

	s.metrics.IncTierChange(string(rec.MembershipTier))
	publishChange(ctx, s.events, log, domain.ChangeSourceCancellation, d.EventID, rec)
	log.Infow("Entitlement revoked", "userID", rec.UserID, "customerID", d.CustomerID, "subscriptionID", d.SubscriptionID)
	return domain.WebhookOutcomeApplied, nil
}
