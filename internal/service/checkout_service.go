package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dhoini/Entitlement-microservice/config"
	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/metrics"
	"github.com/Dhoini/Entitlement-microservice/internal/stripe"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v78"
)

// CheckoutConfig параметры создания сессий оплаты
type CheckoutConfig struct {
	// Prices план -> Stripe price ID
	Prices  map[string]string
	BaseURL string
	Timeout time.Duration
}

// CreateCheckoutInput входные данные для создания сессии
type CreateCheckoutInput struct {
	UserID string
	Email  string
	Plan   string
}

// CreateCheckoutOutput результат создания сессии
type CreateCheckoutOutput struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutService создает hosted checkout сессии у провайдера
type CheckoutService struct {
	stripe  stripe.Client
	cfg     CheckoutConfig
	metrics metrics.EntitlementMetrics
	log     *logger.Logger
}

// NewCheckoutService создает сервис оплаты
func NewCheckoutService(client stripe.Client, cfg CheckoutConfig, m metrics.EntitlementMetrics, log *logger.Logger) *CheckoutService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CheckoutService{stripe: client, cfg: cfg, metrics: m, log: log}
}

// SuccessURL адрес возврата после оплаты; {CHECKOUT_SESSION_ID} подставляет провайдер
func (s *CheckoutService) SuccessURL() string {
	return s.cfg.BaseURL + "/dashboard?payment=success&session_id={CHECKOUT_SESSION_ID}"
}

// CancelURL адрес возврата при отмене оплаты
func (s *CheckoutService) CancelURL() string {
	return s.cfg.BaseURL + "/?payment=cancelled"
}

// CreateCheckoutSession проверяет план и создает сессию. Неизвестный план
// отклоняется до обращения к провайдеру.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, in CreateCheckoutInput) (*CreateCheckoutOutput, error) {
	start := time.Now()

	if in.UserID == "" {
		return nil, domain.NewEntitlementError(domain.CodeInvalidInput, "userId is required", "", http.StatusBadRequest, domain.ErrInvalidInput)
	}

	tier, err := domain.ParseTier(in.Plan)
	if err != nil || !tier.IsPaid() {
		s.metrics.ObserveCheckout("invalid", "invalid_plan", time.Since(start))
		return nil, domain.NewEntitlementError(domain.CodeInvalidPlan,
			fmt.Sprintf("plan %q is not one of basic, pro, family", in.Plan), in.UserID, http.StatusBadRequest, domain.ErrInvalidPlan)
	}

	priceID := s.cfg.Prices[string(tier)]
	if config.IsPlaceholder(priceID) {
		s.log.Errorw("Price ID for plan is not configured", "plan", tier)
		s.metrics.ObserveCheckout(string(tier), "misconfigured", time.Since(start))
		return nil, domain.NewEntitlementError(domain.CodeConfiguration,
			fmt.Sprintf("price for plan %q is not configured", tier), in.UserID, http.StatusInternalServerError, domain.ErrConfiguration)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := stripe.CheckoutRequest{
		PriceID:    priceID,
		UserID:     in.UserID,
		Plan:       string(tier),
		Email:      in.Email,
		SuccessURL: s.SuccessURL(),
		CancelURL:  s.CancelURL(),

		// один ключ на все повторы, чтобы провайдер не создал дубликат
		IdempotencyKey: uuid.NewString(),
	}
	session, err := s.createWithRetry(callCtx, req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			s.log.Errorw("Checkout session creation timed out", "userID", in.UserID, "plan", tier, "timeout", s.cfg.Timeout)
			s.metrics.ObserveCheckout(string(tier), "timeout", time.Since(start))
			return nil, domain.NewEntitlementError(domain.CodeProviderTimeout,
				"payment provider did not respond in time", in.UserID, http.StatusGatewayTimeout,
				fmt.Errorf("%w: %v", domain.ErrProviderTimeout, err))
		}
		s.metrics.ObserveCheckout(string(tier), "failed", time.Since(start))
		return nil, domain.NewEntitlementError(domain.CodeSessionCreation,
			"payment provider rejected the checkout session", in.UserID, http.StatusBadGateway,
			fmt.Errorf("%w: %v", domain.ErrSessionCreation, err))
	}
	if session.ID == "" || session.URL == "" {
		s.log.Errorw("Checkout session returned incomplete", "userID", in.UserID, "sessionID", session.ID)
		s.metrics.ObserveCheckout(string(tier), "failed", time.Since(start))
		return nil, domain.NewEntitlementError(domain.CodeSessionCreation,
			"payment provider returned an incomplete checkout session", in.UserID, http.StatusBadGateway, domain.ErrSessionCreation)
	}

	s.metrics.ObserveCheckout(string(tier), "created", time.Since(start))
	s.log.Infow("Checkout session created", "userID", in.UserID, "plan", tier, "sessionID", session.ID)
	return &CreateCheckoutOutput{SessionID: session.ID, URL: session.URL}, nil
}

// createWithRetry повторяет запрос при временных ошибках провайдера, пока не
// истечет ctx.
func (s *CheckoutService) createWithRetry(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error) {
	var session *stripe.CheckoutSession

	operation := func() error {
		var err error
		session, err = s.stripe.CreateCheckoutSession(ctx, req)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryableStripeError(err) {
			return backoff.Permanent(err)
		}
		s.log.Warnw("Retryable Stripe error, retrying checkout session", "userID", req.UserID, "error", err)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return session, nil
}

// isRetryableStripeError проверяет, имеет ли смысл повторить запрос
func isRetryableStripeError(err error) bool {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if stripeErr.Type == stripego.ErrorTypeAPI && stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != http.StatusNotImplemented {
			return true
		}
	}
	return false
}
