package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/Entitlement-microservice/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключи метаданных, по которым вебхук находит пользователя и план
	MetadataUserIDKey = "userId"
	MetadataPlanKey   = "plan"
)

// CheckoutRequest параметры новой сессии оплаты
type CheckoutRequest struct {
	PriceID    string
	UserID     string
	Plan       string
	Email      string
	SuccessURL string
	CancelURL  string

	// IdempotencyKey общий для всех повторов одного запроса
	IdempotencyKey string
}

// CheckoutSession созданная сессия оплаты
type CheckoutSession struct {
	ID  string
	URL string
}

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCheckoutSession создает hosted checkout сессию для подписки.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(apiKey string, log *logger.Logger) Client {
	return NewStripeClientWithBackends(apiKey, nil, log)
}

// NewStripeClientWithBackends создает клиента с заданными бекендами (nil для
// бекендов по умолчанию).
func NewStripeClientWithBackends(apiKey string, backends *stripe.Backends, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// CreateCheckoutSession создает сессию в режиме subscription. userId и plan
// пишутся в метаданные сессии и подписки, userId также в client_reference_id.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserIDKey: req.UserID,
				MetadataPlanKey:   req.Plan,
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata(MetadataUserIDKey, req.UserID)
	params.AddMetadata(MetadataPlanKey, req.Plan)
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	params.Context = ctx

	session, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", session.ID, "userID", req.UserID, "plan", req.Plan)
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
