package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/stripe/stripe-go/v78/webhook"
)

// WebhookVerifier проверяет подпись Stripe-Signature и разбирает событие
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewWebhookVerifier создает верификатор с допуском по времени подписи
// по умолчанию (5 минут).
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Verify проверяет подпись и возвращает событие. Любая ошибка проверки
// оборачивает domain.ErrSignatureInvalid.
func (v *WebhookVerifier) Verify(payload []byte, sigHeader string) (domain.WebhookEvent, error) {
	if strings.TrimSpace(v.secret) == "" {
		return domain.WebhookEvent{}, fmt.Errorf("%w: webhook secret is not configured", domain.ErrSignatureInvalid)
	}
	if strings.TrimSpace(sigHeader) == "" {
		return domain.WebhookEvent{}, fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrSignatureInvalid)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	var raw []byte
	if event.Data != nil {
		raw = event.Data.Raw
	}
	return domain.WebhookEvent{
		ID:      event.ID,
		Type:    domain.WebhookEventType(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Payload: raw,
	}, nil
}

// checkoutSessionObject минимальное представление checkout.session
type checkoutSessionObject struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// subscriptionObject минимальное представление subscription
type subscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

// DecodeCheckoutCompleted извлекает данные из checkout.session.completed.
// Отсутствие userId или plan в метаданных дает domain.ErrMissingMetadata.
func DecodeCheckoutCompleted(event domain.WebhookEvent) (domain.CheckoutCompleted, error) {
	var session checkoutSessionObject
	if err := json.Unmarshal(event.Payload, &session); err != nil {
		return domain.CheckoutCompleted{}, fmt.Errorf("%w: decode checkout.session: %v", domain.ErrInvalidInput, err)
	}

	userID := strings.TrimSpace(session.Metadata[MetadataUserIDKey])
	plan := strings.TrimSpace(session.Metadata[MetadataPlanKey])
	if userID == "" || plan == "" {
		return domain.CheckoutCompleted{}, fmt.Errorf("%w: session %s has userId=%q plan=%q",
			domain.ErrMissingMetadata, session.ID, userID, plan)
	}

	return domain.CheckoutCompleted{
		EventID:        event.ID,
		SessionID:      session.ID,
		UserID:         userID,
		Plan:           plan,
		CustomerID:     session.Customer,
		SubscriptionID: session.Subscription,
	}, nil
}

// DecodeSubscriptionDeleted извлекает данные из customer.subscription.deleted
func DecodeSubscriptionDeleted(event domain.WebhookEvent) (domain.SubscriptionDeleted, error) {
	var sub subscriptionObject
	if err := json.Unmarshal(event.Payload, &sub); err != nil {
		return domain.SubscriptionDeleted{}, fmt.Errorf("%w: decode subscription: %v", domain.ErrInvalidInput, err)
	}
	return domain.SubscriptionDeleted{
		EventID:        event.ID,
		SubscriptionID: sub.ID,
		CustomerID:     strings.TrimSpace(sub.Customer),
	}, nil
}
