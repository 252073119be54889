package domain

import "time"

// WebhookEventType тип события платежного провайдера
type WebhookEventType string

const (
	WebhookEventCheckoutCompleted   WebhookEventType = "checkout.session.completed"
	WebhookEventSubscriptionDeleted WebhookEventType = "customer.subscription.deleted"
)

// WebhookOutcome результат обработки события
type WebhookOutcome string

const (
	// WebhookOutcomeApplied изменение записано в хранилище
	WebhookOutcomeApplied WebhookOutcome = "applied"
	// WebhookOutcomeUnchanged запись уже в нужном состоянии (повторная доставка)
	WebhookOutcomeUnchanged WebhookOutcome = "unchanged"
	// WebhookOutcomeIgnored тип события не обрабатывается
	WebhookOutcomeIgnored WebhookOutcome = "ignored"
	// WebhookOutcomeUnmatched запись для клиента провайдера не найдена
	WebhookOutcomeUnmatched WebhookOutcome = "unmatched"
	// WebhookOutcomeRejected событие отклонено (подпись, метаданные)
	WebhookOutcomeRejected WebhookOutcome = "rejected"
	// WebhookOutcomeFailed ошибка хранилища, провайдер повторит доставку
	WebhookOutcomeFailed WebhookOutcome = "failed"
)

// WebhookEvent проверенное событие провайдера
type WebhookEvent struct {
	ID      string
	Type    WebhookEventType
	Created time.Time
	Payload []byte
}

// CheckoutCompleted данные завершенной оплаты
type CheckoutCompleted struct {
	EventID        string
	SessionID      string
	UserID         string
	Plan           string
	CustomerID     string
	SubscriptionID string
}

// SubscriptionDeleted данные отмененной подписки
type SubscriptionDeleted struct {
	EventID        string
	SubscriptionID string
	CustomerID     string
}
