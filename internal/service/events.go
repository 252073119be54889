package service

import (
	"context"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
)

// EventPublisher уведомляет внешние системы об изменении записи. Реализация
// для Kafka в internal/kafka.
type EventPublisher interface {
	PublishEntitlementChanged(ctx context.Context, ev domain.EntitlementChanged) error
}

type noopPublisher struct{}

func (noopPublisher) PublishEntitlementChanged(context.Context, domain.EntitlementChanged) error {
	return nil
}

// publishChange отправляет событие после записи. Хранилище остается
// источником истины, поэтому ошибка публикации только логируется.
func publishChange(ctx context.Context, p EventPublisher, log *logger.Logger, source domain.ChangeSource, providerEventID string, e *domain.Entitlement) {
	if err := p.PublishEntitlementChanged(ctx, domain.NewEntitlementChanged(source, providerEventID, *e)); err != nil {
		log.Warnw("Failed to publish entitlement change", "userID", e.UserID, "source", source, "error", err)
	}
}
