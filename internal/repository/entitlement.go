package repository

import (
	"context"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
)

// Change одно изменение записи в ленте. Err != nil означает, что лента
// прервалась и подписчик должен считать текущее значение неизвестным.
type Change struct {
	Entitlement *domain.Entitlement
	Err         error
}

// ChangeFeed доставляет изменения записей подписчикам.
type ChangeFeed interface {
	// Subscribe returns a channel of changes for userID and a function that
	// releases the subscription. Only the latest undelivered change is kept.
	Subscribe(userID string) (<-chan Change, func())
}

// EntitlementRepository хранилище записей о подписках.
type EntitlementRepository interface {
	ChangeFeed

	// Get returns the record for userID or ErrNotFound.
	Get(ctx context.Context, userID string) (*domain.Entitlement, error)

	// Create stores a signup record. If one already exists it is returned
	// unchanged and the bool result is false.
	Create(ctx context.Context, e domain.Entitlement) (*domain.Entitlement, bool, error)

	// Update applies m atomically. Returns ErrNotFound when there is no
	// record and ErrInvalidData when m breaks the tier/active invariant.
	Update(ctx context.Context, userID string, m domain.Mutation) (*domain.Entitlement, error)

	// FindByCustomerID returns the record holding the provider customer
	// reference, or ErrNotFound.
	FindByCustomerID(ctx context.Context, customerID string) (*domain.Entitlement, error)
}
