package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
)

// InMemoryEntitlementRepository хранит записи в памяти процесса.
// Используется в тестах и при STORE_DRIVER=memory.
type InMemoryEntitlementRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Entitlement
	broker  *Broker
	log     *logger.Logger
	now     func() time.Time
}

// NewInMemoryEntitlementRepository создает пустое хранилище
func NewInMemoryEntitlementRepository(log *logger.Logger) *InMemoryEntitlementRepository {
	return &InMemoryEntitlementRepository{
		records: make(map[string]domain.Entitlement),
		broker:  NewBroker(),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryEntitlementRepository) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *InMemoryEntitlementRepository) Create(ctx context.Context, e domain.Entitlement) (*domain.Entitlement, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !e.Consistent() {
		return nil, false, fmt.Errorf("%w: tier %q with isActive=%t", ErrInvalidData, e.MembershipTier, e.IsActive)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[e.UserID]; ok {
		return &existing, false, nil
	}
	r.records[e.UserID] = e
	r.broker.Publish(e)
	r.log.Debugw("Entitlement created", "userID", e.UserID)
	return &e, true, nil
}

func (r *InMemoryEntitlementRepository) Update(ctx context.Context, userID string, m domain.Mutation) (*domain.Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	rec = m.Apply(rec, r.now())
	r.records[userID] = rec
	r.broker.Publish(rec)
	r.log.Debugw("Entitlement updated", "userID", userID, "tier", rec.MembershipTier, "isActive", rec.IsActive)
	return &rec, nil
}

func (r *InMemoryEntitlementRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Entitlement
	for _, rec := range r.records {
		if rec.ProviderCustomerID != customerID {
			continue
		}
		// при нескольких совпадениях берем последнюю обновленную запись
		if found == nil || rec.UpdatedAt.After(found.UpdatedAt) {
			rec := rec
			found = &rec
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *InMemoryEntitlementRepository) Subscribe(userID string) (<-chan Change, func()) {
	return r.broker.Subscribe(userID)
}
