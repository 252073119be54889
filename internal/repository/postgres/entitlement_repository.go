package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/repository"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangesChannel канал NOTIFY, в который пишется каждое изменение записи
const ChangesChannel = "entitlement_changes"

const entitlementColumns = `user_id, email, membership_tier, is_active,
	provider_customer_id, provider_subscription_id, created_at, updated_at`

// EntitlementRepository реализация хранилища через PostgreSQL. Изменения
// публикуются через NOTIFY в той же транзакции и доходят до подписчиков
// через Listen.
type EntitlementRepository struct {
	db     *pgxpool.Pool
	broker *repository.Broker
	log    *logger.Logger
}

// NewEntitlementRepository создает репозиторий
func NewEntitlementRepository(db *pgxpool.Pool, log *logger.Logger) *EntitlementRepository {
	return &EntitlementRepository{
		db:     db,
		broker: repository.NewBroker(),
		log:    log,
	}
}

func scanEntitlement(row pgx.Row) (*domain.Entitlement, error) {
	var (
		e              domain.Entitlement
		tier           string
		customerID     *string
		subscriptionID *string
	)
	err := row.Scan(
		&e.UserID,
		&e.Email,
		&tier,
		&e.IsActive,
		&customerID,
		&subscriptionID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.MembershipTier = domain.Tier(tier)
	if customerID != nil {
		e.ProviderCustomerID = *customerID
	}
	if subscriptionID != nil {
		e.ProviderSubscriptionID = *subscriptionID
	}
	return &e, nil
}

func (r *EntitlementRepository) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE user_id = $1`

	e, err := scanEntitlement(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	return e, nil
}

func (r *EntitlementRepository) Create(ctx context.Context, e domain.Entitlement) (*domain.Entitlement, bool, error) {
	if !e.Consistent() {
		return nil, false, fmt.Errorf("%w: tier %q with isActive=%t", repository.ErrInvalidData, e.MembershipTier, e.IsActive)
	}

	query := `
		INSERT INTO entitlements (user_id, email, membership_tier, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + entitlementColumns

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanEntitlement(tx.QueryRow(ctx, query,
		e.UserID, e.Email, string(e.MembershipTier), e.IsActive, e.CreatedAt, e.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		// запись уже есть, повторная регистрация ничего не меняет
		existing, err := r.Get(ctx, e.UserID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create entitlement: %w", err)
	}

	if err := notify(ctx, tx, rec); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit entitlement: %w", err)
	}

	r.log.Debugw("Entitlement created", "userID", rec.UserID)
	return rec, true, nil
}

func (r *EntitlementRepository) Update(ctx context.Context, userID string, m domain.Mutation) (*domain.Entitlement, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrInvalidData, err)
	}

	query := `
		UPDATE entitlements SET
			membership_tier = $2,
			is_active = $3,
			provider_customer_id = COALESCE($4, provider_customer_id),
			provider_subscription_id = COALESCE($5, provider_subscription_id),
			updated_at = now()
		WHERE user_id = $1
		RETURNING ` + entitlementColumns

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanEntitlement(tx.QueryRow(ctx, query,
		userID, string(m.Tier), m.IsActive, m.ProviderCustomerID, m.ProviderSubscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update entitlement: %w", err)
	}

	if err := notify(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit entitlement update: %w", err)
	}

	r.log.Debugw("Entitlement updated", "userID", userID, "tier", rec.MembershipTier, "isActive", rec.IsActive)
	return rec, nil
}

func (r *EntitlementRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.Entitlement, error) {
	if customerID == "" {
		return nil, repository.ErrNotFound
	}
	query := `SELECT ` + entitlementColumns + `
		FROM entitlements
		WHERE provider_customer_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	e, err := scanEntitlement(r.db.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find entitlement by customer: %w", err)
	}
	return e, nil
}

func (r *EntitlementRepository) Subscribe(userID string) (<-chan repository.Change, func()) {
	return r.broker.Subscribe(userID)
}

func notify(ctx context.Context, tx pgx.Tx, e *domain.Entitlement) error {
	payload, err := encodeChange(e)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangesChannel, payload); err != nil {
		return fmt.Errorf("failed to notify entitlement change: %w", err)
	}
	return nil
}

func encodeChange(e *domain.Entitlement) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode entitlement change: %w", err)
	}
	return string(data), nil
}

func decodeChange(payload string) (domain.Entitlement, error) {
	var e domain.Entitlement
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return domain.Entitlement{}, fmt.Errorf("failed to decode entitlement change: %w", err)
	}
	if e.UserID == "" {
		return domain.Entitlement{}, errors.New("entitlement change without userId")
	}
	return e, nil
}
