package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeSource что привело к изменению записи
type ChangeSource string

const (
	ChangeSourceCheckout     ChangeSource = "checkout_completed"
	ChangeSourceCancellation ChangeSource = "subscription_deleted"
	ChangeSourceOverride     ChangeSource = "admin_override"
)

// EntitlementChanged событие для внешних потребителей, например VPN шлюзов,
// которым нужно знать, какие регионы открыты пользователю.
type EntitlementChanged struct {
	EventID         string       `json:"eventId"`
	Source          ChangeSource `json:"source"`
	ProviderEventID string       `json:"providerEventId,omitempty"`
	Entitlement     Entitlement  `json:"entitlement"`
	Regions         []Region     `json:"regions"`
	OccurredAt      time.Time    `json:"occurredAt"`
}

// NewEntitlementChanged builds the event for a committed record.
func NewEntitlementChanged(source ChangeSource, providerEventID string, e Entitlement) EntitlementChanged {
	tier := TierNone
	if e.IsActive {
		tier = e.MembershipTier
	}
	return EntitlementChanged{
		EventID:         uuid.NewString(),
		Source:          source,
		ProviderEventID: providerEventID,
		Entitlement:     e,
		Regions:         AccessibleRegions(tier),
		OccurredAt:      e.UpdatedAt,
	}
}
