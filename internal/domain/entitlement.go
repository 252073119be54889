package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tier уровень подписки пользователя
type Tier string

const (
	TierNone   Tier = "none"
	TierBasic  Tier = "basic"
	TierPro    Tier = "pro"
	TierFamily Tier = "family"
)

// PaidTiers lists the tiers that can be purchased, in pricing-page order.
var PaidTiers = []Tier{TierBasic, TierPro, TierFamily}

// ParseTier converts a raw plan name into a Tier. Matching is exact after
// trimming; "none" parses successfully, anything unknown does not.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.TrimSpace(s)); t {
	case TierNone, TierBasic, TierPro, TierFamily:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// IsPaid reports whether the tier grants store access.
func (t Tier) IsPaid() bool {
	return t == TierBasic || t == TierPro || t == TierFamily
}

// Entitlement запись о подписке пользователя
type Entitlement struct {
	UserID                 string    `json:"userId"`
	Email                  string    `json:"email,omitempty"`
	MembershipTier         Tier      `json:"membershipTier"`
	IsActive               bool      `json:"isActive"`
	ProviderCustomerID     string    `json:"providerCustomerId,omitempty"`
	ProviderSubscriptionID string    `json:"providerSubscriptionId,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// NewEntitlement returns the record created at signup: no tier, inactive.
func NewEntitlement(userID, email string) Entitlement {
	now := time.Now().UTC()
	return Entitlement{
		UserID:         userID,
		Email:          email,
		MembershipTier: TierNone,
		IsActive:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Consistent reports whether tier and active flag agree: tier none iff inactive.
func (e Entitlement) Consistent() bool {
	return e.MembershipTier.IsPaid() == e.IsActive
}

// Mutation describes one atomic change to an entitlement record. Tier and
// IsActive always travel together; provider references are only written when
// non-nil.
type Mutation struct {
	Tier                   Tier
	IsActive               bool
	ProviderCustomerID     *string
	ProviderSubscriptionID *string
}

// Grant builds the mutation applied when a checkout completes.
func Grant(tier Tier, customerID, subscriptionID string) Mutation {
	return Mutation{
		Tier:                   tier,
		IsActive:               true,
		ProviderCustomerID:     &customerID,
		ProviderSubscriptionID: &subscriptionID,
	}
}

// Revoke builds the mutation applied when the provider subscription ends.
// Provider references are kept so later events can still be matched.
func Revoke() Mutation {
	return Mutation{Tier: TierNone, IsActive: false}
}

// Override builds an administrative mutation that sets a tier directly.
func Override(tier Tier) Mutation {
	return Mutation{Tier: tier, IsActive: tier.IsPaid()}
}

// Validate rejects mutations that would break the tier/active invariant.
func (m Mutation) Validate() error {
	if _, err := ParseTier(string(m.Tier)); err != nil {
		return err
	}
	if m.Tier.IsPaid() != m.IsActive {
		return fmt.Errorf("tier %q with isActive=%t violates entitlement invariant", m.Tier, m.IsActive)
	}
	return nil
}

// Changes reports whether applying m would alter anything in e besides
// UpdatedAt.
func (m Mutation) Changes(e Entitlement) bool {
	if e.MembershipTier != m.Tier || e.IsActive != m.IsActive {
		return true
	}
	if m.ProviderCustomerID != nil && *m.ProviderCustomerID != e.ProviderCustomerID {
		return true
	}
	return m.ProviderSubscriptionID != nil && *m.ProviderSubscriptionID != e.ProviderSubscriptionID
}

// Apply returns a copy of e with the mutation applied.
func (m Mutation) Apply(e Entitlement, now time.Time) Entitlement {
	e.MembershipTier = m.Tier
	e.IsActive = m.IsActive
	if m.ProviderCustomerID != nil {
		e.ProviderCustomerID = *m.ProviderCustomerID
	}
	if m.ProviderSubscriptionID != nil {
		e.ProviderSubscriptionID = *m.ProviderSubscriptionID
	}
	e.UpdatedAt = now
	return e
}
