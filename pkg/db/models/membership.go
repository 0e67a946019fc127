package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adhera-labs/adhera-backend/pkg/enums"
)

// UniqueMembershipSession names the constraint that makes membership
// creation race-safe across processes.
const UniqueMembershipSession = "uq_memberships_checkout_session_id"

// Membership persists a paid membership period. One row may be shared by
// several subjects (an association purchase covers its connected users),
// so link rows carry the subject side.
type Membership struct {
	ID                uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Tier              enums.MembershipTier `gorm:"column:tier;type:membership_tier;not null"`
	PriceCents        int64                `gorm:"column:price_cents;not null"`
	CheckoutSessionID string               `gorm:"column:checkout_session_id;not null;unique"`
	StartsAt          time.Time            `gorm:"column:starts_at;not null"`
	EndsAt            time.Time            `gorm:"column:ends_at;not null"`

	ProofRef       *string          `gorm:"column:proof_ref"`
	ProofKind      *enums.ProofKind `gorm:"column:proof_kind;type:proof_kind"`
	ProofURL       *string          `gorm:"column:proof_url"`
	ProofAttempts  int              `gorm:"column:proof_attempts;not null;default:0"`
	ProofExhausted bool             `gorm:"column:proof_exhausted;not null;default:false"`

	CancelledAt      *time.Time `gorm:"column:cancelled_at"`
	RenewalCancelled bool       `gorm:"column:renewal_cancelled;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Membership) TableName() string { return "memberships" }

// IsActive reports whether the period covers now and was not cancelled.
func (m Membership) IsActive(now time.Time) bool {
	if m.CancelledAt != nil {
		return false
	}
	return !now.Before(m.StartsAt) && now.Before(m.EndsAt)
}

// IsExpired reports whether the period has already ended.
func (m Membership) IsExpired(now time.Time) bool {
	return !now.Before(m.EndsAt)
}

// HasProof reports whether a payment document was already attached.
func (m Membership) HasProof() bool {
	return m.ProofRef != nil && *m.ProofRef != ""
}
