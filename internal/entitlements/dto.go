package entitlements

import (
	"time"

	"github.com/google/uuid"

	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
)

// MembershipStatus is the read model returned by the status endpoint.
type MembershipStatus struct {
	ID               uuid.UUID            `json:"id"`
	Tier             enums.MembershipTier `json:"tier"`
	StartsAt         time.Time            `json:"starts_at"`
	EndsAt           time.Time            `json:"ends_at"`
	Active           bool                 `json:"active"`
	RenewalCancelled bool                 `json:"renewal_cancelled"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
	HasProof         bool                 `json:"has_proof"`
}

func membershipStatusFromModel(m models.Membership, now time.Time) MembershipStatus {
	return MembershipStatus{
		ID:               m.ID,
		Tier:             m.Tier,
		StartsAt:         m.StartsAt,
		EndsAt:           m.EndsAt,
		Active:           m.IsActive(now),
		RenewalCancelled: m.RenewalCancelled,
		CancelledAt:      m.CancelledAt,
		HasProof:         m.HasProof(),
	}
}
