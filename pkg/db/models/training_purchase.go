package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adhera-labs/adhera-backend/pkg/enums"
)

// UniqueTrainingSession names the constraint that makes training purchase
// creation race-safe across processes.
const UniqueTrainingSession = "uq_trainings_purchase_session"

// TrainingPurchase persists a block of purchased training hours for a user.
type TrainingPurchase struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              string    `gorm:"column:user_id;not null;index;uniqueIndex:uq_trainings_purchase_session"`
	TrainingID          string    `gorm:"column:training_id;not null;index"`
	CheckoutSessionID   string    `gorm:"column:checkout_session_id;not null;uniqueIndex:uq_trainings_purchase_session"`
	AmountCents         int64     `gorm:"column:amount_cents;not null"`
	OriginalPriceCents  int64     `gorm:"column:original_price_cents;not null"`
	MemberDiscountCents int64     `gorm:"column:member_discount_cents;not null;default:0"`
	HoursPurchased      int       `gorm:"column:hours_purchased;not null"`
	HoursConsumed       int       `gorm:"column:hours_consumed;not null;default:0"`

	ProofRef       *string          `gorm:"column:proof_ref"`
	ProofKind      *enums.ProofKind `gorm:"column:proof_kind;type:proof_kind"`
	ProofURL       *string          `gorm:"column:proof_url"`
	ProofAttempts  int              `gorm:"column:proof_attempts;not null;default:0"`
	ProofExhausted bool             `gorm:"column:proof_exhausted;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TrainingPurchase) TableName() string { return "trainings_purchase" }

// HoursRemaining returns the unconsumed hours, never negative.
func (p TrainingPurchase) HoursRemaining() int {
	if p.HoursConsumed >= p.HoursPurchased {
		return 0
	}
	return p.HoursPurchased - p.HoursConsumed
}

// HasProof reports whether a payment document was already attached.
func (p TrainingPurchase) HasProof() bool {
	return p.ProofRef != nil && *p.ProofRef != ""
}
