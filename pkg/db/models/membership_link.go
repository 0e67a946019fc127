package models

import (
	"time"

	"github.com/google/uuid"
)

// UserMembership links a user to a membership row.
type UserMembership struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       string    `gorm:"column:user_id;not null;index;uniqueIndex:uq_users_memberships_pair"`
	MembershipID uuid.UUID `gorm:"column:membership_id;type:uuid;not null;index;uniqueIndex:uq_users_memberships_pair"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserMembership) TableName() string { return "users_memberships" }

// AssociationMembership links an association to a membership row.
type AssociationMembership struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AssociationID string    `gorm:"column:association_id;not null;index;uniqueIndex:uq_associations_memberships_pair"`
	MembershipID  uuid.UUID `gorm:"column:membership_id;type:uuid;not null;index;uniqueIndex:uq_associations_memberships_pair"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (AssociationMembership) TableName() string { return "associations_memberships" }
