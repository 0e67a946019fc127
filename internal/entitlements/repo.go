package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
)

// Repository exposes entitlement persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindMembershipBySession returns the membership created from a checkout
// session, or nil when none exists.
func (r *Repository) FindMembershipBySession(ctx context.Context, sessionID string) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("checkout_session_id = ?", sessionID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindMembershipByID returns a membership by primary key, or nil.
func (r *Repository) FindMembershipByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// CreateMembership persists a new membership row. Unique violations on the
// session constraint surface unchanged so callers can fall back to the
// winner's row.
func (r *Repository) CreateMembership(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

// UpdateMembership persists the full membership row.
func (r *Repository) UpdateMembership(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Save(membership).Error
}

// DeleteMembership removes the membership row.
func (r *Repository) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Membership{}).Error
}

// LinkUser attaches a user to a membership.
func (r *Repository) LinkUser(ctx context.Context, userID string, membershipID uuid.UUID) error {
	link := &models.UserMembership{UserID: userID, MembershipID: membershipID}
	return r.db.WithContext(ctx).Create(link).Error
}

// LinkAssociation attaches an association to a membership.
func (r *Repository) LinkAssociation(ctx context.Context, associationID string, membershipID uuid.UUID) error {
	link := &models.AssociationMembership{AssociationID: associationID, MembershipID: membershipID}
	return r.db.WithContext(ctx).Create(link).Error
}

// CreateMembershipWithSubject persists the membership row and its subject
// link in one transaction, so a failed link insert never leaves an orphaned
// membership behind. Unique violations on the session constraint surface
// unchanged, same as CreateMembership.
func (r *Repository) CreateMembershipWithSubject(ctx context.Context, membership *models.Membership, subjectType enums.SubjectType, subjectID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := r.WithTx(tx)
		if err := txRepo.CreateMembership(ctx, membership); err != nil {
			return err
		}
		if subjectType == enums.SubjectTypeAssociation {
			return txRepo.LinkAssociation(ctx, subjectID, membership.ID)
		}
		return txRepo.LinkUser(ctx, subjectID, membership.ID)
	})
}

// UnlinkSubject removes the subject's link to a membership. Removing a link
// that does not exist is not an error.
func (r *Repository) UnlinkSubject(ctx context.Context, subjectType enums.SubjectType, subjectID string, membershipID uuid.UUID) error {
	switch subjectType {
	case enums.SubjectTypeAssociation:
		return r.db.WithContext(ctx).
			Where("association_id = ? AND membership_id = ?", subjectID, membershipID).
			Delete(&models.AssociationMembership{}).Error
	default:
		return r.db.WithContext(ctx).
			Where("user_id = ? AND membership_id = ?", subjectID, membershipID).
			Delete(&models.UserMembership{}).Error
	}
}

// CountLinks reports how many subjects still reference the membership.
func (r *Repository) CountLinks(ctx context.Context, membershipID uuid.UUID) (int64, error) {
	var users, associations int64
	err := r.db.WithContext(ctx).
		Model(&models.UserMembership{}).
		Where("membership_id = ?", membershipID).
		Count(&users).Error
	if err != nil {
		return 0, err
	}
	err = r.db.WithContext(ctx).
		Model(&models.AssociationMembership{}).
		Where("membership_id = ?", membershipID).
		Count(&associations).Error
	if err != nil {
		return 0, err
	}
	return users + associations, nil
}

// ListLinkedUserIDs returns the users currently linked to a membership.
func (r *Repository) ListLinkedUserIDs(ctx context.Context, membershipID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.UserMembership{}).
		Where("membership_id = ?", membershipID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListLinkedAssociationIDs returns the associations currently linked to a membership.
func (r *Repository) ListLinkedAssociationIDs(ctx context.Context, membershipID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.AssociationMembership{}).
		Where("membership_id = ?", membershipID).
		Pluck("association_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListMembershipsForSubject returns all membership rows linked to a subject,
// newest first.
func (r *Repository) ListMembershipsForSubject(ctx context.Context, subjectType enums.SubjectType, subjectID string) ([]models.Membership, error) {
	var rows []models.Membership

	query := r.db.WithContext(ctx).Model(&models.Membership{})
	switch subjectType {
	case enums.SubjectTypeAssociation:
		query = query.
			Joins("JOIN associations_memberships ON associations_memberships.membership_id = memberships.id").
			Where("associations_memberships.association_id = ?", subjectID)
	default:
		query = query.
			Joins("JOIN users_memberships ON users_memberships.membership_id = memberships.id").
			Where("users_memberships.user_id = ?", subjectID)
	}

	err := query.Order("memberships.starts_at DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindTrainingBySession returns the training purchase created from a checkout
// session for the user, or nil when none exists.
func (r *Repository) FindTrainingBySession(ctx context.Context, userID, sessionID string) (*models.TrainingPurchase, error) {
	var purchase models.TrainingPurchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND checkout_session_id = ?", userID, sessionID).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// FindTrainingByCheckoutSession returns the training purchase created from a
// checkout session regardless of user, or nil when none exists.
func (r *Repository) FindTrainingByCheckoutSession(ctx context.Context, sessionID string) (*models.TrainingPurchase, error) {
	var purchase models.TrainingPurchase
	err := r.db.WithContext(ctx).
		Where("checkout_session_id = ?", sessionID).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// FindTrainingByID returns a training purchase by primary key, or nil.
func (r *Repository) FindTrainingByID(ctx context.Context, id uuid.UUID) (*models.TrainingPurchase, error) {
	var purchase models.TrainingPurchase
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// CreateTraining persists a new training purchase row.
func (r *Repository) CreateTraining(ctx context.Context, purchase *models.TrainingPurchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

// ListMembershipsMissingProof returns memberships still awaiting a proof
// document, oldest first, capped by attempts and batch size.
func (r *Repository) ListMembershipsMissingProof(ctx context.Context, maxAttempts, limit int) ([]models.Membership, error) {
	var rows []models.Membership
	err := r.db.WithContext(ctx).
		Where("proof_ref IS NULL AND proof_exhausted = FALSE AND proof_attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListTrainingsMissingProof mirrors ListMembershipsMissingProof for training purchases.
func (r *Repository) ListTrainingsMissingProof(ctx context.Context, maxAttempts, limit int) ([]models.TrainingPurchase, error) {
	var rows []models.TrainingPurchase
	err := r.db.WithContext(ctx).
		Where("proof_ref IS NULL AND proof_exhausted = FALSE AND proof_attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetMembershipProof attaches a resolved proof document to a membership.
func (r *Repository) SetMembershipProof(ctx context.Context, id uuid.UUID, ref string, kind enums.ProofKind, url string) error {
	updates := map[string]any{
		"proof_ref":  ref,
		"proof_kind": kind,
		"proof_url":  nullableString(url),
		"updated_at": time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetTrainingProof attaches a resolved proof document to a training purchase.
func (r *Repository) SetTrainingProof(ctx context.Context, id uuid.UUID, ref string, kind enums.ProofKind, url string) error {
	updates := map[string]any{
		"proof_ref":  ref,
		"proof_kind": kind,
		"proof_url":  nullableString(url),
		"updated_at": time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Model(&models.TrainingPurchase{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RecordMembershipProofAttempt bumps the attempt counter; exhausted marks the
// row terminal so the backfill job stops picking it up.
func (r *Repository) RecordMembershipProofAttempt(ctx context.Context, id uuid.UUID, exhausted bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"proof_attempts":  gorm.Expr("proof_attempts + 1"),
			"proof_exhausted": exhausted,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// RecordTrainingProofAttempt mirrors RecordMembershipProofAttempt.
func (r *Repository) RecordTrainingProofAttempt(ctx context.Context, id uuid.UUID, exhausted bool) error {
	return r.db.WithContext(ctx).
		Model(&models.TrainingPurchase{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"proof_attempts":  gorm.Expr("proof_attempts + 1"),
			"proof_exhausted": exhausted,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
