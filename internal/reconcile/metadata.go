package reconcile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adhera-labs/adhera-backend/pkg/enums"
)

// Metadata keys stamped onto the checkout session at creation time. The
// provider round-trips them verbatim; they are the only channel carrying
// purchase intent back to reconciliation.
const (
	metaKind            = "kind"
	metaUserID          = "user_id"
	metaAssociationID   = "association_id"
	metaTrainingID      = "training_id"
	metaPriceID         = "price_id"
	metaOriginalCents   = "original_cents"
	metaDiscountedCents = "discounted_cents"
	metaIsMember        = "is_member"
	metaTargetStatus    = "target_status"
)

// Metadata is the typed view of a session's metadata bag.
type Metadata struct {
	Kind            enums.TransactionKind
	UserID          string
	AssociationID   string
	TrainingID      string
	PriceID         string
	OriginalCents   int64
	DiscountedCents int64
	IsMember        bool
	TargetStatus    enums.MemberStatus
}

// SubjectType reports who owns the entitlement being created.
func (m Metadata) SubjectType() enums.SubjectType {
	if m.AssociationID != "" {
		return enums.SubjectTypeAssociation
	}
	return enums.SubjectTypeUser
}

// SubjectID returns the owning subject's identifier.
func (m Metadata) SubjectID() string {
	if m.AssociationID != "" {
		return m.AssociationID
	}
	return m.UserID
}

// BuildMetadata flattens typed metadata into the bag stamped onto a new
// checkout session. ParseMetadata is its inverse.
func BuildMetadata(meta Metadata) map[string]string {
	bag := map[string]string{
		metaKind:            meta.Kind.String(),
		metaPriceID:         meta.PriceID,
		metaOriginalCents:   strconv.FormatInt(meta.OriginalCents, 10),
		metaDiscountedCents: strconv.FormatInt(meta.DiscountedCents, 10),
		metaIsMember:        strconv.FormatBool(meta.IsMember),
	}
	if meta.UserID != "" {
		bag[metaUserID] = meta.UserID
	}
	if meta.AssociationID != "" {
		bag[metaAssociationID] = meta.AssociationID
	}
	if meta.TrainingID != "" {
		bag[metaTrainingID] = meta.TrainingID
	}
	if meta.TargetStatus != "" {
		bag[metaTargetStatus] = meta.TargetStatus.String()
	}
	return bag
}

// ParseMetadata validates and types a session metadata bag.
func ParseMetadata(raw map[string]string) (Metadata, error) {
	kind, err := enums.ParseTransactionKind(strings.TrimSpace(raw[metaKind]))
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata %s: %w", metaKind, err)
	}

	meta := Metadata{
		Kind:          kind,
		UserID:        strings.TrimSpace(raw[metaUserID]),
		AssociationID: strings.TrimSpace(raw[metaAssociationID]),
		TrainingID:    strings.TrimSpace(raw[metaTrainingID]),
		PriceID:       strings.TrimSpace(raw[metaPriceID]),
	}

	if meta.PriceID == "" {
		return Metadata{}, fmt.Errorf("metadata %s is required", metaPriceID)
	}

	if meta.OriginalCents, err = parseCents(raw[metaOriginalCents]); err != nil {
		return Metadata{}, fmt.Errorf("metadata %s: %w", metaOriginalCents, err)
	}
	if meta.DiscountedCents, err = parseCents(raw[metaDiscountedCents]); err != nil {
		return Metadata{}, fmt.Errorf("metadata %s: %w", metaDiscountedCents, err)
	}

	meta.IsMember = parseBool(raw[metaIsMember])

	if target := strings.TrimSpace(raw[metaTargetStatus]); target != "" {
		status, err := enums.ParseMemberStatus(target)
		if err != nil {
			return Metadata{}, fmt.Errorf("metadata %s: %w", metaTargetStatus, err)
		}
		meta.TargetStatus = status
	}

	switch kind {
	case enums.TransactionKindMembership:
		if meta.UserID == "" && meta.AssociationID == "" {
			return Metadata{}, fmt.Errorf("membership metadata requires %s or %s", metaUserID, metaAssociationID)
		}
		if meta.UserID != "" && meta.AssociationID != "" {
			return Metadata{}, fmt.Errorf("membership subject must be a user or an association, not both")
		}
	case enums.TransactionKindTraining:
		if meta.UserID == "" {
			return Metadata{}, fmt.Errorf("training metadata requires %s", metaUserID)
		}
		if meta.TrainingID == "" {
			return Metadata{}, fmt.Errorf("training metadata requires %s", metaTrainingID)
		}
	}

	return meta, nil
}

func parseCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	cents, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cents value %q", raw)
	}
	if cents < 0 {
		return 0, fmt.Errorf("cents value %q must not be negative", raw)
	}
	return cents, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
