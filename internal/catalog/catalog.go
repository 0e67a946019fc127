package catalog

import (
	"github.com/adhera-labs/adhera-backend/pkg/enums"
)

// Entry is the pure pricing metadata behind a provider price identifier.
type Entry struct {
	PriceID             string
	Kind                enums.TransactionKind
	Tier                enums.MembershipTier
	BaseCents           int64
	MemberDiscountCents int64
	Hours               int
}

// Price identifiers sold through checkout. The provider owns the price
// objects; this table owns what each one means for entitlements.
const (
	PriceMembershipSimple      = "price_member_simple"
	PriceMembershipPro         = "price_member_pro"
	PriceMembershipAssociation = "price_member_association"
	PriceTrainingPSSM          = "price_pssm"
	PriceTrainingPSSB          = "price_pssb"
)

var entries = map[string]Entry{
	PriceMembershipSimple: {
		PriceID:   PriceMembershipSimple,
		Kind:      enums.TransactionKindMembership,
		Tier:      enums.MembershipTierSimple,
		BaseCents: 9900,
	},
	PriceMembershipPro: {
		PriceID:   PriceMembershipPro,
		Kind:      enums.TransactionKindMembership,
		Tier:      enums.MembershipTierPro,
		BaseCents: 19900,
	},
	PriceMembershipAssociation: {
		PriceID:   PriceMembershipAssociation,
		Kind:      enums.TransactionKindMembership,
		Tier:      enums.MembershipTierAssociation,
		BaseCents: 49900,
	},
	PriceTrainingPSSM: {
		PriceID:             PriceTrainingPSSM,
		Kind:                enums.TransactionKindTraining,
		BaseCents:           25000,
		MemberDiscountCents: 3500,
		Hours:               14,
	},
	PriceTrainingPSSB: {
		PriceID:             PriceTrainingPSSB,
		Kind:                enums.TransactionKindTraining,
		BaseCents:           15000,
		MemberDiscountCents: 2000,
		Hours:               7,
	},
}

// Lookup resolves a provider price identifier.
func Lookup(priceID string) (Entry, bool) {
	entry, ok := entries[priceID]
	return entry, ok
}

// FinalPriceCents applies the member discount when applicable. The result
// is clamped at zero.
func (e Entry) FinalPriceCents(isMember bool) int64 {
	price := e.BaseCents
	if isMember {
		price -= e.MemberDiscountCents
	}
	if price < 0 {
		return 0
	}
	return price
}

// IsTraining reports whether the entry sells training hours.
func (e Entry) IsTraining() bool {
	return e.Kind == enums.TransactionKindTraining
}

// IsMembership reports whether the entry sells a membership period.
func (e Entry) IsMembership() bool {
	return e.Kind == enums.TransactionKindMembership
}
