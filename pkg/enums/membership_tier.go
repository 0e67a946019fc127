package enums

import "fmt"

// MembershipTier is the status tag attached to a paid membership.
type MembershipTier string

const (
	MembershipTierSimple      MembershipTier = "simple"
	MembershipTierPro         MembershipTier = "pro"
	MembershipTierAssociation MembershipTier = "association"
)

var validMembershipTiers = []MembershipTier{
	MembershipTierSimple,
	MembershipTierPro,
	MembershipTierAssociation,
}

// String implements fmt.Stringer.
func (m MembershipTier) String() string {
	return string(m)
}

// IsValid reports whether the value matches a known MembershipTier.
func (m MembershipTier) IsValid() bool {
	for _, candidate := range validMembershipTiers {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMembershipTier converts raw input into a MembershipTier.
func ParseMembershipTier(value string) (MembershipTier, error) {
	for _, candidate := range validMembershipTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership tier %q", value)
}
