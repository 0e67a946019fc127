package enums

import "fmt"

// MemberStatus is a status code held by a subject in the directory service.
type MemberStatus string

const (
	MemberStatusSimple      MemberStatus = "member_simple"
	MemberStatusPro         MemberStatus = "member_pro"
	MemberStatusAssociation MemberStatus = "association_member"
	MemberStatusConnected   MemberStatus = "connected"
)

var validMemberStatuses = []MemberStatus{
	MemberStatusSimple,
	MemberStatusPro,
	MemberStatusAssociation,
	MemberStatusConnected,
}

// activeMemberStatuses is the fixed set of codes that make a subject a
// paying member for discount purposes. "connected" is not one of them.
var activeMemberStatuses = []MemberStatus{
	MemberStatusSimple,
	MemberStatusPro,
	MemberStatusAssociation,
}

// String implements fmt.Stringer.
func (m MemberStatus) String() string {
	return string(m)
}

// IsValid reports whether the value matches a known MemberStatus.
func (m MemberStatus) IsValid() bool {
	for _, candidate := range validMemberStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsActiveMember reports whether the status code grants member pricing.
func (m MemberStatus) IsActiveMember() bool {
	for _, candidate := range activeMemberStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ActiveMemberStatuses returns the codes that grant member pricing.
func ActiveMemberStatuses() []MemberStatus {
	out := make([]MemberStatus, len(activeMemberStatuses))
	copy(out, activeMemberStatuses)
	return out
}

// ParseMemberStatus converts raw input into a MemberStatus.
func ParseMemberStatus(value string) (MemberStatus, error) {
	for _, candidate := range validMemberStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member status %q", value)
}

// StatusForTier maps a membership tier to the directory status it grants.
func StatusForTier(tier MembershipTier) MemberStatus {
	switch tier {
	case MembershipTierPro:
		return MemberStatusPro
	case MembershipTierAssociation:
		return MemberStatusAssociation
	default:
		return MemberStatusSimple
	}
}
