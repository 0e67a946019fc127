package enums

import "fmt"

// SubjectType identifies who owns an entitlement.
type SubjectType string

const (
	SubjectTypeUser        SubjectType = "user"
	SubjectTypeAssociation SubjectType = "association"
)

var validSubjectTypes = []SubjectType{
	SubjectTypeUser,
	SubjectTypeAssociation,
}

// String implements fmt.Stringer.
func (s SubjectType) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known SubjectType.
func (s SubjectType) IsValid() bool {
	for _, candidate := range validSubjectTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubjectType converts raw input into a SubjectType.
func ParseSubjectType(value string) (SubjectType, error) {
	for _, candidate := range validSubjectTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subject type %q", value)
}
