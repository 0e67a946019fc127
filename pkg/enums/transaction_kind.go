package enums

import "fmt"

// TransactionKind is the closed set of entitlement-producing checkout kinds.
type TransactionKind string

const (
	TransactionKindMembership TransactionKind = "membership"
	TransactionKindTraining   TransactionKind = "training"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindMembership,
	TransactionKindTraining,
}

// String implements fmt.Stringer.
func (t TransactionKind) String() string {
	return string(t)
}

// IsValid reports whether the value matches a known TransactionKind.
func (t TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
