package enums

import "fmt"

// ProofKind distinguishes the fidelity of a proof-of-payment document.
type ProofKind string

const (
	ProofKindInvoice ProofKind = "invoice"
	ProofKindReceipt ProofKind = "receipt"
)

var validProofKinds = []ProofKind{
	ProofKindInvoice,
	ProofKindReceipt,
}

// String implements fmt.Stringer.
func (p ProofKind) String() string {
	return string(p)
}

// IsValid reports whether the value matches a known ProofKind.
func (p ProofKind) IsValid() bool {
	for _, candidate := range validProofKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProofKind converts raw input into a ProofKind.
func ParseProofKind(value string) (ProofKind, error) {
	for _, candidate := range validProofKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid proof kind %q", value)
}
