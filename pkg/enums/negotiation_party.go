package enums

import "fmt"

// NegotiationParty identifies who proposed an execution date.
type NegotiationParty string

const (
	NegotiationPartyCustomer NegotiationParty = "customer"
	NegotiationPartyProvider NegotiationParty = "provider"
	NegotiationPartyOperator NegotiationParty = "operator"
)

var validNegotiationParties = []NegotiationParty{
	NegotiationPartyCustomer,
	NegotiationPartyProvider,
	NegotiationPartyOperator,
}

// String implements fmt.Stringer.
func (p NegotiationParty) String() string {
	return string(p)
}

// IsValid reports whether the value is a known NegotiationParty.
func (p NegotiationParty) IsValid() bool {
	for _, candidate := range validNegotiationParties {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseNegotiationParty converts raw input into a NegotiationParty.
func ParseNegotiationParty(value string) (NegotiationParty, error) {
	for _, candidate := range validNegotiationParties {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid negotiation party %q", value)
}
