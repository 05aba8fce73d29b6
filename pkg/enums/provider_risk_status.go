package enums

import "fmt"

// ProviderRiskStatus classifies a provider organization for matching.
// Suspended providers never receive assignments; on_watch providers are
// matched but flagged in the funnel.
type ProviderRiskStatus string

const (
	ProviderRiskStatusActive    ProviderRiskStatus = "active"
	ProviderRiskStatusOnWatch   ProviderRiskStatus = "on_watch"
	ProviderRiskStatusSuspended ProviderRiskStatus = "suspended"
)

var validProviderRiskStatuses = []ProviderRiskStatus{
	ProviderRiskStatusActive,
	ProviderRiskStatusOnWatch,
	ProviderRiskStatusSuspended,
}

// String implements fmt.Stringer.
func (s ProviderRiskStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProviderRiskStatus.
func (s ProviderRiskStatus) IsValid() bool {
	for _, candidate := range validProviderRiskStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProviderRiskStatus converts raw input into a ProviderRiskStatus.
func ParseProviderRiskStatus(value string) (ProviderRiskStatus, error) {
	for _, candidate := range validProviderRiskStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider risk status %q", value)
}
