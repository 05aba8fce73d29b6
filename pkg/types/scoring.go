package types

import "math"

// ScoringDetails carries the named sub-scores behind an assignment's total
// score. Weights are baked into each sub-score's scale so the total is the
// plain sum on a 0-100 scale.
type ScoringDetails struct {
	SkillMatch   float64 `json:"skillMatch"`
	Availability float64 `json:"availability"`
	Distance     float64 `json:"distance"`
	Performance  float64 `json:"performance"`
	Workload     float64 `json:"workload"`
}

// Total returns the sum of the sub-scores, rounded to two decimals.
func (s ScoringDetails) Total() float64 {
	return Round2(s.SkillMatch + s.Availability + s.Distance + s.Performance + s.Workload)
}

// Round2 rounds to two decimal places so stored totals match the breakdown sum.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FunnelStage records one filtering stage for the transparency funnel.
// Surviving is always less than or equal to Entering.
type FunnelStage struct {
	Stage     string `json:"stage"`
	Entering  int    `json:"candidatesEntering"`
	Surviving int    `json:"candidatesSurviving"`
}

// ServiceAddress is the customer-site location of a service order.
type ServiceAddress struct {
	Line1      string   `json:"line1"`
	City       string   `json:"city"`
	PostalCode string   `json:"postalCode"`
	Country    string   `json:"country"`
	Location   GeoPoint `json:"location"`
}
