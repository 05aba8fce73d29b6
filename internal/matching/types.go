package matching

import (
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// Candidate is one (provider, work team) pair evaluated against a service
// order.
type Candidate struct {
	Provider models.Provider
	Team     models.WorkTeam
	OnWatch  bool
}

// Rejection captures why a candidate was excluded and at which stage.
type Rejection struct {
	Provider models.Provider
	Team     models.WorkTeam
	Stage    string
	Reason   string
}

// ScoredCandidate is a surviving candidate with its fitness breakdown.
type ScoredCandidate struct {
	Candidate
	Details types.ScoringDetails
	Score   float64
}

// FilterResult is the output of one filter pass: who survived, who was
// rejected and why, and the per-stage counts destined for the funnel record.
type FilterResult struct {
	Survivors []Candidate
	Rejected  []Rejection
	Stages    []types.FunnelStage
}

// FilterReasons renders the rejection list as ordered human-readable strings
// in the form stored on assignments and funnel records.
func (r FilterResult) FilterReasons() []string {
	reasons := make([]string, 0, len(r.Rejected))
	for _, rej := range r.Rejected {
		reasons = append(reasons, rej.Provider.Name+": "+rej.Reason)
	}
	return reasons
}
