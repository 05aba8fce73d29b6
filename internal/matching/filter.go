package matching

import (
	"fmt"
	"strings"

	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// Stage names, in evaluation order. A candidate rejected at stage N is not
// evaluated at stage N+1.
const (
	StageTenant       = "tenant_match"
	StageSkills       = "zone_skills"
	StageAvailability = "availability"
	StageRisk         = "risk_status"
)

// Filter narrows a candidate pool to the teams eligible for a service order,
// recording a reason for every exclusion.
type Filter struct {
	maxRadiusKM float64
	poolLimit   int
}

// NewFilter builds a filter with the configured search radius and pool cap.
func NewFilter(cfg config.MatchingConfig) *Filter {
	return &Filter{
		maxRadiusKM: float64(cfg.MaxSearchRadiusKM),
		poolLimit:   cfg.CandidatePoolLimit,
	}
}

// Run applies the fixed stage sequence to the pool. Stage counts are captured
// even when a stage eliminates nobody, so the funnel always shows the full
// pipeline.
func (f *Filter) Run(order models.ServiceOrder, pool []Candidate) FilterResult {
	if f.poolLimit > 0 && len(pool) > f.poolLimit {
		pool = pool[:f.poolLimit]
	}
	result := FilterResult{
		Survivors: pool,
		Rejected:  []Rejection{},
		Stages:    []types.FunnelStage{},
	}

	result = f.applyStage(result, StageTenant, func(c Candidate) (bool, string) {
		if !TenantMatches(order, c.Provider) {
			return false, fmt.Sprintf("country mismatch (%s != %s)", c.Provider.CountryCode, order.CountryCode)
		}
		return true, ""
	})

	result = f.applyStage(result, StageSkills, func(c Candidate) (bool, string) {
		if missing := missingSkills(order.RequiredSkills, c.Team.Skills); len(missing) > 0 {
			return false, fmt.Sprintf("Skills not matching (missing %s)", strings.Join(missing, ", "))
		}
		if f.maxRadiusKM > 0 {
			distance := c.Team.BaseLocation.DistanceKM(order.ServiceAddress.Location)
			if distance > f.maxRadiusKM {
				return false, fmt.Sprintf("Outside service radius (%.0fkm)", f.maxRadiusKM)
			}
		}
		return true, ""
	})

	result = f.applyStage(result, StageAvailability, func(c Candidate) (bool, string) {
		if c.Team.WindowCapacity <= 0 || c.Team.OpenAssignments >= c.Team.WindowCapacity {
			return false, "No capacity in requested window"
		}
		return true, ""
	})

	result = f.applyStage(result, StageRisk, func(c Candidate) (bool, string) {
		if c.Provider.RiskStatus == enums.ProviderRiskStatusSuspended {
			return false, "Provider suspended"
		}
		return true, ""
	})

	// on_watch providers survive but carry a flag into scoring and the funnel
	for i := range result.Survivors {
		if result.Survivors[i].Provider.RiskStatus == enums.ProviderRiskStatusOnWatch {
			result.Survivors[i].OnWatch = true
		}
	}

	return result
}

func (f *Filter) applyStage(in FilterResult, stage string, admit func(Candidate) (bool, string)) FilterResult {
	entering := len(in.Survivors)
	survivors := make([]Candidate, 0, entering)
	for _, c := range in.Survivors {
		ok, reason := admit(c)
		if !ok {
			in.Rejected = append(in.Rejected, Rejection{
				Provider: c.Provider,
				Team:     c.Team,
				Stage:    stage,
				Reason:   reason,
			})
			continue
		}
		survivors = append(survivors, c)
	}
	in.Survivors = survivors
	in.Stages = append(in.Stages, types.FunnelStage{
		Stage:     stage,
		Entering:  entering,
		Surviving: len(survivors),
	})
	return in
}

// TenantMatches reports whether the provider belongs to the service order's
// country and business unit.
func TenantMatches(order models.ServiceOrder, provider models.Provider) bool {
	return strings.EqualFold(provider.CountryCode, order.CountryCode) &&
		strings.EqualFold(provider.BusinessUnit, order.BusinessUnit)
}

func missingSkills(required, declared []string) []string {
	declaredSet := make(map[string]struct{}, len(declared))
	for _, skill := range declared {
		declaredSet[strings.ToUpper(strings.TrimSpace(skill))] = struct{}{}
	}
	missing := []string{}
	for _, skill := range required {
		if _, ok := declaredSet[strings.ToUpper(strings.TrimSpace(skill))]; !ok {
			missing = append(missing, skill)
		}
	}
	return missing
}
