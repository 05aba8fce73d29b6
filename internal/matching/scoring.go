package matching

import (
	"sort"
	"strings"

	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// Sub-score ceilings. The weights are baked into each scale so the total is
// on a 0-100 scale without a second weighting pass.
const (
	maxSkillMatchScore   = 30.0
	maxAvailabilityScore = 20.0
	maxDistanceScore     = 20.0
	maxPerformanceScore  = 20.0
	maxWorkloadScore     = 10.0

	maxPerformanceRating = 5.0
)

// Scorer computes the fitness breakdown for filtered candidates.
type Scorer struct {
	maxRadiusKM float64
}

// NewScorer builds a scorer with the configured search radius, which bounds
// the distance sub-score.
func NewScorer(cfg config.MatchingConfig) *Scorer {
	return &Scorer{maxRadiusKM: float64(cfg.MaxSearchRadiusKM)}
}

// Score computes the five sub-scores for one candidate.
func (s *Scorer) Score(order models.ServiceOrder, c Candidate) types.ScoringDetails {
	return types.ScoringDetails{
		SkillMatch:   types.Round2(s.skillMatch(order.RequiredSkills, c.Team.Skills)),
		Availability: types.Round2(s.availability(c.Team)),
		Distance:     types.Round2(s.distance(order, c.Team)),
		Performance:  types.Round2(s.performance(c.Provider)),
		Workload:     types.Round2(s.workload(c.Team)),
	}
}

// Rank scores every candidate and orders them best-first. Ties are broken by
// provider tier (lower wins), then earliest onboarding date, then provider id
// so repeated runs over unchanged input produce the same order.
func (s *Scorer) Rank(order models.ServiceOrder, candidates []Candidate) []ScoredCandidate {
	ranked := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		details := s.Score(order, c)
		ranked = append(ranked, ScoredCandidate{
			Candidate: c,
			Details:   details,
			Score:     details.Total(),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Provider.Tier != b.Provider.Tier {
			return a.Provider.Tier < b.Provider.Tier
		}
		if !a.Provider.OnboardedAt.Equal(b.Provider.OnboardedAt) {
			return a.Provider.OnboardedAt.Before(b.Provider.OnboardedAt)
		}
		return a.Provider.ID.String() < b.Provider.ID.String()
	})

	return ranked
}

// skillMatch is proportional to the fraction of required skills the team
// declares. A full match always scores strictly higher than a partial one.
func (s *Scorer) skillMatch(required, declared []string) float64 {
	if len(required) == 0 {
		return maxSkillMatchScore
	}
	declaredSet := make(map[string]struct{}, len(declared))
	for _, skill := range declared {
		declaredSet[strings.ToUpper(strings.TrimSpace(skill))] = struct{}{}
	}
	matched := 0
	for _, skill := range required {
		if _, ok := declaredSet[strings.ToUpper(strings.TrimSpace(skill))]; ok {
			matched++
		}
	}
	return maxSkillMatchScore * float64(matched) / float64(len(required))
}

// availability rewards free capacity in the requested window.
func (s *Scorer) availability(team models.WorkTeam) float64 {
	if team.WindowCapacity <= 0 {
		return 0
	}
	free := team.WindowCapacity - team.OpenAssignments
	if free <= 0 {
		return 0
	}
	return maxAvailabilityScore * float64(free) / float64(team.WindowCapacity)
}

// distance decays linearly across the search radius; closer candidates never
// score below farther ones.
func (s *Scorer) distance(order models.ServiceOrder, team models.WorkTeam) float64 {
	if s.maxRadiusKM <= 0 {
		return maxDistanceScore
	}
	km := team.BaseLocation.DistanceKM(order.ServiceAddress.Location)
	if km >= s.maxRadiusKM {
		return 0
	}
	if km < 0 {
		km = 0
	}
	return maxDistanceScore * (1 - km/s.maxRadiusKM)
}

// performance maps the externally supplied 0-5 rating onto the 0-20 scale.
func (s *Scorer) performance(provider models.Provider) float64 {
	rating := provider.PerformanceScore
	if rating < 0 {
		rating = 0
	}
	if rating > maxPerformanceRating {
		rating = maxPerformanceRating
	}
	return maxPerformanceScore * rating / maxPerformanceRating
}

// workload is the anti-starvation factor: an idle team scores the full 10,
// each open assignment halves the remainder.
func (s *Scorer) workload(team models.WorkTeam) float64 {
	open := team.OpenAssignments
	if open < 0 {
		open = 0
	}
	return maxWorkloadScore / float64(1+open)
}

// Rationale renders the operator-facing explanation for the winning candidate.
func Rationale(winner ScoredCandidate) string {
	parts := []string{}
	if winner.Provider.Tier == 1 {
		parts = append(parts, "Best tier provider")
	} else {
		parts = append(parts, "Top scoring provider")
	}
	switch {
	case winner.Provider.PerformanceScore >= 4.5:
		parts = append(parts, "excellent rating")
	case winner.Provider.PerformanceScore >= 3.5:
		parts = append(parts, "good rating")
	}
	if winner.Team.OpenAssignments == 0 {
		parts = append(parts, "full availability")
	}
	if winner.OnWatch {
		parts = append(parts, "provider on watch")
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + " with " + strings.Join(parts[1:], " and ")
}
