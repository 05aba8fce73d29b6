package matching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

func testOrder() models.ServiceOrder {
	return models.ServiceOrder{
		ID:             uuid.New(),
		CountryCode:    "CL",
		BusinessUnit:   "home-services",
		RequiredSkills: []string{"ELECTRICAL", "PLUMBING"},
		ServiceAddress: types.ServiceAddress{
			City:     "Santiago",
			Country:  "CL",
			Location: types.GeoPoint{Lat: -33.45, Lng: -70.66},
		},
		RequestedDate: time.Now().Add(72 * time.Hour),
	}
}

func testCandidate(name string, mutate ...func(*Candidate)) Candidate {
	c := Candidate{
		Provider: models.Provider{
			ID:               uuid.New(),
			Name:             name,
			CountryCode:      "CL",
			BusinessUnit:     "home-services",
			Tier:             2,
			RiskStatus:       enums.ProviderRiskStatusActive,
			PerformanceScore: 4.0,
			OnboardedAt:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		Team: models.WorkTeam{
			ID:              uuid.New(),
			Name:            name + " crew",
			Skills:          []string{"ELECTRICAL", "PLUMBING", "HVAC"},
			BaseLocation:    types.GeoPoint{Lat: -33.44, Lng: -70.65},
			WindowCapacity:  3,
			OpenAssignments: 1,
		},
	}
	for _, fn := range mutate {
		fn(&c)
	}
	return c
}

func newTestFilter() *Filter {
	return NewFilter(config.MatchingConfig{MaxSearchRadiusKM: 50})
}

func TestFilterKeepsEligibleCandidates(t *testing.T) {
	result := newTestFilter().Run(testOrder(), []Candidate{testCandidate("Norte")})

	require.Len(t, result.Survivors, 1)
	assert.Empty(t, result.Rejected)
	require.Len(t, result.Stages, 4)
	for _, stage := range result.Stages {
		assert.Equal(t, 1, stage.Entering)
		assert.Equal(t, 1, stage.Surviving)
	}
}

func TestFilterRejectsCountryMismatch(t *testing.T) {
	foreign := testCandidate("Lima SA", func(c *Candidate) {
		c.Provider.CountryCode = "PE"
	})

	result := newTestFilter().Run(testOrder(), []Candidate{foreign})

	assert.Empty(t, result.Survivors)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, StageTenant, result.Rejected[0].Stage)
	assert.Contains(t, result.Rejected[0].Reason, "country mismatch")
}

func TestFilterRejectsMissingSkills(t *testing.T) {
	unskilled := testCandidate("Sur", func(c *Candidate) {
		c.Team.Skills = []string{"PLUMBING"}
	})

	result := newTestFilter().Run(testOrder(), []Candidate{unskilled})

	assert.Empty(t, result.Survivors)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, StageSkills, result.Rejected[0].Stage)
	assert.Contains(t, result.Rejected[0].Reason, "missing ELECTRICAL")
}

func TestFilterRejectsOutsideRadius(t *testing.T) {
	remote := testCandidate("Valpo", func(c *Candidate) {
		c.Team.BaseLocation = types.GeoPoint{Lat: -36.82, Lng: -73.04} // ~430km away
	})

	result := newTestFilter().Run(testOrder(), []Candidate{remote})

	assert.Empty(t, result.Survivors)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, StageSkills, result.Rejected[0].Stage)
	assert.Contains(t, result.Rejected[0].Reason, "Outside service radius (50km)")
}

func TestFilterRejectsExhaustedCapacity(t *testing.T) {
	busy := testCandidate("Centro", func(c *Candidate) {
		c.Team.OpenAssignments = 3
	})

	result := newTestFilter().Run(testOrder(), []Candidate{busy})

	assert.Empty(t, result.Survivors)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, StageAvailability, result.Rejected[0].Stage)
}

func TestFilterRejectsSuspendedAndFlagsOnWatch(t *testing.T) {
	suspended := testCandidate("Suspendido", func(c *Candidate) {
		c.Provider.RiskStatus = enums.ProviderRiskStatusSuspended
	})
	watched := testCandidate("Observado", func(c *Candidate) {
		c.Provider.RiskStatus = enums.ProviderRiskStatusOnWatch
	})

	result := newTestFilter().Run(testOrder(), []Candidate{suspended, watched})

	require.Len(t, result.Survivors, 1)
	assert.True(t, result.Survivors[0].OnWatch)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, StageRisk, result.Rejected[0].Stage)
	assert.Equal(t, "Provider suspended", result.Rejected[0].Reason)
}

func TestFilterCapsPoolAtConfiguredLimit(t *testing.T) {
	capped := NewFilter(config.MatchingConfig{MaxSearchRadiusKM: 50, CandidatePoolLimit: 2})
	pool := []Candidate{testCandidate("A"), testCandidate("B"), testCandidate("C")}

	result := capped.Run(testOrder(), pool)

	require.Len(t, result.Survivors, 2)
	require.NotEmpty(t, result.Stages)
	assert.Equal(t, 2, result.Stages[0].Entering)
}

func TestFilterStageCountsAreNonIncreasing(t *testing.T) {
	pool := []Candidate{
		testCandidate("A"),
		testCandidate("B", func(c *Candidate) { c.Provider.CountryCode = "PE" }),
		testCandidate("C", func(c *Candidate) { c.Team.Skills = []string{"HVAC"} }),
		testCandidate("D", func(c *Candidate) { c.Team.OpenAssignments = 3 }),
		testCandidate("E", func(c *Candidate) { c.Provider.RiskStatus = enums.ProviderRiskStatusSuspended }),
	}

	result := newTestFilter().Run(testOrder(), pool)

	require.Len(t, result.Stages, 4)
	previous := len(pool)
	for _, stage := range result.Stages {
		assert.Equal(t, previous, stage.Entering)
		assert.LessOrEqual(t, stage.Surviving, stage.Entering)
		previous = stage.Surviving
	}
	assert.Equal(t, 1, result.Stages[len(result.Stages)-1].Surviving)
	assert.Len(t, result.FilterReasons(), 4)
}
