package tenant

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
)

// Policy is the effective per-country configuration the engine consumes.
// Values come from the country_policies row when one exists, otherwise from
// the service defaults in config.
type Policy struct {
	CountryCode           string
	BusinessUnit          string
	ProviderAutoAccept    bool
	OfferTimeoutHours     int
	MaxNegotiationRounds  int
	ProjectAssignmentMode enums.ProjectAssignmentMode
}

// Resolver loads country policies with config-backed fallbacks.
type Resolver interface {
	Resolve(ctx context.Context, countryCode string) (Policy, error)
}

type resolver struct {
	db  *gorm.DB
	cfg config.MatchingConfig
}

// NewResolver builds a policy resolver bound to the provided DB.
func NewResolver(db *gorm.DB, cfg config.MatchingConfig) Resolver {
	return &resolver{db: db, cfg: cfg}
}

func (r *resolver) Resolve(ctx context.Context, countryCode string) (Policy, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		return Policy{}, pkgerrors.New(pkgerrors.CodeValidation, "country code required")
	}

	fallback := Policy{
		CountryCode:           code,
		ProviderAutoAccept:    r.cfg.DefaultProviderAutoAccept,
		OfferTimeoutHours:     r.cfg.DefaultOfferTimeoutHours,
		MaxNegotiationRounds:  r.cfg.DefaultMaxNegotiationRounds,
		ProjectAssignmentMode: enums.ProjectAssignmentModeManual,
	}

	// country config is consumed read-only from shared storage, so the lookup
	// gets its own deadline instead of inheriting an unbounded request context
	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.CollaboratorTimeout())
	defer cancel()

	var row models.CountryPolicy
	err := r.db.WithContext(lookupCtx).Where("country_code = ?", code).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fallback, nil
		}
		return Policy{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load country policy")
	}

	policy := Policy{
		CountryCode:           row.CountryCode,
		BusinessUnit:          row.BusinessUnit,
		ProviderAutoAccept:    row.ProviderAutoAccept,
		OfferTimeoutHours:     row.OfferTimeoutHours,
		MaxNegotiationRounds:  row.MaxNegotiationRounds,
		ProjectAssignmentMode: row.ProjectAssignmentMode,
	}
	if policy.OfferTimeoutHours <= 0 {
		policy.OfferTimeoutHours = fallback.OfferTimeoutHours
	}
	if policy.MaxNegotiationRounds < 0 {
		policy.MaxNegotiationRounds = fallback.MaxNegotiationRounds
	}
	if !policy.ProjectAssignmentMode.IsValid() {
		policy.ProjectAssignmentMode = fallback.ProjectAssignmentMode
	}
	return policy, nil
}
