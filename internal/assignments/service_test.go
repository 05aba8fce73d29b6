package assignments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/internal/matching"
	"github.com/omaldonado/crewdispatch-backend/internal/tenant"
	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

var frozenNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type serviceTestEnv struct {
	db       *gorm.DB
	svc      *service
	outbox   *stubOutboxPublisher
	funnel   *stubFunnelRecorder
	resolver *stubPolicyResolver
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	db := setupAssignmentTestDB(t)
	outboxStub := &stubOutboxPublisher{}
	funnelStub := &stubFunnelRecorder{}
	resolver := &stubPolicyResolver{policy: tenant.Policy{
		CountryCode:           "CL",
		BusinessUnit:          "home-services",
		ProviderAutoAccept:    false,
		OfferTimeoutHours:     4,
		MaxNegotiationRounds:  3,
		ProjectAssignmentMode: enums.ProjectAssignmentModeManual,
	}}
	cfg := config.MatchingConfig{MaxSearchRadiusKM: 50}

	svcIface, err := NewService(
		NewRepository(db),
		stubTxRunner{db: db},
		outboxStub,
		resolver,
		matching.NewFilter(cfg),
		matching.NewScorer(cfg),
		funnelStub,
		logger.New(logger.Options{ServiceName: "test"}),
	)
	require.NoError(t, err)
	svc, ok := svcIface.(*service)
	require.True(t, ok)
	svc.now = func() time.Time { return frozenNow }
	return &serviceTestEnv{
		db:       db,
		svc:      svc,
		outbox:   outboxStub,
		funnel:   funnelStub,
		resolver: resolver,
	}
}

func (e *serviceTestEnv) seedOrder(t *testing.T, mutate ...func(*models.ServiceOrder)) models.ServiceOrder {
	t.Helper()
	order := models.ServiceOrder{
		ID:             uuid.New(),
		OrderNumber:    1001,
		CountryCode:    "CL",
		BusinessUnit:   "home-services",
		RequiredSkills: []string{"ELECTRICAL"},
		ServiceAddress: types.ServiceAddress{
			City:     "Santiago",
			Country:  "CL",
			Location: types.GeoPoint{Lat: -33.45, Lng: -70.66},
		},
		RequestedDate: frozenNow.Add(72 * time.Hour),
		Status:        enums.ServiceOrderStatusOpen,
	}
	for _, fn := range mutate {
		fn(&order)
	}
	require.NoError(t, e.db.Create(&order).Error)
	return order
}

func (e *serviceTestEnv) seedProvider(t *testing.T, name string, mutate ...func(*models.Provider)) models.Provider {
	t.Helper()
	provider := models.Provider{
		ID:               uuid.New(),
		Name:             name,
		CountryCode:      "CL",
		BusinessUnit:     "home-services",
		Tier:             2,
		RiskStatus:       enums.ProviderRiskStatusActive,
		PerformanceScore: 4.0,
		OnboardedAt:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, fn := range mutate {
		fn(&provider)
	}
	require.NoError(t, e.db.Create(&provider).Error)
	team := models.WorkTeam{
		ID:             uuid.New(),
		ProviderID:     provider.ID,
		Name:           name + " crew",
		Skills:         []string{"ELECTRICAL", "PLUMBING"},
		BaseLocation:   types.GeoPoint{Lat: -33.44, Lng: -70.65},
		WindowCapacity: 3,
		OpenAssignments: 1,
	}
	require.NoError(t, e.db.Create(&team).Error)
	return provider
}

func (e *serviceTestEnv) eventTypes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(e.outbox.events))
	for _, event := range e.outbox.events {
		out = append(out, event.EventType)
	}
	return out
}

func TestCreateOfferAssignmentSetsDeadline(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t)
	provider := env.seedProvider(t, "Norte")

	result, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{provider.ID},
		Mode:           enums.AssignmentModeOffer,
	})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.False(t, result.AutoAccepted)

	created := result.Assignments[0]
	assert.Equal(t, enums.AssignmentStatusPending, created.Status)
	assert.Equal(t, enums.AssignmentModeOffer, created.Mode)
	require.NotNil(t, created.OfferExpiresAt)
	assert.Equal(t, frozenNow.Add(4*time.Hour), created.OfferExpiresAt.UTC())
	assert.Greater(t, created.Score, 0.0)
	require.NotNil(t, created.ProposedDate)
	assert.Equal(t, order.RequestedDate.UTC(), created.ProposedDate.UTC())

	assert.Equal(t, []enums.OutboxEventType{enums.EventAssignmentCreated}, env.eventTypes())
	require.Len(t, env.funnel.inputs, 1)
	require.NotNil(t, env.funnel.inputs[0].Breakdown)
	assert.NotEmpty(t, env.funnel.inputs[0].Rationale)
	assert.NotEmpty(t, env.funnel.inputs[0].Stages)
}

func TestCreateDirectAssignmentAutoAccepts(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t)
	provider := env.seedProvider(t, "Norte")

	result, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{provider.ID},
		Mode:           enums.AssignmentModeDirect,
	})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.True(t, result.AutoAccepted)

	created := result.Assignments[0]
	assert.Equal(t, enums.AssignmentStatusAccepted, created.Status)
	assert.Nil(t, created.OfferExpiresAt)
	require.NotNil(t, created.AcceptedAt)
	require.NotNil(t, created.AcceptedDate)
	assert.Equal(t, order.RequestedDate.UTC(), created.AcceptedDate.UTC())

	assert.Equal(t, []enums.OutboxEventType{
		enums.EventAssignmentCreated,
		enums.EventAssignmentAccepted,
	}, env.eventTypes())
}

func TestCreateBroadcastCreatesPendingPerProvider(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t)
	strong := env.seedProvider(t, "Norte", func(p *models.Provider) { p.PerformanceScore = 4.8 })
	weak := env.seedProvider(t, "Sur", func(p *models.Provider) { p.PerformanceScore = 2.0 })

	result, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{weak.ID, strong.ID},
		Mode:           enums.AssignmentModeBroadcast,
	})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 2)
	assert.False(t, result.AutoAccepted)

	// rank order: highest score first
	assert.Equal(t, strong.ID, result.Assignments[0].ProviderID)
	assert.Equal(t, weak.ID, result.Assignments[1].ProviderID)
	for _, created := range result.Assignments {
		assert.Equal(t, enums.AssignmentStatusPending, created.Status)
		require.NotNil(t, created.OfferExpiresAt)
	}
	// only the runner-up carries filter reasons on the row
	assert.Empty(t, result.Assignments[0].FilterReasons)

	require.Len(t, env.funnel.inputs, 2)
	assert.NotNil(t, env.funnel.inputs[0].Breakdown)
	assert.Nil(t, env.funnel.inputs[1].Breakdown)
}

func TestCreateOfferUpgradesToAutoAcceptByPolicy(t *testing.T) {
	env := newServiceTestEnv(t)
	env.resolver.policy.ProviderAutoAccept = true
	order := env.seedOrder(t)
	first := env.seedProvider(t, "Norte", func(p *models.Provider) { p.PerformanceScore = 4.8 })
	second := env.seedProvider(t, "Sur")

	result, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{first.ID, second.ID},
		Mode:           enums.AssignmentModeOffer,
	})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.True(t, result.AutoAccepted)
	assert.Equal(t, enums.AssignmentModeAutoAccept, result.Assignments[0].Mode)
	assert.Equal(t, enums.AssignmentStatusAccepted, result.Assignments[0].Status)
	assert.Equal(t, first.ID, result.Assignments[0].ProviderID)
}

func TestCreateValidation(t *testing.T) {
	env := newServiceTestEnv(t)
	ctx := context.Background()
	providerID := uuid.New()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing order", CreateInput{ProviderIDs: []uuid.UUID{providerID}, Mode: enums.AssignmentModeOffer}},
		{"invalid mode", CreateInput{ServiceOrderID: uuid.New(), ProviderIDs: []uuid.UUID{providerID}, Mode: "hybrid"}},
		{"no providers", CreateInput{ServiceOrderID: uuid.New(), Mode: enums.AssignmentModeOffer}},
		{"broadcast needs two", CreateInput{ServiceOrderID: uuid.New(), ProviderIDs: []uuid.UUID{providerID}, Mode: enums.AssignmentModeBroadcast}},
		{"direct takes one", CreateInput{ServiceOrderID: uuid.New(), ProviderIDs: []uuid.UUID{providerID, uuid.New()}, Mode: enums.AssignmentModeDirect}},
		{"duplicate providers", CreateInput{ServiceOrderID: uuid.New(), ProviderIDs: []uuid.UUID{providerID, providerID}, Mode: enums.AssignmentModeOffer}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestCreateRejectsClosedOrder(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t, func(o *models.ServiceOrder) { o.Status = enums.ServiceOrderStatusCompleted })
	provider := env.seedProvider(t, "Norte")

	_, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{provider.ID},
		Mode:           enums.AssignmentModeOffer,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCreateRejectsSecondWinner(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t)
	provider := env.seedProvider(t, "Norte")
	seedAssignment(t, env.db, func(a *models.Assignment) {
		a.ServiceOrderID = order.ID
		a.Status = enums.AssignmentStatusAccepted
	})

	_, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{provider.ID},
		Mode:           enums.AssignmentModeOffer,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCreateReportsFilterReasonsWhenPoolEmpties(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t)
	foreign := env.seedProvider(t, "Lima", func(p *models.Provider) { p.CountryCode = "PE" })

	_, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{foreign.ID},
		Mode:           enums.AssignmentModeOffer,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, details["filterReasons"])
}

func TestCreateDirectRejectsTenantMismatch(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t)
	foreign := env.seedProvider(t, "Lima", func(p *models.Provider) { p.CountryCode = "PE" })

	_, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{foreign.ID},
		Mode:           enums.AssignmentModeDirect,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Message(), "country mismatch")
}

func TestAcceptSettlesBroadcastSiblings(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.seedOrder(t)
	winner := env.seedProvider(t, "Norte", func(p *models.Provider) { p.PerformanceScore = 4.8 })
	loser := env.seedProvider(t, "Sur")

	result, err := env.svc.Create(context.Background(), CreateInput{
		ServiceOrderID: order.ID,
		ProviderIDs:    []uuid.UUID{winner.ID, loser.ID},
		Mode:           enums.AssignmentModeBroadcast,
	})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 2)
	env.outbox.events = nil

	accepted, err := env.svc.Accept(context.Background(), AcceptInput{AssignmentID: result.Assignments[0].ID})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	sibling, err := env.svc.Get(context.Background(), result.Assignments[1].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusDeclined, sibling.Status)
	require.NotNil(t, sibling.DeclineReason)
	assert.Equal(t, broadcastSettlementReason, *sibling.DeclineReason)

	assert.Equal(t, []enums.OutboxEventType{
		enums.EventAssignmentAutoDeclined,
		enums.EventAssignmentAccepted,
	}, env.eventTypes())
}

func TestAcceptConflictsAfterSettlement(t *testing.T) {
	env := newServiceTestEnv(t)
	accepted := seedAssignment(t, env.db, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusAccepted
	})

	_, err := env.svc.Accept(context.Background(), AcceptInput{AssignmentID: accepted.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, "already accepted", typed.Message())
}

func TestAcceptRejectsTerminalStates(t *testing.T) {
	env := newServiceTestEnv(t)
	declined := seedAssignment(t, env.db, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusDeclined
	})

	_, err := env.svc.Accept(context.Background(), AcceptInput{AssignmentID: declined.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestDeclineRequiresReason(t *testing.T) {
	env := newServiceTestEnv(t)
	pending := seedAssignment(t, env.db)

	_, err := env.svc.Decline(context.Background(), DeclineInput{AssignmentID: pending.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestDeclinePendingAssignment(t *testing.T) {
	env := newServiceTestEnv(t)
	pending := seedAssignment(t, env.db)

	declined, err := env.svc.Decline(context.Background(), DeclineInput{
		AssignmentID: pending.ID,
		Reason:       "No crew available that week",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusDeclined, declined.Status)
	require.NotNil(t, declined.DeclineReason)
	assert.Equal(t, "No crew available that week", *declined.DeclineReason)
	assert.Equal(t, []enums.OutboxEventType{enums.EventAssignmentDeclined}, env.eventTypes())
}

func TestDeclineRejectsAcceptedAssignment(t *testing.T) {
	env := newServiceTestEnv(t)
	accepted := seedAssignment(t, env.db, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusAccepted
	})

	_, err := env.svc.Decline(context.Background(), DeclineInput{
		AssignmentID: accepted.ID,
		Reason:       "changed my mind",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelPendingOnly(t *testing.T) {
	env := newServiceTestEnv(t)
	pending := seedAssignment(t, env.db)

	cancelled, err := env.svc.Cancel(context.Background(), CancelInput{AssignmentID: pending.ID, Reason: "customer withdrew"})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusCancelled, cancelled.Status)
	assert.Equal(t, []enums.OutboxEventType{enums.EventAssignmentCancelled}, env.eventTypes())

	_, err = env.svc.Cancel(context.Background(), CancelInput{AssignmentID: pending.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestGetUnknownAssignment(t *testing.T) {
	env := newServiceTestEnv(t)

	_, err := env.svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

type stubTxRunner struct {
	db *gorm.DB
}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubFunnelRecorder struct {
	inputs []funnelRecordInput
}

func (s *stubFunnelRecorder) Record(ctx context.Context, tx *gorm.DB, input funnelRecordInput) error {
	s.inputs = append(s.inputs, input)
	return nil
}

type stubPolicyResolver struct {
	policy tenant.Policy
}

func (s *stubPolicyResolver) Resolve(ctx context.Context, countryCode string) (tenant.Policy, error) {
	return s.policy, nil
}
