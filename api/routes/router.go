package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omaldonado/crewdispatch-backend/api/controllers"
	"github.com/omaldonado/crewdispatch-backend/api/middleware"
	"github.com/omaldonado/crewdispatch-backend/internal/assignments"
	"github.com/omaldonado/crewdispatch-backend/internal/funnel"
	"github.com/omaldonado/crewdispatch-backend/internal/negotiation"
	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	"github.com/omaldonado/crewdispatch-backend/pkg/db"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	assignmentsSvc assignments.Service,
	negotiationSvc negotiation.Service,
	funnelSvc funnel.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/assignments", func(r chi.Router) {
		r.Post("/direct", controllers.CreateAssignment(assignmentsSvc, logg, enums.AssignmentModeDirect))
		r.Post("/offer", controllers.CreateAssignment(assignmentsSvc, logg, enums.AssignmentModeOffer))
		r.Post("/broadcast", controllers.CreateAssignment(assignmentsSvc, logg, enums.AssignmentModeBroadcast))
		r.Post("/auto-accept", controllers.CreateAssignment(assignmentsSvc, logg, enums.AssignmentModeAutoAccept))
		r.Get("/", controllers.ListAssignments(assignmentsSvc, logg))

		r.Route("/{assignmentId}", func(r chi.Router) {
			r.Get("/", controllers.GetAssignment(assignmentsSvc, logg))
			r.Post("/accept", controllers.AcceptAssignment(assignmentsSvc, logg))
			r.Post("/decline", controllers.DeclineAssignment(assignmentsSvc, logg))
			r.Post("/cancel", controllers.CancelAssignment(assignmentsSvc, logg))
			r.Get("/funnel", controllers.AssignmentFunnel(funnelSvc, logg))
			r.Route("/negotiations", func(r chi.Router) {
				r.Post("/", controllers.ProposeDate(negotiationSvc, logg))
				r.Get("/", controllers.ListNegotiations(negotiationSvc, logg))
			})
		})
	})

	return r
}
