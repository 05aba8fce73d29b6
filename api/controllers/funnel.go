package controllers

import (
	"net/http"

	"github.com/omaldonado/crewdispatch-backend/api/responses"
	"github.com/omaldonado/crewdispatch-backend/internal/funnel"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
)

// AssignmentFunnel returns the transparency funnel recorded when the
// assignment was created.
func AssignmentFunnel(svc funnel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Query(r.Context(), assignmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
