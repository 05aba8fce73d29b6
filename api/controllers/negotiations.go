package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/omaldonado/crewdispatch-backend/api/responses"
	"github.com/omaldonado/crewdispatch-backend/api/validators"
	"github.com/omaldonado/crewdispatch-backend/internal/negotiation"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
)

type proposeDateRequest struct {
	ProposedDate string  `json:"proposedDate" validate:"required"`
	ProposedBy   string  `json:"proposedBy" validate:"required,oneof=customer provider operator"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// ProposeDate records one round of date re-negotiation on a pending
// assignment.
func ProposeDate(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req proposeDateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		proposedDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ProposedDate))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "proposed date must be RFC 3339"))
			return
		}

		created, err := svc.Propose(r.Context(), negotiation.ProposeInput{
			AssignmentID: assignmentID,
			ProposedDate: proposedDate.UTC(),
			ProposedBy:   enums.NegotiationParty(req.ProposedBy),
			Notes:        req.Notes,
			Actor:        actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListNegotiations returns the negotiation history for an assignment in
// round order.
func ListNegotiations(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByAssignment(r.Context(), assignmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
