package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/api/responses"
	"github.com/omaldonado/crewdispatch-backend/api/validators"
	"github.com/omaldonado/crewdispatch-backend/internal/assignments"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/pagination"
)

type createAssignmentRequest struct {
	ServiceOrderID string   `json:"serviceOrderId" validate:"required,uuid"`
	ProviderIDs    []string `json:"providerIds" validate:"required,min=1,dive,uuid"`
	ProposedDate   *string  `json:"proposedDate" validate:"omitempty"`
}

type acceptAssignmentRequest struct {
	AcceptedDate *string `json:"acceptedDate" validate:"omitempty"`
}

type declineAssignmentRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

type cancelAssignmentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CreateAssignment runs the matching pipeline for a service order. The
// assignment mode is fixed per route rather than taken from the body.
func CreateAssignment(svc assignments.Service, logg *logger.Logger, mode enums.AssignmentMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAssignmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(req.ServiceOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service order id"))
			return
		}
		providerIDs := make([]uuid.UUID, 0, len(req.ProviderIDs))
		for _, raw := range req.ProviderIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider id"))
				return
			}
			providerIDs = append(providerIDs, id)
		}
		proposedDate, err := parseOptionalDate(req.ProposedDate, "proposedDate")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), assignments.CreateInput{
			ServiceOrderID: orderID,
			ProviderIDs:    providerIDs,
			Mode:           mode,
			ProposedDate:   proposedDate,
			Actor:          actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AcceptAssignment confirms a pending offer.
func AcceptAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req acceptAssignmentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		acceptedDate, err := parseOptionalDate(req.AcceptedDate, "acceptedDate")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Accept(r.Context(), assignments.AcceptInput{
			AssignmentID: assignmentID,
			AcceptedDate: acceptedDate,
			Actor:        actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// DeclineAssignment turns down a pending offer with a mandatory reason.
func DeclineAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req declineAssignmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Decline(r.Context(), assignments.DeclineInput{
			AssignmentID: assignmentID,
			Reason:       req.Reason,
			Actor:        actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// CancelAssignment withdraws a still-pending offer.
func CancelAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelAssignmentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		assignment, err := svc.Cancel(r.Context(), assignments.CancelInput{
			AssignmentID: assignmentID,
			Reason:       req.Reason,
			Actor:        actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// GetAssignment returns one assignment by id.
func GetAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assignmentID, err := parseAssignmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Get(r.Context(), assignmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// ListAssignments returns a cursor page filtered by order, provider, status
// or mode.
func ListAssignments(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildAssignmentFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildAssignmentFilters(r *http.Request) (assignments.ListFilters, error) {
	filters := assignments.ListFilters{}

	orderID, err := validators.ParseQueryUUID(r, "serviceOrderId")
	if err != nil {
		return filters, err
	}
	filters.ServiceOrderID = orderID

	providerID, err := validators.ParseQueryUUID(r, "providerId")
	if err != nil {
		return filters, err
	}
	filters.ProviderID = providerID

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := enums.AssignmentStatus(strings.ToLower(raw))
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("mode")); raw != "" {
		mode := enums.AssignmentMode(strings.ToLower(raw))
		if !mode.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid mode filter")
		}
		filters.Mode = &mode
	}
	return filters, nil
}

func parseAssignmentID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "assignmentId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assignment id")
	}
	return id, nil
}

func parseOptionalDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" must be RFC 3339")
	}
	utc := parsed.UTC()
	return &utc, nil
}

func actorFromRequest(r *http.Request) *outbox.ActorRef {
	userID := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	role := strings.TrimSpace(r.Header.Get("X-Actor-Role"))
	if userID == "" && role == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: role}
}
