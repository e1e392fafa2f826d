package controllers

import (
	"net/http"

	"github.com/angelmondragon/branchledger/api/middleware"
	"github.com/angelmondragon/branchledger/api/responses"
	"github.com/angelmondragon/branchledger/api/validators"
	"github.com/angelmondragon/branchledger/internal/followups"
	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/logger"
)

// ListFollowUps returns pending follow-ups, open ones by default.
func ListFollowUps(svc followups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("follow-up"))
			return
		}

		query := r.URL.Query()
		params := followups.ListParams{
			Status: enums.FollowUpStatus(normalizeLower(query.Get("status"))),
			Kind:   enums.FollowUpKind(normalizeLower(query.Get("kind"))),
			Cursor: query.Get("cursor"),
		}
		if !query.Has("status") {
			params.Status = enums.FollowUpStatusOpen
		}
		var err error
		if params.EntryID, err = validators.ParseQueryUUID(r, "entry_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Limit, err = validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type resolveFollowUpRequest struct {
	Note string `json:"note,omitempty" validate:"max=2000"`
}

func ResolveFollowUp(svc followups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("follow-up"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "followUpId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload resolveFollowUpRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		resolved, err := svc.Resolve(r.Context(), followups.ResolveInput{
			ID:         id,
			OperatorID: middleware.OperatorIDFromContext(r.Context()),
			Note:       payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolved)
	}
}
