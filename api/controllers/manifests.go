package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/api/middleware"
	"github.com/angelmondragon/branchledger/api/responses"
	"github.com/angelmondragon/branchledger/api/validators"
	"github.com/angelmondragon/branchledger/internal/manifests"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func operatorFrom(r *http.Request) manifests.Operator {
	return manifests.Operator{
		ID:   middleware.OperatorIDFromContext(r.Context()),
		Role: middleware.OperatorRoleFromContext(r.Context()),
	}
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}

// CreateManifest opens a new manifest and issues its number.
func CreateManifest(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}

		var payload createManifestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(operatorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Location", "/api/v1/manifests/"+entry.ID.String())
		responses.WriteVersioned(w, http.StatusCreated, entry.Version, entry)
	}
}

func ListManifests(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}

		query := r.URL.Query()
		params := manifests.ListParams{
			Direction: enums.EntryDirection(normalizeLower(query.Get("direction"))),
			Status:    enums.EntryStatus(normalizeLower(query.Get("status"))),
			Cursor:    query.Get("cursor"),
		}
		var err error
		if params.OriginBranchID, err = validators.ParseQueryUUID(r, "origin_branch_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Year, err = validators.ParseQueryInt(r, "year", 0, 2000, 9999); err != nil {
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

func GetManifest(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "manifestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteVersioned(w, http.StatusOK, entry.Version, entry)
	}
}

func GetManifestByNumber(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		number := validators.SanitizeString(chi.URLParam(r, "number"), 64)
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "manifest number required"))
			return
		}
		entry, err := svc.GetByNumber(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteVersioned(w, http.StatusOK, entry.Version, entry)
	}
}

// DeleteManifest is the administrative hard delete.
func DeleteManifest(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "manifestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), manifests.DeleteInput{EntryID: id, Operator: operatorFrom(r)}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func AddManifestItem(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, expected, ok := entryTarget(w, r, logg)
		if !ok {
			return
		}
		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.AddItem(r.Context(), manifests.AddItemInput{
			EntryID:         id,
			Item:            payload.toInput(),
			ExpectedVersion: expected,
			Operator:        operatorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteVersioned(w, http.StatusCreated, entry.Version, entry)
	}
}

func UpdateManifestItem(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, expected, ok := entryTarget(w, r, logg)
		if !ok {
			return
		}
		ref, err := itemRefFromPath(chi.URLParam(r, "itemRef"), r.URL.Query().Get("description"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.UpdateItem(r.Context(), manifests.UpdateItemInput{
			EntryID:         id,
			Item:            ref,
			Patch:           payload.toPatch(),
			ExpectedVersion: expected,
			Operator:        operatorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteVersioned(w, http.StatusOK, entry.Version, entry)
	}
}

func RemoveManifestItem(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, expected, ok := entryTarget(w, r, logg)
		if !ok {
			return
		}
		ref, err := itemRefFromPath(chi.URLParam(r, "itemRef"), r.URL.Query().Get("description"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.RemoveItem(r.Context(), manifests.RemoveItemInput{
			EntryID:         id,
			Item:            ref,
			ExpectedVersion: expected,
			Operator:        operatorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteVersioned(w, http.StatusOK, entry.Version, entry)
	}
}

// DispatchManifestItem allocates part of an item toward a customer or branch.
func DispatchManifestItem(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, expected, ok := entryTarget(w, r, logg)
		if !ok {
			return
		}
		var payload dispatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(id, expected, operatorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Dispatch(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteVersioned(w, http.StatusCreated, result.Entry.Version, result)
	}
}

func LinkManifestVehicle(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, expected, ok := entryTarget(w, r, logg)
		if !ok {
			return
		}
		var payload linkVehicleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(id, expected, operatorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.LinkVehicle(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteVersioned(w, http.StatusOK, entry.Version, entry)
	}
}

func ManifestTotals(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "manifestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		totals, err := svc.Totals(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, totals)
	}
}

func ManifestAudit(svc manifests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("manifest"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "manifestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Audit(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// entryTarget reads the manifest id and the optional If-Match version shared
// by every mutating manifest route.
func entryTarget(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, *int, bool) {
	entryID, err := validators.ParseUUIDParam(r, "manifestId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, nil, false
	}
	expected, err := validators.ParseIfMatch(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, nil, false
	}
	return entryID, expected, true
}
