package httpapi

import (
	"net/http"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
	"memberdesk/backend/internal/service"
)

func (a *API) handleShares(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		memberID, ok := parseInt64(r.URL.Query().Get("member_id"))
		if !ok {
			writeError(w, http.StatusBadRequest, "member_id is required")
			return
		}
		shares, err := a.service.ListShares(r.Context(), authCtx, memberID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, shares)
	case http.MethodPost:
		var input service.AcquisitionInput
		if err := decodeJSON(w, r, &input); err != nil {
			writeDecodeError(w, err)
			return
		}
		created, err := a.service.AcquireShares(r.Context(), authCtx, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleSharesByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	rawID, _ := parseResourceID(segments)
	sharesID, ok := parseInt64(rawID)
	if !ok || len(segments) != 3 {
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		shares, err := a.service.GetShares(r.Context(), authCtx, sharesID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, shares)
	case http.MethodPut:
		var input domain.Shares
		if err := decodeJSON(w, r, &input); err != nil {
			writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateShares(r.Context(), authCtx, sharesID, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteShares(r.Context(), authCtx, sharesID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
