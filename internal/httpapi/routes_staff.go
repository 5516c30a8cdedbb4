package httpapi

import (
	"net/http"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

func (a *API) handleStaff(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		staff, err := a.service.ListStaff(r.Context(), authCtx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, staff)
	case http.MethodPost:
		var input domain.Staff
		if err := decodeJSON(w, r, &input); err != nil {
			writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateStaff(r.Context(), authCtx, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleStaffByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	rawID, _ := parseResourceID(segments)
	staffID, ok := parseInt64(rawID)
	if !ok || len(segments) != 3 {
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		staff, err := a.service.GetStaff(r.Context(), authCtx, staffID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, staff)
	case http.MethodPut:
		var input domain.Staff
		if err := decodeJSON(w, r, &input); err != nil {
			writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateStaff(r.Context(), authCtx, staffID, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteStaff(r.Context(), authCtx, staffID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := a.service.Statistics(r.Context(), authCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
