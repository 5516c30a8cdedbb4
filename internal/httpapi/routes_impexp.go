package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"memberdesk/backend/internal/ports"
)

func (a *API) handleImportMembers(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCSVBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("request body too large (max %d bytes)", maxCSVBodyBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	result, err := a.service.ImportMembers(r.Context(), authCtx, raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleExportMembers(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	acceptedOnly, _ := strconv.ParseBool(r.URL.Query().Get("accepted"))
	body, err := a.service.ExportMembers(r.Context(), authCtx, acceptedOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	filename := "applications.csv"
	if acceptedOnly {
		filename = "members.csv"
	}
	writeCSV(w, filename, body)
}
