package httpapi

import (
	"context"
	"net/http"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
	"memberdesk/backend/internal/service"
)

func (a *API) handleApplications(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	request := service.ApplicationsListing.ResolveRequest(r)
	paged, err := a.service.ListApplications(r.Context(), authCtx, request, r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListing(w, r, service.ApplicationsListing, paged)
}

func (a *API) handleApplicationByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	rawID, _ := parseResourceID(segments)
	applicationID, ok := parseInt64(rawID)
	if !ok {
		notFound(w)
		return
	}

	if len(segments) == 3 {
		a.dispatchApplicationByIDMethod(w, r, authCtx, applicationID)
		return
	}
	if len(segments) != 4 {
		notFound(w)
		return
	}

	switch {
	case isSubresourceRoute(segments, "signature"):
		a.updateReception(w, r, authCtx, applicationID, a.service.SetSignatureReceived)
	case isSubresourceRoute(segments, "payment"):
		a.updateReception(w, r, authCtx, applicationID, a.service.SetPaymentReceived)
	case isSubresourceRoute(segments, "signature-confirmation"):
		a.sendConfirmation(w, r, authCtx, applicationID, a.service.SendSignatureConfirmation)
	case isSubresourceRoute(segments, "payment-confirmation"):
		a.sendConfirmation(w, r, authCtx, applicationID, a.service.SendPaymentConfirmation)
	case isSubresourceRoute(segments, "accept"):
		a.acceptApplication(w, r, authCtx, applicationID)
	default:
		notFound(w)
	}
}

func (a *API) dispatchApplicationByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, applicationID int64) {
	switch r.Method {
	case http.MethodGet:
		a.getMemberByID(w, r, authCtx, applicationID)
	case http.MethodPut:
		a.updateMemberByID(w, r, authCtx, applicationID)
	case http.MethodDelete:
		if err := a.service.DeleteApplication(r.Context(), authCtx, applicationID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

type receptionFunc func(ctx context.Context, auth ports.AuthContext, id int64, input service.ReceptionInput) (domain.Member, error)

func (a *API) updateReception(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, applicationID int64, update receptionFunc) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var input service.ReceptionInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	updated, err := update(r.Context(), authCtx, applicationID, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type confirmationFunc func(ctx context.Context, auth ports.AuthContext, id int64) (domain.Member, error)

func (a *API) sendConfirmation(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, applicationID int64, send confirmationFunc) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	updated, err := send(r.Context(), authCtx, applicationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type acceptRequest struct {
	MembershipDate string `json:"membership_date"`
}

func (a *API) acceptApplication(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, applicationID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var input acceptRequest
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	member, err := a.service.AcceptMember(r.Context(), authCtx, applicationID, input.MembershipDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}
