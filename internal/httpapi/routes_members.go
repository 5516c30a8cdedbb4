package httpapi

import (
	"net/http"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
	"memberdesk/backend/internal/service"
)

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	request := service.MembersListing.ResolveRequest(r)
	paged, err := a.service.ListMembers(r.Context(), authCtx, request, r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListing(w, r, service.MembersListing, paged)
}

func (a *API) handleNextMembershipNumber(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	number, err := a.service.NextMembershipNumber(r.Context(), authCtx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"membership_number": number})
}

func (a *API) handleMemberByNumber(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, rawNumber string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	number, ok := parseInt64(rawNumber)
	if !ok {
		notFound(w)
		return
	}
	member, err := a.service.GetMemberByNumber(r.Context(), authCtx, number)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (a *API) handleMemberByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	rawID, _ := parseResourceID(segments)
	memberID, ok := parseInt64(rawID)
	if !ok {
		notFound(w)
		return
	}

	switch {
	case len(segments) == 3:
		a.dispatchMemberByIDMethod(w, r, authCtx, memberID)
	case len(segments) == 4 && isSubresourceRoute(segments, "loss"):
		a.recordMembershipLoss(w, r, authCtx, memberID)
	case len(segments) == 4 && isSubresourceRoute(segments, "certificate"):
		a.sendCertificate(w, r, authCtx, memberID)
	case len(segments) == 4 && isSubresourceRoute(segments, "shares"):
		a.getShareInformation(w, r, authCtx, memberID)
	case len(segments) == 5 && isSubresourceRoute(segments, "dues"):
		a.getMemberDues(w, r, authCtx, memberID, segments[4])
	default:
		notFound(w)
	}
}

func (a *API) dispatchMemberByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, memberID int64) {
	switch r.Method {
	case http.MethodGet:
		a.getMemberByID(w, r, authCtx, memberID)
	case http.MethodPut:
		a.updateMemberByID(w, r, authCtx, memberID)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) getMemberByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, memberID int64) {
	member, err := a.service.GetMember(r.Context(), authCtx, memberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (a *API) updateMemberByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, memberID int64) {
	var input domain.Member
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	updated, err := a.service.UpdateMember(r.Context(), authCtx, memberID, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) recordMembershipLoss(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, memberID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var input service.MembershipLossInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	updated, err := a.service.RecordMembershipLoss(r.Context(), authCtx, memberID, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) sendCertificate(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, memberID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	updated, err := a.service.SendCertificate(r.Context(), authCtx, memberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) getShareInformation(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, memberID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	info, err := a.service.ShareInformation(r.Context(), authCtx, memberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) getMemberDues(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, memberID int64, rawYear string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	year, ok := parseYear(rawYear)
	if !ok {
		notFound(w)
		return
	}
	account, err := a.service.GetMemberDues(r.Context(), authCtx, memberID, year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
