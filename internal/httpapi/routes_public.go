package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"memberdesk/backend/internal/domain"
)

// routePublic serves the pages and documents that need no staff login.
// Documents are guarded by the codes and tokens embedded in their links.
func (a *API) routePublic(w http.ResponseWriter, r *http.Request, segments []string) bool {
	switch {
	case isExactRoute(segments, "join"):
		a.handleJoin(w, r)
	case isExactRoute(segments, "api", "applications") && r.Method == http.MethodPost:
		a.handleSubmitApplication(w, r)
	case isExactRoute(segments, "api", "auth", "login"):
		a.handleLogin(w, r)
	case len(segments) == 3 && segments[0] == "verify":
		a.handleVerifyEmail(w, r, segments[1], segments[2])
	case len(segments) == 3 && segments[0] == "applications" && segments[2] == "form.pdf":
		a.handleApplicationPDF(w, r, segments[1])
	case len(segments) == 5 && segments[0] == "dues" && segments[2] == "invoices":
		a.handleInvoicePDF(w, r, segments[1], segments[3], segments[4])
	case len(segments) == 3 && segments[0] == "certificates":
		a.handleCertificatePDF(w, r, segments[1], segments[2])
	default:
		return false
	}
	return true
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		view := a.joinForm.view(requestLocale(r))
		view.Form = domain.ApplicationForm{MembershipType: domain.MembershipTypeNormal, NumShares: 1}
		view.Fields = formFields(view.Form)
		a.joinForm.render(w, http.StatusOK, "join.html", view)
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		form := parseApplicationForm(r)
		view := a.joinForm.view(requestLocale(r))
		form.Locale = view.Locale

		member, err := a.service.SubmitApplication(r.Context(), form)
		if err != nil {
			var fields domain.FieldErrors
			if !errors.As(err, &fields) {
				writeServiceError(w, err)
				return
			}
			view.Form = form
			view.Fields = formFields(form)
			view.Errors = fields
			a.joinForm.render(w, http.StatusBadRequest, "join.html", view)
			return
		}
		view.Member = member
		a.joinForm.render(w, http.StatusCreated, "submitted.html", view)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var form domain.ApplicationForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeDecodeError(w, err)
		return
	}
	member, err := a.service.SubmitApplication(r.Context(), form)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
	ExpiresIn int64    `json:"expires_in"`
	UserID    string   `json:"user_id"`
	Roles     []string `json:"roles"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var input loginRequest
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}

	authCtx, err := a.service.Authenticate(r.Context(), input.Login, input.Password)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}

	token, err := a.tokenIssuer.Issue(authCtx, a.tokenTTL)
	if err != nil {
		writeServiceError(w, fmt.Errorf("issue token: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(a.tokenTTL.Seconds()),
		UserID:    authCtx.UserID,
		Roles:     authCtx.Roles,
	})
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request, email, code string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	member, err := a.service.ConfirmEmail(r.Context(), email, code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view := a.joinForm.view(member.Locale)
	view.Member = member
	view.FormURL = "/applications/" + url.PathEscape(code) + "/form.pdf"
	a.joinForm.render(w, http.StatusOK, "verified.html", view)
}

func (a *API) handleApplicationPDF(w http.ResponseWriter, r *http.Request, code string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pdf, err := a.service.ApplicationPDF(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePDF(w, "application.pdf", pdf)
}

func (a *API) handleInvoicePDF(w http.ResponseWriter, r *http.Request, rawYear, rawNo, token string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	year, ok := parseYear(rawYear)
	if !ok {
		notFound(w)
		return
	}
	invoiceNo, err := strconv.Atoi(strings.TrimSuffix(rawNo, ".pdf"))
	if err != nil || invoiceNo < 1 {
		notFound(w)
		return
	}
	pdf, err := a.service.InvoicePDF(r.Context(), year, invoiceNo, strings.TrimSuffix(token, ".pdf"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePDF(w, fmt.Sprintf("invoice-%d-%d.pdf", year, invoiceNo), pdf)
}

func (a *API) handleCertificatePDF(w http.ResponseWriter, r *http.Request, rawID, token string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, ok := parseInt64(rawID)
	if !ok {
		notFound(w)
		return
	}
	pdf, err := a.service.CertificatePDF(r.Context(), id, strings.TrimSuffix(token, ".pdf"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writePDF(w, "certificate.pdf", pdf)
}

