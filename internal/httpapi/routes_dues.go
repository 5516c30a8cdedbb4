package httpapi

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"memberdesk/backend/internal/ports"
	"memberdesk/backend/internal/service"
)

// handleDues serves /api/dues/{year}/... for the invoicing run of one
// business year.
func (a *API) handleDues(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	rawYear, _ := parseResourceID(segments)
	year, ok := parseYear(rawYear)
	if !ok {
		notFound(w)
		return
	}

	switch {
	case len(segments) == 4 && isSubresourceRoute(segments, "invoices"):
		a.listDuesInvoices(w, r, authCtx, year)
	case len(segments) == 4 && isSubresourceRoute(segments, "invoices.csv"):
		a.exportDuesInvoices(w, r, authCtx, year)
	case len(segments) == 4 && isSubresourceRoute(segments, "batch"):
		a.invoiceDuesBatch(w, r, authCtx, year)
	case len(segments) == 6 && isSubresourceRoute(segments, "members"):
		memberID, ok := parseInt64(segments[4])
		if !ok {
			notFound(w)
			return
		}
		a.handleMemberDuesAction(w, r, authCtx, year, memberID, segments[5])
	default:
		notFound(w)
	}
}

func (a *API) handleMemberDuesAction(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, year int, memberID int64, action string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	switch action {
	case "invoice":
		delivery, err := a.service.InvoiceDues(r.Context(), authCtx, year, memberID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, delivery)
	case "reduction":
		var input reductionRequest
		if err := decodeJSON(w, r, &input); err != nil {
			writeDecodeError(w, err)
			return
		}
		result, err := a.service.ReduceDues(r.Context(), authCtx, year, memberID, input.Amount)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "payments":
		var input service.PaymentInput
		if err := decodeJSON(w, r, &input); err != nil {
			writeDecodeError(w, err)
			return
		}
		dues, err := a.service.RecordDuesPayment(r.Context(), authCtx, year, memberID, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dues)
	default:
		notFound(w)
	}
}

type reductionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type batchRequest struct {
	Count int `json:"count"`
}

type batchResponse struct {
	Year       int                       `json:"year"`
	Deliveries []service.InvoiceDelivery `json:"deliveries"`
}

func (a *API) invoiceDuesBatch(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, year int) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var input batchRequest
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	deliveries, err := a.service.InvoiceDuesBatch(r.Context(), authCtx, year, input.Count)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if deliveries == nil {
		deliveries = []service.InvoiceDelivery{}
	}
	writeJSON(w, http.StatusOK, batchResponse{Year: year, Deliveries: deliveries})
}

func (a *API) listDuesInvoices(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, year int) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	request := service.InvoicesListing.ResolveRequest(r)
	paged, err := a.service.ListDuesInvoices(r.Context(), authCtx, year, request)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListing(w, r, service.InvoicesListing, paged)
}

func (a *API) exportDuesInvoices(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, year int) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	body, err := a.service.ExportDuesInvoices(r.Context(), authCtx, year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCSV(w, fmt.Sprintf("dues-invoices-%d.csv", year), body)
}
