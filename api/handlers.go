/*
handlers.go - HTTP API handlers for the balance ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response
  and JSON conversion, and delegates every money decision to ledger.Engine.

ENDPOINTS (all under /api/users/{userID}):
  Pools:
    GET    /summary                       All pools of the user
    GET    /coverage                      Envelope allocations vs saved cash
    POST   /envelopes                     Open an envelope
    POST   /accounts                      Open a bank account

  Entries:
    POST   /expenses, /incomes            Create
    PUT    /expenses/{id}, /incomes/{id}  Update (revert old, apply new)
    POST   /transfers                     Create a transfer
    PUT    /transfers/{id}                Update a transfer
    GET    /entries/{kind}                List, ?from=&to=&planned=
    GET    /entries/{kind}/{id}           Get one
    DELETE /entries/{kind}/{id}           Delete (reverts if realized)
    POST   /entries/{kind}/{id}/realize   Planned -> realized
    POST   /entries/{kind}/{id}/unrealize Realized -> planned

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, insufficient funds, same-pool transfer
  - 404: Pool or entry not found (including other users' rows)
  - 409: Realize/unrealize in the wrong state
  - 500: Storage failures (logged)

SECURITY NOTE:
  No authentication; the user id in the path is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/pocket-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ledger.Engine
}

func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{Engine: engine}
}

func userIDParam(r *http.Request) (ledger.UserID, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("user id must be a positive integer")
	}
	return ledger.UserID(id), nil
}

func entryIDParam(r *http.Request) (ledger.EntryID, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("entry id must be a positive integer")
	}
	return ledger.EntryID(id), nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// =============================================================================
// POOL HANDLERS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}

	sum, err := h.Engine.Summary(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, "Failed to read summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

func (h *Handler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}

	cov, err := h.Engine.EnvelopeCoverage(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, "Failed to check coverage", err)
		return
	}
	writeJSON(w, http.StatusOK, CoverageDTO{
		SavedCash: cov.SavedCash,
		Allocated: cov.Allocated,
		Shortfall: cov.Shortfall,
		Covered:   cov.Covered,
	})
}

func (h *Handler) CreateEnvelope(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}
	var req CreateEnvelopeRequest
	if !decode(w, r, &req) {
		return
	}

	env, err := h.Engine.OpenEnvelope(r.Context(), userID, req.Name, req.Target)
	if err != nil {
		writeLedgerError(w, "Failed to create envelope", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnvelopeDTO(env))
}

func (h *Handler) CreateBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}
	var req CreateBankAccountRequest
	if !decode(w, r, &req) {
		return
	}

	acct, err := h.Engine.OpenBankAccount(r.Context(), userID, req.Name, req.Currency, req.OpeningBalance)
	if err != nil {
		writeLedgerError(w, "Failed to create bank account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBankAccountDTO(acct))
}

// =============================================================================
// EXPENSE AND INCOME HANDLERS
// =============================================================================

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	h.createEntry(w, r, ledger.EntryExpense)
}

func (h *Handler) CreateIncome(w http.ResponseWriter, r *http.Request) {
	h.createEntry(w, r, ledger.EntryIncome)
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	h.updateEntry(w, r, ledger.EntryExpense)
}

func (h *Handler) UpdateIncome(w http.ResponseWriter, r *http.Request) {
	h.updateEntry(w, r, ledger.EntryIncome)
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request, kind ledger.EntryKind) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}
	var req EntryRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toInput(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+string(kind), err)
		return
	}

	var entry ledger.Entry
	if kind == ledger.EntryExpense {
		entry, err = h.Engine.CreateExpense(r.Context(), in)
	} else {
		entry, err = h.Engine.CreateIncome(r.Context(), in)
	}
	if err != nil {
		writeLedgerError(w, "Failed to create "+string(kind), err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request, kind ledger.EntryKind) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}
	id, err := entryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}
	var req EntryPatchRequest
	if !decode(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+string(kind), err)
		return
	}

	var entry ledger.Entry
	if kind == ledger.EntryExpense {
		entry, err = h.Engine.UpdateExpense(r.Context(), userID, id, patch)
	} else {
		entry, err = h.Engine.UpdateIncome(r.Context(), userID, id, patch)
	}
	if err != nil {
		writeLedgerError(w, "Failed to update "+string(kind), err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toInput(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transfer", err)
		return
	}

	t, err := h.Engine.CreateTransfer(r.Context(), in)
	if err != nil {
		writeLedgerError(w, "Failed to create transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferDTO(t))
}

func (h *Handler) UpdateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}
	id, err := entryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}
	var req TransferPatchRequest
	if !decode(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transfer", err)
		return
	}

	t, err := h.Engine.UpdateTransfer(r.Context(), userID, id, patch)
	if err != nil {
		writeLedgerError(w, "Failed to update transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(t))
}

// =============================================================================
// GENERIC ENTRY HANDLERS - /entries/{kind}
// =============================================================================

func entryRoute(w http.ResponseWriter, r *http.Request, withID bool) (ledger.UserID, ledger.EntryKind, ledger.EntryID, bool) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return 0, "", 0, false
	}
	kind, err := ledger.ParseEntryKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry kind", err)
		return 0, "", 0, false
	}
	if !withID {
		return userID, kind, 0, true
	}
	id, err := entryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, "", 0, false
	}
	return userID, kind, id, true
}

func parseFilter(r *http.Request) (ledger.EntryFilter, error) {
	var f ledger.EntryFilter
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if s := q.Get("to"); s != "" {
		t, err := parseEndDate(s)
		if err != nil {
			return f, err
		}
		f.To = &t
	}
	if s := q.Get("planned"); s != "" {
		planned, err := strconv.ParseBool(s)
		if err != nil {
			return f, errors.New("planned must be true or false")
		}
		f.Planned = &planned
	}
	return f, nil
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, kind, _, ok := entryRoute(w, r, false)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	if kind == ledger.EntryTransfer {
		transfers, err := h.Engine.ListTransfers(r.Context(), userID, filter)
		if err != nil {
			writeLedgerError(w, "Failed to list transfers", err)
			return
		}
		dtos := make([]TransferDTO, len(transfers))
		for i, t := range transfers {
			dtos[i] = toTransferDTO(t)
		}
		writeJSON(w, http.StatusOK, dtos)
		return
	}

	entries, err := h.Engine.ListEntries(r.Context(), kind, userID, filter)
	if err != nil {
		writeLedgerError(w, "Failed to list entries", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, kind, id, ok := entryRoute(w, r, true)
	if !ok {
		return
	}

	if kind == ledger.EntryTransfer {
		t, err := h.Engine.GetTransfer(r.Context(), userID, id)
		if err != nil {
			writeLedgerError(w, "Failed to get transfer", err)
			return
		}
		writeJSON(w, http.StatusOK, toTransferDTO(t))
		return
	}

	e, err := h.Engine.GetEntry(r.Context(), kind, userID, id)
	if err != nil {
		writeLedgerError(w, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, kind, id, ok := entryRoute(w, r, true)
	if !ok {
		return
	}

	if err := h.Engine.DeleteEntry(r.Context(), userID, kind, id); err != nil {
		writeLedgerError(w, "Failed to delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RealizeEntry(w http.ResponseWriter, r *http.Request) {
	userID, kind, id, ok := entryRoute(w, r, true)
	if !ok {
		return
	}

	if err := h.Engine.Realize(r.Context(), userID, kind, id); err != nil {
		writeLedgerError(w, "Failed to realize entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "realized"})
}

func (h *Handler) UnrealizeEntry(w http.ResponseWriter, r *http.Request) {
	userID, kind, id, ok := entryRoute(w, r, true)
	if !ok {
		return
	}

	if err := h.Engine.Unrealize(r.Context(), userID, kind, id); err != nil {
		writeLedgerError(w, "Failed to unrealize entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "planned"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError picks the status from the ledger error class. Anything
// unclassified is a storage failure and is logged.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	var funds *ledger.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: message,
			Code:  "insufficient_funds",
			Details: map[string]string{
				"pool":      funds.Pool.String(),
				"available": funds.Available.String(),
				"requested": funds.Requested.String(),
			},
		})
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsStateConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		log.Printf("api: %s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}
