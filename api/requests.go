package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/selfservice"
)

// =============================================================================
// SELF-SERVICE REQUEST HANDLERS
// =============================================================================

// SubmitRequest files a new pending request. Requester fields left blank
// are filled from the caller's identity.
// POST /api/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())
	if caller.Anonymous() {
		writeDomainError(w, r, benefits.ErrNoSession)
		return
	}

	var in selfservice.SubmitInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Requester.EmployeeNumber) == "" {
		in.Requester.EmployeeNumber = caller.ID
	}
	if strings.TrimSpace(in.Requester.Name) == "" {
		in.Requester.Name = caller.Name
	}

	req, err := h.Requests.Submit(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*req))
}

// ListRequests returns requests, oldest first.
// GET /api/requests?status=pending&employee=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	filter := selfservice.Filter{
		EmployeeNumber: strings.TrimSpace(r.URL.Query().Get("employee")),
	}
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		filter.Status = selfservice.Status(s)
		if !filter.Status.Valid() {
			writeDomainError(w, r, &selfservice.ValidationError{
				Fields: map[string]string{"status": "unknown request status " + s},
			})
			return
		}
	}

	reqs, err := h.Requests.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// GetRequest returns one request.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ApproveRequest approves a pending request.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, selfservice.StatusApproved)
}

// RejectRequest rejects a pending request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, selfservice.StatusRejected)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, to selfservice.Status) {
	caller := IdentityFrom(r.Context())
	if caller.Anonymous() {
		writeDomainError(w, r, benefits.ErrNoSession)
		return
	}

	var body ReviewRequest
	if !decodeBody(w, r, &body) {
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	in := selfservice.ReviewInput{
		Reviewer:      selfservice.Reviewer{ID: caller.ID, Name: caller.Name},
		Justification: body.Justification,
	}

	var (
		req *selfservice.Request
		err error
	)
	if to == selfservice.StatusApproved {
		req, err = h.Requests.Approve(ctx, id, in)
	} else {
		req, err = h.Requests.Reject(ctx, id, in)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// The reviewer's queue is re-read after every decision.
	pending, err := h.Requests.List(ctx, selfservice.Filter{Status: selfservice.StatusPending})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}

	writeJSON(w, http.StatusOK, ReviewResponse{
		Request: toRequestDTO(*req),
		Pending: toRequestDTOs(pending),
	})
}
