/*
handlers.go - HTTP API handlers for the benefit voucher service

PURPOSE:
  Exposes voucher issuance and the self-service workflow via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  issuance and selfservice packages.

ENDPOINTS:
  Vouchers:
    POST   /api/vouchers/issue           Issue one voucher per selected benefit
    GET    /api/vouchers/{code}          Voucher by code
    GET    /api/vouchers/{code}/document Re-rendered PDF
    POST   /api/vouchers/{code}/redeem   Mark a voucher as used
    GET    /api/vouchers/export          XLSX export (?employee=&status=)

  Employees:
    GET    /api/employees                List all employees
    POST   /api/employees                Create or update an employee
    GET    /api/employees/{id}           Get employee details
    GET    /api/employees/{id}/vouchers  Vouchers issued to the employee

  Benefits:
    GET    /api/benefits                 Active catalog
    POST   /api/benefits                 Create or edit a catalog entry

  Audit:
    GET    /api/audit                    Audit trail (?action=&subject=&actor=&limit=)

  Requests and scenarios: see requests.go and scenarios.go.

ERROR HANDLING:
  Domain errors go through writeDomainError, the single error-to-status map:
  - 401: no session
  - 403: employee not eligible (unknown, terminated, incomplete)
  - 404: voucher or request not found
  - 409: invalid transition, voucher not redeemable
  - 422: validation errors, empty selection, catalog mismatch,
         issuance where no voucher was issued
  - 503: catalog unavailable
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/audit"
	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/logging"
	"github.com/warp/benefit-engine/notify"
	"github.com/warp/benefit-engine/render"
	"github.com/warp/benefit-engine/report"
	"github.com/warp/benefit-engine/selfservice"
	"github.com/warp/benefit-engine/validation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API reads and writes.
type Store interface {
	benefits.VoucherStore
	benefits.CatalogStore
	benefits.EmployeeDirectory
	selfservice.Store
	audit.Log

	SaveEmployee(ctx context.Context, e benefits.Employee) error
	ListEmployees(ctx context.Context) ([]benefits.Employee, error)
	Reset() error
	Ping(ctx context.Context) error
}

// Deps are the collaborators NewHandler wires together.
type Deps struct {
	Store      Store
	Bus        *events.Bus
	Dispatcher notify.Dispatcher
	// Renderer defaults to a PDFRenderer.
	Renderer render.Renderer
	Issuance issuance.Config
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Pipeline  *issuance.Pipeline
	Lifecycle *issuance.Lifecycle
	Requests  *selfservice.Service
	Encoder   benefits.Encoder
	Renderer  render.Renderer
	Issuer    string
	Now       func() time.Time
	Logger    zerolog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler builds the issuance pipeline, the voucher lifecycle and the
// self-service service over one store and bus.
func NewHandler(d Deps) *Handler {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	renderer := d.Renderer
	if renderer == nil {
		renderer = render.NewPDFRenderer("")
	}
	dispatcher := d.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.DisabledDispatcher{}
	}
	encoder := benefits.NewQREncoder()

	return &Handler{
		Store: d.Store,
		Pipeline: &issuance.Pipeline{
			Eligibility: &benefits.EligibilityValidator{Directory: d.Store},
			Catalog:     &benefits.Catalog{Store: d.Store},
			Vouchers:    d.Store,
			Encoder:     encoder,
			Renderer:    renderer,
			Dispatcher:  dispatcher,
			Bus:         d.Bus,
			Config:      d.Issuance,
			Now:         now,
			Logger:      d.Logger.With().Str("component", "issuance").Logger(),
		},
		Lifecycle: &issuance.Lifecycle{
			Vouchers: d.Store,
			Bus:      d.Bus,
			Now:      now,
			Logger:   d.Logger.With().Str("component", "lifecycle").Logger(),
		},
		Requests: &selfservice.Service{
			Store:  d.Store,
			Bus:    d.Bus,
			Now:    now,
			Logger: d.Logger.With().Str("component", "selfservice").Logger(),
		},
		Encoder:  encoder,
		Renderer: renderer,
		Issuer:   d.Issuance.Issuer,
		Now:      now,
		Logger:   d.Logger,
	}
}

// =============================================================================
// VOUCHER HANDLERS
// =============================================================================

// IssueVouchers runs the issuance pipeline for the caller.
// POST /api/vouchers/issue
func (h *Handler) IssueVouchers(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller := IdentityFrom(r.Context())
	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		employeeID = caller.ID
	}
	ids := make([]benefits.BenefitID, 0, len(req.BenefitIDs))
	for _, id := range req.BenefitIDs {
		ids = append(ids, benefits.BenefitID(strings.TrimSpace(id)))
	}

	res, err := h.Pipeline.Issue(r.Context(), issuance.Request{
		EmployeeID:     benefits.EmployeeID(employeeID),
		BenefitIDs:     ids,
		Justification:  strings.TrimSpace(req.Justification),
		Urgent:         req.Urgent,
		RequestedBy:    caller.ID,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Counts().Issued == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, toIssueResponse(res))
}

// GetVoucher returns a voucher by its code.
// GET /api/vouchers/{code}
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.voucherByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(*v))
}

// GetVoucherDocument re-renders the voucher PDF from the stored snapshot.
// GET /api/vouchers/{code}/document
func (h *Handler) GetVoucherDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.voucherByCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// A document without a QR code is still useful: the code is printed.
	var qr []byte
	if h.Encoder != nil {
		qr, err = h.Encoder.Encode(benefits.NewPayload(*v, h.Issuer))
		if err != nil {
			logger := logging.FromContext(ctx)
			logger.Warn().Err(err).Str("code", v.Code).Msg("qr encoding failed, rendering without it")
			qr = nil
		}
	}

	art, err := h.Renderer.Render(ctx, render.Document{Voucher: *v, QRCode: qr, Issuer: h.Issuer})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render voucher document", err)
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}

// RedeemVoucher marks an issued voucher as used.
// POST /api/vouchers/{code}/redeem
func (h *Handler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())
	if caller.Anonymous() {
		writeDomainError(w, r, benefits.ErrNoSession)
		return
	}

	v, err := h.Lifecycle.Redeem(r.Context(), chi.URLParam(r, "code"), caller.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(*v))
}

// ExportVouchers streams an XLSX workbook of vouchers.
// GET /api/vouchers/export?employee=&status=
func (h *Handler) ExportVouchers(w http.ResponseWriter, r *http.Request) {
	filter, ok := voucherFilter(w, r)
	if !ok {
		return
	}
	filter.EmployeeNumber = benefits.EmployeeID(strings.TrimSpace(r.URL.Query().Get("employee")))

	vouchers, err := h.Store.ListVouchers(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vouchers", err)
		return
	}

	f, err := report.VoucherWorkbook(vouchers)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build export", err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build export", err)
		return
	}

	name := fmt.Sprintf("vouchers-%s.xlsx", h.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", report.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) voucherByCode(ctx context.Context, code string) (*benefits.Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	v, err := h.Store.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if v == nil {
		return nil, benefits.ErrVoucherNotFound
	}
	return v, nil
}

// voucherFilter reads ?status= and writes a 422 when it is unknown.
func voucherFilter(w http.ResponseWriter, r *http.Request) (benefits.VoucherFilter, bool) {
	var f benefits.VoucherFilter
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		f.Status = benefits.VoucherStatus(s)
		if !f.Status.Valid() {
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:  "Invalid status filter",
				Code:   "validation_failed",
				Fields: map[string]string{"status": "unknown voucher status " + s},
			})
			return f, false
		}
	}
	return f, true
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.employee(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	emp := benefits.Employee{
		Number:     benefits.EmployeeID(strings.TrimSpace(req.EmployeeNumber)),
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Department: strings.TrimSpace(req.Department),
		Role:       strings.TrimSpace(req.Role),
	}
	// Formats were checked by the validator.
	if req.HireDate != "" {
		emp.HireDate, _ = time.Parse(dateLayout, req.HireDate)
	}
	if req.TerminatedAt != "" {
		t, _ := time.Parse(dateLayout, req.TerminatedAt)
		emp.TerminatedAt = &t
	}

	ctx := r.Context()
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	saved, err := h.Store.GetEmployee(ctx, emp.Number)
	if err != nil || saved == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*saved))
}

// ListEmployeeVouchers returns the vouchers issued to an employee, newest first.
func (h *Handler) ListEmployeeVouchers(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.employee(w, r)
	if !ok {
		return
	}
	filter, ok := voucherFilter(w, r)
	if !ok {
		return
	}
	filter.EmployeeNumber = emp.Number

	vouchers, err := h.Store.ListVouchers(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vouchers", err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTOs(vouchers))
}

func (h *Handler) employee(w http.ResponseWriter, r *http.Request) (*benefits.Employee, bool) {
	id := benefits.EmployeeID(chi.URLParam(r, "id"))
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return nil, false
	}
	if emp == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Employee not found", Code: "employee_not_found"})
		return nil, false
	}
	return emp, true
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListBenefits returns the active catalog.
func (h *Handler) ListBenefits(w http.ResponseWriter, r *http.Request) {
	defs, err := h.Store.ListActiveBenefits(r.Context())
	if err != nil {
		writeDomainError(w, r, fmt.Errorf("%w: %v", benefits.ErrCatalogUnavailable, err))
		return
	}

	dtos := make([]BenefitDTO, len(defs))
	for i, d := range defs {
		dtos[i] = toBenefitDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveBenefit creates or edits a catalog entry.
func (h *Handler) SaveBenefit(w http.ResponseWriter, r *http.Request) {
	var req SaveBenefitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	value, err := decimal.NewFromString(strings.TrimSpace(req.Value))
	if err != nil || value.IsNegative() {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "Invalid benefit value",
			Code:   "validation_failed",
			Fields: map[string]string{"value": "value must be a non-negative decimal"},
		})
		return
	}

	def := benefits.BenefitDefinition{
		ID:          benefits.BenefitID(strings.TrimSpace(req.ID)),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Value:       value.Round(2),
		Active:      req.Active == nil || *req.Active,
		UpdatedAt:   h.Now().UTC(),
	}
	if err := h.Store.SaveBenefit(r.Context(), def); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save benefit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBenefitDTO(def))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// ListAudit returns audit entries, most recent first.
// GET /api/audit?action=voucher_issued,request_approved&subject=&actor=&limit=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := audit.Query{
		SubjectID: strings.TrimSpace(q.Get("subject")),
		ActorID:   strings.TrimSpace(q.Get("actor")),
		Limit:     defaultAuditLimit,
	}
	for _, raw := range q["action"] {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				query.Actions = append(query.Actions, audit.Action(a))
			}
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		query.Limit = min(n, maxAuditLimit)
	}

	entries, err := h.Store.List(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit entries", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports whether the database answers. 503 when it does not.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
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

// writeDomainError maps a domain error to its HTTP status and body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Code: codeFor(err)}

	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("request failed")
		resp.Error = "Internal error"
	case benefits.IsRequestFatal(err):
		resp.Error = benefits.UserMessage(err)
		resp.Details = err.Error()
	default:
		resp.Error = err.Error()
	}

	var verr *selfservice.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	var eerr *benefits.EligibilityError
	if errors.As(err, &eerr) && len(eerr.Missing) > 0 {
		resp.Details = map[string]any{"missing_fields": eerr.Missing}
	}
	var cerr *benefits.CatalogMismatchError
	if errors.As(err, &cerr) {
		resp.Details = map[string]any{"unavailable": cerr.Missing}
	}

	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, benefits.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, benefits.ErrEmployeeNotFound),
		errors.Is(err, benefits.ErrEmployeeInactive),
		errors.Is(err, benefits.ErrEmployeeIncomplete):
		return http.StatusForbidden
	case errors.Is(err, benefits.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, benefits.ErrEmptySelection),
		errors.Is(err, benefits.ErrCatalogMismatch),
		errors.Is(err, benefits.ErrInvalidCode),
		errors.Is(err, selfservice.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, benefits.ErrVoucherNotFound),
		errors.Is(err, selfservice.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, selfservice.ErrInvalidTransition),
		errors.Is(err, benefits.ErrVoucherNotRedeemable),
		errors.Is(err, benefits.ErrVoucherNotCancellable):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, selfservice.ErrValidation):
		return "validation_failed"
	case errors.Is(err, selfservice.ErrRequestNotFound):
		return "request_not_found"
	case errors.Is(err, selfservice.ErrInvalidTransition):
		return "invalid_transition"
	}
	return benefits.ErrorCode(err)
}

// =============================================================================
// REQUEST DECODING
// =============================================================================

// decodeBody reads a JSON body into dst and runs its validate tags. An
// empty body decodes as the zero value. It writes the error response and
// returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeJSON(w, r, dst) {
		return false
	}

	fields, err := validation.Struct(dst)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if len(fields) == 0 {
		return true
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:  "Validation failed",
		Code:   "validation_failed",
		Fields: fields,
	})
	return false
}

// decodeJSON is decodeBody without the validation step, for inputs the
// domain packages validate themselves.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}
