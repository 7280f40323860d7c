/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that reset the database, populate it with a
  small directory and catalog, and then play one issuance or review so the
  portal has something realistic to show.

AVAILABLE SCENARIOS:
  healthy-issuance:        Ana selects two benefits, delivery healthy
  terminated-employee:     Carlos (terminated) selects one benefit
  partial-persistence:     Bruna selects three, the second insert is rejected
  notify-timeout:          Diego selects one, the e-mail endpoint times out
  reject-no-justification: a reviewer rejects with an empty justification
  approve-within-policy:   a reviewer approves "within policy"

HOW SCENARIOS WORK:
  1. Reset database (clear all data)
  2. Seed employees and catalog
  3. Run the scenario's action through the real pipeline or service,
     with demo fault injection where the scenario needs a failure
  4. Return the action's outcome in the response

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "partial-persistence"}

USAGE VIA CLI:
  benefitsd seed --scenario partial-persistence

NOTE:
  Scenarios reset the database. Only use in development/demo environments.
  E-mails in scenarios go to a demo dispatcher that only logs.

SEE ALSO:
  - handlers.go: ResetDatabase
  - cmd/server/main.go: seed command
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/notify"
	"github.com/warp/benefit-engine/selfservice"
)

// ErrUnknownScenario is returned for a scenario ID that is not defined.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler) (any, error)
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "healthy-issuance",
			Name:        "Healthy Issuance",
			Description: "Ana selects two active benefits; both vouchers are issued, rendered and e-mailed",
			Category:    "issuance",
		},
		load: loadHealthyIssuanceScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "terminated-employee",
			Name:        "Terminated Employee",
			Description: "Carlos has a termination date; the request is refused before anything is written",
			Category:    "issuance",
		},
		load: loadTerminatedEmployeeScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "partial-persistence",
			Name:        "Partial Persistence",
			Description: "Bruna selects three benefits; storage rejects the second, the other two are issued",
			Category:    "issuance",
		},
		load: loadPartialPersistenceScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "notify-timeout",
			Name:        "Notification Timeout",
			Description: "Diego's voucher is issued but the e-mail endpoint times out",
			Category:    "issuance",
		},
		load: loadNotifyTimeoutScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "reject-no-justification",
			Name:        "Reject Without Justification",
			Description: "A reviewer rejects a pending request with an empty justification; the request stays pending",
			Category:    "selfservice",
		},
		load: loadRejectWithoutJustificationScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "approve-within-policy",
			Name:        "Approve Within Policy",
			Description: "A reviewer approves a pending request with the justification \"within policy\"",
			Category:    "selfservice",
		},
		load: loadApproveWithinPolicyScenario,
	},
}

// Scenarios returns the available scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	return out
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.Load(r.Context(), req.ScenarioID)
	if errors.Is(err, ErrUnknownScenario) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"result":   result,
	})
}

// Load resets the store, seeds it and plays the scenario with the given ID.
// The returned value is the JSON-ready outcome of the scenario's action.
func (h *Handler) Load(ctx context.Context, id string) (any, error) {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
			break
		}
	}
	if sc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset database: %w", err)
	}
	h.currentScenario = ""

	if err := h.seedDirectory(ctx); err != nil {
		return nil, err
	}
	result, err := sc.load(ctx, h)
	if err != nil {
		return nil, err
	}

	h.currentScenario = id
	h.Logger.Info().Str("scenario", id).Msg("scenario loaded")
	return result, nil
}

// =============================================================================
// SEED DATA
// =============================================================================

func (h *Handler) seedDirectory(ctx context.Context) error {
	hired := time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)
	terminated := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	employees := []benefits.Employee{
		{Number: "E-1001", Name: "Ana Souza", Email: "ana.souza@example.com", Department: "Financeiro", Role: "Analista", HireDate: hired},
		{Number: "E-1002", Name: "Bruna Lima", Email: "bruna.lima@example.com", Department: "Comercial", Role: "Coordenadora", HireDate: hired},
		{Number: "E-1003", Name: "Carlos Pereira", Email: "carlos.pereira@example.com", Department: "Logística", Role: "Motorista", HireDate: hired, TerminatedAt: &terminated},
		{Number: "E-1004", Name: "Diego Alves", Email: "diego.alves@example.com", Department: "TI", Role: "Desenvolvedor", HireDate: hired},
	}
	for _, e := range employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("failed to seed employee %s: %w", e.Number, err)
		}
	}

	now := h.Now().UTC()
	catalog := []benefits.BenefitDefinition{
		{ID: "meal", Name: "Vale Refeição", Description: "Crédito para refeições em restaurantes credenciados", Value: decimal.RequireFromString("35.00"), Active: true},
		{ID: "gym", Name: "Academia", Description: "Mensalidade em academia parceira", Value: decimal.RequireFromString("120.50"), Active: true},
		{ID: "fuel", Name: "Combustível", Description: "Abastecimento em postos conveniados", Value: decimal.RequireFromString("200.00"), Active: true},
		{ID: "cinema", Name: "Cinema", Description: "Ingresso de cinema", Value: decimal.RequireFromString("20.00"), Active: false},
	}
	for _, b := range catalog {
		b.UpdatedAt = now
		if err := h.Store.SaveBenefit(ctx, b); err != nil {
			return fmt.Errorf("failed to seed benefit %s: %w", b.ID, err)
		}
	}
	return nil
}

var demoReviewer = selfservice.Reviewer{ID: "G-0001", Name: "Marina Gestora"}

func (h *Handler) seedPendingRequest(ctx context.Context) (*selfservice.Request, error) {
	return h.Requests.Submit(ctx, selfservice.SubmitInput{
		Requester: selfservice.Requester{
			EmployeeNumber: "E-1001",
			Name:           "Ana Souza",
			Department:     "Financeiro",
			Role:           "Analista",
		},
		Category:    selfservice.CategoryEarlyDeparture,
		Description: "Saída às 15h na sexta-feira para consulta médica.",
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadHealthyIssuanceScenario(ctx context.Context, h *Handler) (any, error) {
	p := h.demoPipeline(nil)
	return issue(ctx, p, issuance.Request{
		EmployeeID:    "E-1001",
		BenefitIDs:    []benefits.BenefitID{"meal", "gym"},
		Justification: "Benefícios do mês",
		RequestedBy:   "E-1001",
	})
}

func loadTerminatedEmployeeScenario(ctx context.Context, h *Handler) (any, error) {
	p := h.demoPipeline(nil)
	return issue(ctx, p, issuance.Request{
		EmployeeID:  "E-1003",
		BenefitIDs:  []benefits.BenefitID{"meal"},
		RequestedBy: "E-1003",
	})
}

func loadPartialPersistenceScenario(ctx context.Context, h *Handler) (any, error) {
	p := h.demoPipeline(nil)
	p.Vouchers = &faultyVoucherStore{
		VoucherStore: h.Store,
		failOn:       2,
		err:          fmt.Errorf("%w: benefit reference rejected by storage", benefits.ErrInvalidBenefitReference),
	}
	return issue(ctx, p, issuance.Request{
		EmployeeID:    "E-1002",
		BenefitIDs:    []benefits.BenefitID{"meal", "gym", "fuel"},
		Justification: "Reembolso trimestral",
		RequestedBy:   "E-1002",
	})
}

func loadNotifyTimeoutScenario(ctx context.Context, h *Handler) (any, error) {
	p := h.demoPipeline(fmt.Errorf("%w: %w", notify.ErrDispatchFailed, context.DeadlineExceeded))
	return issue(ctx, p, issuance.Request{
		EmployeeID:  "E-1004",
		BenefitIDs:  []benefits.BenefitID{"fuel"},
		Urgent:      true,
		RequestedBy: "E-1004",
	})
}

func loadRejectWithoutJustificationScenario(ctx context.Context, h *Handler) (any, error) {
	req, err := h.seedPendingRequest(ctx)
	if err != nil {
		return nil, err
	}

	_, rerr := h.Requests.Reject(ctx, req.ID, selfservice.ReviewInput{Reviewer: demoReviewer, Justification: "   "})
	var verr *selfservice.ValidationError
	if !errors.As(rerr, &verr) {
		return nil, fmt.Errorf("expected a validation error, got %v", rerr)
	}

	current, err := h.Requests.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"request": toRequestDTO(*current),
		"error": ErrorResponse{
			Error:  rerr.Error(),
			Code:   codeFor(rerr),
			Fields: verr.Fields,
		},
	}, nil
}

func loadApproveWithinPolicyScenario(ctx context.Context, h *Handler) (any, error) {
	req, err := h.seedPendingRequest(ctx)
	if err != nil {
		return nil, err
	}
	approved, err := h.Requests.Approve(ctx, req.ID, selfservice.ReviewInput{Reviewer: demoReviewer, Justification: "within policy"})
	if err != nil {
		return nil, err
	}
	return map[string]any{"request": toRequestDTO(*approved)}, nil
}

// =============================================================================
// DEMO FAULT INJECTION
// =============================================================================

// demoPipeline copies the handler's pipeline with a logging dispatcher
// that fails every message with dispatchErr when it is non-nil. Items run
// sequentially so injected faults hit a predictable item.
func (h *Handler) demoPipeline(dispatchErr error) *issuance.Pipeline {
	p := *h.Pipeline
	p.Config.Concurrency = 1
	p.Dispatcher = demoDispatcher{log: h.Logger, err: dispatchErr}
	return &p
}

func issue(ctx context.Context, p *issuance.Pipeline, req issuance.Request) (any, error) {
	res, err := p.Issue(ctx, req)
	if err != nil {
		if !benefits.IsRequestFatal(err) {
			return nil, err
		}
		return ErrorResponse{
			Error:   benefits.UserMessage(err),
			Code:    codeFor(err),
			Details: err.Error(),
		}, nil
	}
	return toIssueResponse(res), nil
}

type demoDispatcher struct {
	log zerolog.Logger
	err error
}

func (d demoDispatcher) Dispatch(_ context.Context, m notify.Message) error {
	if d.err != nil {
		return d.err
	}
	d.log.Info().
		Str("to", m.ToEmail).
		Str("code", m.VoucherCode).
		Int("attachment_bytes", len(m.Attachment.Data)).
		Msg("demo delivery")
	return nil
}

// faultyVoucherStore fails the failOn-th CreateVoucher call (1-based).
type faultyVoucherStore struct {
	benefits.VoucherStore

	mu     sync.Mutex
	calls  int
	failOn int
	err    error
}

func (s *faultyVoucherStore) CreateVoucher(ctx context.Context, nv benefits.NewVoucher) (*benefits.Voucher, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n == s.failOn {
		return nil, s.err
	}
	return s.VoucherStore.CreateVoucher(ctx, nv)
}
