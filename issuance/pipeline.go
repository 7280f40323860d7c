/*
pipeline.go - Voucher issuance orchestration

PURPOSE:
  Turns one employee submission into one voucher per selected benefit.

FLOW:
  1. Session check: the caller identity must be present
  2. Eligibility: once per request (fatal on failure)
  3. Catalog: authoritative values for the selection (fatal on failure)
  4. Per selection entry, in order:
       persist -> validate_code -> encode -> render -> notify
  5. Aggregate outcomes into a Result

FAILURE POLICY:
  Steps 1-3 abort the request before any voucher is written.
  persist and validate_code failures are hard: the item is not issued.
  encode, render and notify failures are soft: the voucher stays issued.
  Items never share a transaction and never abort each other. Once an item
  has started it runs to completion even if the caller goes away.

CONCURRENCY:
  Sequential by default. With Config.Concurrency > 1 items run through a
  bounded errgroup; each item's stages stay in order and outcomes are
  written to their selection index.

SEE ALSO:
  - result.go: aggregation
  - events.go: what gets published per item
*/
package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/notify"
	"github.com/warp/benefit-engine/render"
)

// Config holds pipeline settings.
type Config struct {
	ValidityDays int
	Issuer       string
	Concurrency  int
}

// Request is one issuance submission.
type Request struct {
	ID            string
	EmployeeID    benefits.EmployeeID
	BenefitIDs    []benefits.BenefitID
	Justification string
	Urgent        bool
	// RequestedBy is the session identity; empty means no session.
	RequestedBy string
	// IdempotencyKey, when set, makes a replayed submission write nothing.
	IdempotencyKey string
}

// Pipeline issues vouchers.
type Pipeline struct {
	Eligibility *benefits.EligibilityValidator
	Catalog     *benefits.Catalog
	Vouchers    benefits.VoucherStore
	Encoder     benefits.Encoder
	Renderer    render.Renderer
	Dispatcher  notify.Dispatcher
	Bus         *events.Bus
	Config      Config
	Now         func() time.Time
	Logger      zerolog.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Pipeline) validityDays() int {
	if p.Config.ValidityDays > 0 {
		return p.Config.ValidityDays
	}
	return benefits.DefaultValidityDays
}

// Issue runs a submission. A non-nil error means the whole request was
// rejected and no voucher was written; per-item failures are reported in
// the Result instead.
func (p *Pipeline) Issue(ctx context.Context, req Request) (*Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := p.Logger.With().
		Str("request_id", req.ID).
		Str("employee_id", string(req.EmployeeID)).
		Logger()

	emp, defs, err := p.gate(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("code", benefits.ErrorCode(err)).Msg("issuance rejected")
		p.Bus.Publish(ctx, IssuanceRejected{
			RequestID:   req.ID,
			RequestedBy: req.RequestedBy,
			EmployeeID:  req.EmployeeID,
			Code:        benefits.ErrorCode(err),
			Reason:      err.Error(),
		})
		return nil, err
	}

	result := &Result{
		RequestID:   req.ID,
		EmployeeID:  emp.Number,
		RequestedBy: req.RequestedBy,
		Outcomes:    make([]Outcome, len(defs)),
		StartedAt:   p.now(),
	}

	// Items run to completion regardless of the caller's context.
	itemCtx := context.WithoutCancel(ctx)

	if p.Config.Concurrency > 1 && len(defs) > 1 {
		g := new(errgroup.Group)
		g.SetLimit(p.Config.Concurrency)
		for i, def := range defs {
			i, def := i, def
			g.Go(func() error {
				result.Outcomes[i] = p.runItem(itemCtx, log, req, *emp, i, def)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, def := range defs {
			result.Outcomes[i] = p.runItem(itemCtx, log, req, *emp, i, def)
		}
	}

	result.CompletedAt = p.now()
	counts := result.Counts()
	status := result.Status()

	ev := log.Info()
	if status != StatusComplete {
		ev = log.Warn()
	}
	ev.Str("status", string(status)).
		Int("requested", counts.Requested).
		Int("issued", counts.Issued).
		Int("not_notified", counts.NotNotified).
		Msg(result.Summary())

	p.Bus.Publish(itemCtx, IssuanceCompleted{Result: result, Status: status, Counts: counts})
	return result, nil
}

// gate runs the request-level checks that must pass before any write.
func (p *Pipeline) gate(ctx context.Context, req Request) (*benefits.Employee, []benefits.BenefitDefinition, error) {
	if req.RequestedBy == "" {
		return nil, nil, benefits.ErrNoSession
	}
	if len(req.BenefitIDs) == 0 {
		return nil, nil, benefits.ErrEmptySelection
	}
	emp, err := p.Eligibility.Require(ctx, req.EmployeeID)
	if err != nil {
		return nil, nil, err
	}
	defs, err := p.Catalog.LoadSelected(ctx, req.BenefitIDs)
	if err != nil {
		return nil, nil, err
	}
	return emp, defs, nil
}

// runItem executes the stages for one selection entry. It never panics and
// never returns an error: everything is recorded on the Outcome.
func (p *Pipeline) runItem(ctx context.Context, log zerolog.Logger, req Request, emp benefits.Employee, index int, def benefits.BenefitDefinition) Outcome {
	out := Outcome{Index: index, BenefitID: def.ID, BenefitName: def.Name}
	log = log.With().Int("index", index).Str("benefit_id", string(def.ID)).Logger()

	hardFail := func(stage Stage, err error) Outcome {
		f := newFailure(stage, true, err)
		out.Failures = append(out.Failures, f)
		log.Error().Err(err).Str("stage", string(stage)).Str("code", f.Code).Msg("voucher not issued")
		p.Bus.Publish(ctx, VoucherIssueFailed{
			RequestID:   req.ID,
			RequestedBy: req.RequestedBy,
			EmployeeID:  emp.Number,
			BenefitID:   def.ID,
			Index:       index,
			Stage:       stage,
			Code:        f.Code,
			Reason:      f.Reason,
		})
		return out
	}
	softFail := func(stage Stage, err error) {
		f := newFailure(stage, false, err)
		out.Failures = append(out.Failures, f)
		log.Warn().Err(err).Str("stage", string(stage)).Str("code", f.Code).Msg("voucher stage failed")
	}

	// persist
	var v *benefits.Voucher
	err := guard(StagePersist, func() error {
		var err error
		v, err = p.Vouchers.CreateVoucher(ctx, p.newVoucher(req, emp, index, def))
		return err
	})
	if err != nil {
		return hardFail(StagePersist, err)
	}
	out.Voucher = v

	// validate_code
	if err := benefits.ValidateCode(v.Code); err != nil {
		if cerr := p.Vouchers.CancelVoucher(ctx, v.ID, "invalid code: "+err.Error()); cerr != nil {
			log.Error().Err(cerr).Int64("voucher_id", int64(v.ID)).Msg("failed to cancel voucher with invalid code")
		}
		return hardFail(StageValidateCode, err)
	}
	out.Issued = true

	// encode
	var qr []byte
	err = guard(StageEncode, func() error {
		var err error
		qr, err = p.Encoder.Encode(benefits.NewPayload(*v, p.Config.Issuer))
		return err
	})
	if err != nil {
		softFail(StageEncode, err)
	} else {
		out.Encoded = true
	}

	// render
	var doc render.Artifact
	err = guard(StageRender, func() error {
		var err error
		doc, err = p.Renderer.Render(ctx, render.Document{Voucher: *v, QRCode: qr, Issuer: p.Config.Issuer})
		return err
	})
	if err != nil {
		softFail(StageRender, err)
		doc = render.Artifact{}
	} else {
		out.DocumentReady = true
	}

	// notify
	err = guard(StageNotify, func() error {
		return p.Dispatcher.Dispatch(ctx, notify.NewMessage(*v, doc))
	})
	if err != nil {
		softFail(StageNotify, err)
		p.Bus.Publish(ctx, VoucherNotNotified{
			RequestID:   req.ID,
			RequestedBy: req.RequestedBy,
			Voucher:     *v,
			Reason:      err.Error(),
		})
		return out
	}
	out.Notified = true

	log.Info().Str("code", v.Code).Bool("document_ready", out.DocumentReady).Msg("voucher issued")
	p.Bus.Publish(ctx, VoucherIssued{
		RequestID:     req.ID,
		RequestedBy:   req.RequestedBy,
		Voucher:       *v,
		DocumentReady: out.DocumentReady,
	})
	return out
}

func (p *Pipeline) newVoucher(req Request, emp benefits.Employee, index int, def benefits.BenefitDefinition) benefits.NewVoucher {
	issuedAt := p.now()
	nv := benefits.NewVoucher{
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt.AddDate(0, 0, p.validityDays()),
		Employee:      emp.Snapshot(),
		Benefit:       def.Snapshot(),
		Justification: req.Justification,
		Urgent:        req.Urgent,
		Status:        benefits.StatusIssued,
		Value:         def.Value,
		CreatedBy:     req.RequestedBy,
		CreatedAt:     issuedAt,
	}
	if req.IdempotencyKey != "" {
		nv.IdempotencyKey = fmt.Sprintf("%s/%d", req.IdempotencyKey, index)
	}
	return nv
}

// guard runs fn and converts a panic into an error for stage.
func guard(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s stage: %v", stage, r)
		}
	}()
	return fn()
}

func newFailure(stage Stage, hard bool, err error) Failure {
	return Failure{
		Stage:  stage,
		Hard:   hard,
		Code:   failureCode(stage, err),
		Reason: err.Error(),
		Err:    err,
	}
}

func failureCode(stage Stage, err error) string {
	switch stage {
	case StagePersist, StageValidateCode:
		if code := benefits.ErrorCode(err); code != "internal_error" {
			return code
		}
		return "persist_failed"
	case StageEncode:
		return "encode_failed"
	case StageRender:
		return "render_failed"
	case StageNotify:
		switch {
		case errors.Is(err, notify.ErrDisabled):
			return "notify_disabled"
		case errors.Is(err, notify.ErrMalformedResponse):
			return "notify_malformed_response"
		}
		return "notify_failed"
	}
	return "internal_error"
}
