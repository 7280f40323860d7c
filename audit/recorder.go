package audit

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/selfservice"
)

// Recorder turns bus events into audit entries.
type Recorder struct {
	Log    Log
	Logger zerolog.Logger
}

// Attach subscribes the recorder to bus and returns a function that
// detaches it.
func (r *Recorder) Attach(bus *events.Bus) func() {
	unsubs := []func(){
		events.Subscribe(bus, r.voucherIssued),
		events.Subscribe(bus, r.voucherNotNotified),
		events.Subscribe(bus, r.voucherIssueFailed),
		events.Subscribe(bus, r.issuanceRejected),
		events.Subscribe(bus, r.voucherRedeemed),
		events.Subscribe(bus, r.vouchersExpired),
		events.Subscribe(bus, r.requestSubmitted),
		events.Subscribe(bus, r.requestReviewed),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (r *Recorder) append(ctx context.Context, e Entry) {
	if err := r.Log.Append(ctx, e); err != nil {
		r.Logger.Error().Err(err).Str("action", string(e.Action)).Str("subject_id", e.SubjectID).Msg("failed to write audit entry")
	}
}

// =============================================================================
// ISSUANCE
// =============================================================================

func (r *Recorder) voucherIssued(ctx context.Context, e issuance.VoucherIssued) {
	r.append(ctx, Entry{
		At:          e.Voucher.IssuedAt,
		ActorID:     e.RequestedBy,
		Action:      ActionVoucherIssued,
		SubjectType: "voucher",
		SubjectID:   e.Voucher.Code,
		Details: map[string]any{
			"request_id":      e.RequestID,
			"employee_number": string(e.Voucher.Employee.Number),
			"benefit_id":      string(e.Voucher.Benefit.ID),
			"value":           e.Voucher.Value.StringFixed(2),
			"document_ready":  e.DocumentReady,
		},
	})
}

func (r *Recorder) voucherNotNotified(ctx context.Context, e issuance.VoucherNotNotified) {
	r.append(ctx, Entry{
		At:          e.Voucher.IssuedAt,
		ActorID:     e.RequestedBy,
		Action:      ActionVoucherNotNotified,
		SubjectType: "voucher",
		SubjectID:   e.Voucher.Code,
		Details: map[string]any{
			"request_id":      e.RequestID,
			"employee_number": string(e.Voucher.Employee.Number),
			"benefit_id":      string(e.Voucher.Benefit.ID),
			"value":           e.Voucher.Value.StringFixed(2),
			"reason":          e.Reason,
		},
	})
}

func (r *Recorder) voucherIssueFailed(ctx context.Context, e issuance.VoucherIssueFailed) {
	r.append(ctx, Entry{
		ActorID:     e.RequestedBy,
		Action:      ActionVoucherIssueFailed,
		SubjectType: "issuance",
		SubjectID:   e.RequestID + "/" + strconv.Itoa(e.Index),
		Details: map[string]any{
			"request_id":      e.RequestID,
			"employee_number": string(e.EmployeeID),
			"benefit_id":      string(e.BenefitID),
			"stage":           string(e.Stage),
			"code":            e.Code,
			"reason":          e.Reason,
		},
	})
}

func (r *Recorder) issuanceRejected(ctx context.Context, e issuance.IssuanceRejected) {
	r.append(ctx, Entry{
		ActorID:     e.RequestedBy,
		Action:      ActionIssuanceRejected,
		SubjectType: "issuance",
		SubjectID:   e.RequestID,
		Details: map[string]any{
			"employee_number": string(e.EmployeeID),
			"code":            e.Code,
			"reason":          e.Reason,
		},
	})
}

func (r *Recorder) voucherRedeemed(ctx context.Context, e issuance.VoucherRedeemed) {
	at := e.Voucher.IssuedAt
	if e.Voucher.RedeemedAt != nil {
		at = *e.Voucher.RedeemedAt
	}
	r.append(ctx, Entry{
		At:          at,
		ActorID:     e.RedeemedBy,
		Action:      ActionVoucherRedeemed,
		SubjectType: "voucher",
		SubjectID:   e.Voucher.Code,
	})
}

func (r *Recorder) vouchersExpired(ctx context.Context, e issuance.VouchersExpired) {
	r.append(ctx, Entry{
		At:          e.AsOf,
		ActorID:     "scheduler",
		Action:      ActionVouchersExpired,
		SubjectType: "voucher",
		Details:     map[string]any{"count": e.Count},
	})
}

// =============================================================================
// SELF-SERVICE
// =============================================================================

func (r *Recorder) requestSubmitted(ctx context.Context, e selfservice.RequestSubmitted) {
	req := e.Request
	r.append(ctx, Entry{
		At:          req.SubmittedAt,
		ActorID:     req.Requester.EmployeeNumber,
		Action:      ActionRequestSubmitted,
		SubjectType: "request",
		SubjectID:   req.ID,
		Details:     map[string]any{"category": string(req.Category)},
	})
}

func (r *Recorder) requestReviewed(ctx context.Context, e selfservice.RequestReviewed) {
	req := e.Request
	if req.Review == nil {
		return
	}
	action := ActionRequestApproved
	if req.Status == selfservice.StatusRejected {
		action = ActionRequestRejected
	}
	r.append(ctx, Entry{
		At:          req.Review.ReviewedAt,
		ActorID:     req.Review.Reviewer.ID,
		Action:      action,
		SubjectType: "request",
		SubjectID:   req.ID,
		Details: map[string]any{
			"reviewer_name": req.Review.Reviewer.Name,
			"justification": req.Review.Justification,
		},
	})
}
