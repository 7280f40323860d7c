package issuance

import (
	"time"

	"github.com/warp/benefit-engine/benefits"
)

// Exactly one of VoucherIssued, VoucherNotNotified or VoucherIssueFailed is
// published per selection entry.

// VoucherIssued: the voucher was stored and the e-mail went out.
type VoucherIssued struct {
	RequestID     string           `json:"request_id"`
	RequestedBy   string           `json:"requested_by"`
	Voucher       benefits.Voucher `json:"voucher"`
	DocumentReady bool             `json:"document_ready"`
}

func (VoucherIssued) EventName() string { return "issuance.voucher_issued" }

// VoucherNotNotified: the voucher was stored but the e-mail failed.
type VoucherNotNotified struct {
	RequestID   string           `json:"request_id"`
	RequestedBy string           `json:"requested_by"`
	Voucher     benefits.Voucher `json:"voucher"`
	Reason      string           `json:"reason"`
}

func (VoucherNotNotified) EventName() string { return "issuance.voucher_not_notified" }

// VoucherIssueFailed: no voucher exists for this selection entry.
type VoucherIssueFailed struct {
	RequestID   string              `json:"request_id"`
	RequestedBy string              `json:"requested_by"`
	EmployeeID  benefits.EmployeeID `json:"employee_id"`
	BenefitID   benefits.BenefitID  `json:"benefit_id"`
	Index       int                 `json:"index"`
	Stage       Stage               `json:"stage"`
	Code        string              `json:"code"`
	Reason      string              `json:"reason"`
}

func (VoucherIssueFailed) EventName() string { return "issuance.voucher_issue_failed" }

// IssuanceCompleted is published once per request that reached per-item work.
type IssuanceCompleted struct {
	Result *Result `json:"-"`
	Status Status  `json:"status"`
	Counts Counts  `json:"counts"`
}

func (IssuanceCompleted) EventName() string { return "issuance.completed" }

// IssuanceRejected is published when a request fails before per-item work.
type IssuanceRejected struct {
	RequestID   string              `json:"request_id"`
	RequestedBy string              `json:"requested_by"`
	EmployeeID  benefits.EmployeeID `json:"employee_id"`
	Code        string              `json:"code"`
	Reason      string              `json:"reason"`
}

func (IssuanceRejected) EventName() string { return "issuance.rejected" }

// VoucherRedeemed is published after a successful redemption.
type VoucherRedeemed struct {
	Voucher    benefits.Voucher `json:"voucher"`
	RedeemedBy string           `json:"redeemed_by"`
}

func (VoucherRedeemed) EventName() string { return "issuance.voucher_redeemed" }

// VouchersExpired is published after an expiry sweep that changed rows.
type VouchersExpired struct {
	Count int       `json:"count"`
	AsOf  time.Time `json:"as_of"`
}

func (VouchersExpired) EventName() string { return "issuance.vouchers_expired" }
