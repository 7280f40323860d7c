/*
result.go - Aggregated outcome of one issuance request

PURPOSE:
  Every selected benefit produces exactly one Outcome, in selection order.
  All counts, the overall status and the human summary are derived from the
  outcome list; nothing is incremented while the pipeline runs.

OUTCOME KINDS:
  not issued:            a hard failure at persist or validate_code
  issued, not notified:  voucher is valid, the e-mail did not go out
  issued with warnings:  QR or document missing, e-mail sent
  issued:                everything succeeded

STATUS:
  failed                 zero vouchers issued
  partial                some issued, some not
  issued_with_warnings   all issued, at least one soft failure
  complete               all issued and notified with documents
*/
package issuance

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/benefit-engine/benefits"
)

// Stage names a step of the per-item sequence.
type Stage string

const (
	StagePersist      Stage = "persist"
	StageValidateCode Stage = "validate_code"
	StageEncode       Stage = "encode"
	StageRender       Stage = "render"
	StageNotify       Stage = "notify"
)

// Failure is one stage error for one item. Hard failures mean the voucher
// was not issued.
type Failure struct {
	Stage  Stage
	Hard   bool
	Code   string
	Reason string
	Err    error
}

// Outcome is the result for one selection entry.
type Outcome struct {
	Index       int
	BenefitID   benefits.BenefitID
	BenefitName string

	Voucher       *benefits.Voucher
	Issued        bool
	Encoded       bool
	DocumentReady bool
	Notified      bool

	Failures []Failure
}

// HardFailure returns the failure that prevented issuance, if any.
func (o Outcome) HardFailure() *Failure {
	for i := range o.Failures {
		if o.Failures[i].Hard {
			return &o.Failures[i]
		}
	}
	return nil
}

// FailureAt returns the failure recorded for stage, if any.
func (o Outcome) FailureAt(stage Stage) *Failure {
	for i := range o.Failures {
		if o.Failures[i].Stage == stage {
			return &o.Failures[i]
		}
	}
	return nil
}

// Code returns the voucher code, or "" when nothing was issued.
func (o Outcome) Code() string {
	if !o.Issued || o.Voucher == nil {
		return ""
	}
	return o.Voucher.Code
}

// Warnings reports whether an issued item has any soft failure.
func (o Outcome) Warnings() bool {
	return o.Issued && len(o.Failures) > 0
}

// Counts are derived tallies over a list of outcomes.
type Counts struct {
	Requested      int
	Issued         int
	NotIssued      int
	PersistFailed  int
	CodeRejected   int
	Notified       int
	NotNotified    int
	EncodeFailed   int
	DocumentFailed int
}

// Tally derives Counts from outcomes.
func Tally(outcomes []Outcome) Counts {
	c := Counts{Requested: len(outcomes)}
	for _, o := range outcomes {
		if !o.Issued {
			c.NotIssued++
			if hf := o.HardFailure(); hf != nil && hf.Stage == StageValidateCode {
				c.CodeRejected++
			} else {
				c.PersistFailed++
			}
			continue
		}
		c.Issued++
		if o.Notified {
			c.Notified++
		} else {
			c.NotNotified++
		}
		if !o.Encoded {
			c.EncodeFailed++
		}
		if !o.DocumentReady {
			c.DocumentFailed++
		}
	}
	return c
}

// Status is the overall outcome of a request.
type Status string

const (
	StatusFailed             Status = "failed"
	StatusPartial            Status = "partial"
	StatusIssuedWithWarnings Status = "issued_with_warnings"
	StatusComplete           Status = "complete"
)

// Result is the aggregated outcome of one issuance request.
type Result struct {
	RequestID   string
	EmployeeID  benefits.EmployeeID
	RequestedBy string
	Outcomes    []Outcome
	StartedAt   time.Time
	CompletedAt time.Time
}

func (r *Result) Counts() Counts {
	return Tally(r.Outcomes)
}

func (r *Result) Status() Status {
	c := r.Counts()
	switch {
	case c.Issued == 0:
		return StatusFailed
	case c.NotIssued > 0:
		return StatusPartial
	}
	for _, o := range r.Outcomes {
		if o.Warnings() {
			return StatusIssuedWithWarnings
		}
	}
	return StatusComplete
}

// Vouchers returns every issued voucher in selection order.
func (r *Result) Vouchers() []benefits.Voucher {
	var out []benefits.Voucher
	for _, o := range r.Outcomes {
		if o.Issued && o.Voucher != nil {
			out = append(out, *o.Voucher)
		}
	}
	return out
}

// Summary renders the counts as one sentence, e.g.
// "3 of 4 vouchers issued; 1 failed to persist; 2 of the 3 issued vouchers also failed to notify".
func (r *Result) Summary() string {
	c := r.Counts()

	parts := []string{fmt.Sprintf("%d of %d %s issued", c.Issued, c.Requested, vouchers(c.Requested))}
	if c.PersistFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed to persist", c.PersistFailed))
	}
	if c.CodeRejected > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected for an invalid code", c.CodeRejected))
	}
	if c.NotNotified > 0 {
		parts = append(parts, fmt.Sprintf("%d of the %d issued %s also failed to notify", c.NotNotified, c.Issued, vouchers(c.Issued)))
	}
	if c.DocumentFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d of the %d issued %s had no document", c.DocumentFailed, c.Issued, vouchers(c.Issued)))
	}
	return strings.Join(parts, "; ")
}

func vouchers(n int) string {
	if n == 1 {
		return "voucher"
	}
	return "vouchers"
}
