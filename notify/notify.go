// Package notify delivers issued vouchers to employees through an external
// delivery service.
package notify

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/render"
)

var (
	// ErrDispatchFailed means the delivery service refused or could not be reached.
	ErrDispatchFailed = errors.New("notification dispatch failed")
	// ErrMalformedResponse means the delivery service answered 2xx with a body
	// that is not a {"success","message"} object.
	ErrMalformedResponse = errors.New("malformed dispatch response")
	// ErrDisabled is returned when no delivery endpoint is configured.
	ErrDisabled = errors.New("notifications are disabled")
)

// Message is one voucher e-mail.
type Message struct {
	ToEmail       string
	ToName        string
	VoucherCode   string
	BenefitID     benefits.BenefitID
	BenefitName   string
	Value         decimal.Decimal
	Justification string
	Urgent        bool
	Attachment    render.Artifact
}

// NewMessage builds the message for an issued voucher and its document.
func NewMessage(v benefits.Voucher, doc render.Artifact) Message {
	return Message{
		ToEmail:       v.Employee.Email,
		ToName:        v.Employee.Name,
		VoucherCode:   v.Code,
		BenefitID:     v.Benefit.ID,
		BenefitName:   v.Benefit.Name,
		Value:         v.Value,
		Justification: v.Justification,
		Urgent:        v.Urgent,
		Attachment:    doc,
	}
}

// Dispatcher sends one message. Implementations return an error value and
// never panic.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}

// DisabledDispatcher refuses every message with ErrDisabled.
type DisabledDispatcher struct{}

func (DisabledDispatcher) Dispatch(context.Context, Message) error {
	return ErrDisabled
}
