package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/audit"
	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/logging"
	"github.com/warp/benefit-engine/selfservice"
	"github.com/warp/benefit-engine/store/memory"
)

var at = time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC)

func voucher(code string) benefits.Voucher {
	return benefits.Voucher{
		Code:     code,
		IssuedAt: at,
		Employee: benefits.EmployeeSnapshot{Number: "E-1"},
		Benefit:  benefits.BenefitSnapshot{ID: "meal"},
		Value:    decimal.RequireFromString("35"),
	}
}

func TestRecorder_DistinctVoucherOutcomes(t *testing.T) {
	// GIVEN: A recorder attached to the bus
	// WHEN: One voucher is issued, one is not notified, one fails
	// THEN: Three entries with three different actions are written

	bus := events.NewBus(logging.Nop())
	log := memory.NewAuditLog()
	defer (&audit.Recorder{Log: log, Logger: logging.Nop()}).Attach(bus)()

	ctx := context.Background()
	bus.Publish(ctx, issuance.VoucherIssued{RequestID: "r1", RequestedBy: "E-1", Voucher: voucher("VCH-1"), DocumentReady: true})
	bus.Publish(ctx, issuance.VoucherNotNotified{RequestID: "r1", RequestedBy: "E-1", Voucher: voucher("VCH-2"), Reason: "timeout"})
	bus.Publish(ctx, issuance.VoucherIssueFailed{RequestID: "r1", RequestedBy: "E-1", BenefitID: "gym", Index: 2, Stage: issuance.StagePersist, Code: "persist_failed"})

	entries, err := log.List(ctx, audit.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, audit.ActionVoucherIssueFailed, entries[0].Action)
	assert.Equal(t, "r1/2", entries[0].SubjectID)
	assert.Equal(t, audit.ActionVoucherNotNotified, entries[1].Action)
	assert.Equal(t, "VCH-2", entries[1].SubjectID)
	assert.Equal(t, "timeout", entries[1].Details["reason"])
	assert.Equal(t, audit.ActionVoucherIssued, entries[2].Action)
	assert.Equal(t, "35.00", entries[2].Details["value"])

	issuedOnly, err := log.List(ctx, audit.Query{Actions: []audit.Action{audit.ActionVoucherIssued}})
	require.NoError(t, err)
	assert.Len(t, issuedOnly, 1)
}

func TestRecorder_RequestLifecycle(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	log := memory.NewAuditLog()
	defer (&audit.Recorder{Log: log, Logger: logging.Nop()}).Attach(bus)()

	ctx := context.Background()
	req := selfservice.Request{ID: "req-1", Requester: selfservice.Requester{EmployeeNumber: "E-1"}, SubmittedAt: at, Status: selfservice.StatusPending}
	bus.Publish(ctx, selfservice.RequestSubmitted{Request: req})

	req.Status = selfservice.StatusRejected
	req.Review = &selfservice.Review{Reviewer: selfservice.Reviewer{ID: "mgr-7"}, ReviewedAt: at.Add(time.Hour), Justification: "no coverage"}
	bus.Publish(ctx, selfservice.RequestReviewed{Request: req})

	entries, err := log.List(ctx, audit.Query{SubjectID: "req-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionRequestRejected, entries[0].Action)
	assert.Equal(t, "mgr-7", entries[0].ActorID)
	assert.Equal(t, audit.ActionRequestSubmitted, entries[1].Action)
}

type brokenLog struct{}

func (brokenLog) Append(context.Context, audit.Entry) error { return errors.New("disk full") }
func (brokenLog) List(context.Context, audit.Query) ([]audit.Entry, error) {
	return nil, nil
}

func TestRecorder_AppendErrorDoesNotPanic(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	defer (&audit.Recorder{Log: brokenLog{}, Logger: logging.Nop()}).Attach(bus)()

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), issuance.VouchersExpired{Count: 3, AsOf: at})
	})
}

func TestQuery_Matches(t *testing.T) {
	e := audit.Entry{Action: audit.ActionVoucherIssued, SubjectID: "VCH-1", ActorID: "E-1"}

	assert.True(t, audit.Query{}.Matches(e))
	assert.True(t, audit.Query{ActorID: "E-1", Actions: []audit.Action{audit.ActionVoucherNotNotified, audit.ActionVoucherIssued}}.Matches(e))
	assert.False(t, audit.Query{SubjectID: "VCH-2"}.Matches(e))
	assert.False(t, audit.Query{Actions: []audit.Action{audit.ActionVoucherIssueFailed}}.Matches(e))
}
