package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/logging"
	"github.com/warp/benefit-engine/selfservice"
)

func TestAttach_CountsOutcomesSeparately(t *testing.T) {
	// GIVEN: Collectors attached to a bus
	// WHEN: One voucher is issued, one is not notified and one fails
	// THEN: Each lands on its own outcome label

	bus := events.NewBus(logging.Nop())
	detach := Attach(bus)
	defer detach()

	m := getCollectors()
	issued := testutil.ToFloat64(m.vouchers.WithLabelValues(OutcomeIssued))
	notNotified := testutil.ToFloat64(m.vouchers.WithLabelValues(OutcomeNotNotified))
	failed := testutil.ToFloat64(m.vouchers.WithLabelValues(OutcomeIssueFailed))

	ctx := context.Background()
	bus.Publish(ctx, issuance.VoucherIssued{})
	bus.Publish(ctx, issuance.VoucherNotNotified{})
	bus.Publish(ctx, issuance.VoucherIssueFailed{})

	assert.Equal(t, issued+1, testutil.ToFloat64(m.vouchers.WithLabelValues(OutcomeIssued)))
	assert.Equal(t, notNotified+1, testutil.ToFloat64(m.vouchers.WithLabelValues(OutcomeNotNotified)))
	assert.Equal(t, failed+1, testutil.ToFloat64(m.vouchers.WithLabelValues(OutcomeIssueFailed)))
}

func TestAttach_RequestsAndStages(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	detach := Attach(bus)
	defer detach()

	m := getCollectors()
	partial := testutil.ToFloat64(m.requests.WithLabelValues(string(issuance.StatusPartial)))
	notifyFailed := testutil.ToFloat64(m.stageFailures.WithLabelValues("notify", "notify_failed"))
	approved := testutil.ToFloat64(m.selfService.WithLabelValues("approved"))

	start := time.Now()
	result := &issuance.Result{
		StartedAt:   start,
		CompletedAt: start.Add(50 * time.Millisecond),
		Outcomes: []issuance.Outcome{
			{Issued: true, Failures: []issuance.Failure{{Stage: issuance.StageNotify, Code: "notify_failed"}}},
			{Failures: []issuance.Failure{{Stage: issuance.StagePersist, Hard: true, Code: "persist_failed"}}},
		},
	}
	ctx := context.Background()
	bus.Publish(ctx, issuance.IssuanceCompleted{Result: result, Status: result.Status(), Counts: result.Counts()})
	bus.Publish(ctx, selfservice.RequestReviewed{Request: selfservice.Request{Status: selfservice.StatusApproved}})

	assert.Equal(t, partial+1, testutil.ToFloat64(m.requests.WithLabelValues(string(issuance.StatusPartial))))
	assert.Equal(t, notifyFailed+1, testutil.ToFloat64(m.stageFailures.WithLabelValues("notify", "notify_failed")))
	assert.Equal(t, approved+1, testutil.ToFloat64(m.selfService.WithLabelValues("approved")))
}

func TestAttach_Detach(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	Attach(bus)()

	assert.Equal(t, 0, bus.SubscribersCount())
}

func TestHandler_ServesMetrics(t *testing.T) {
	bus := events.NewBus(logging.Nop())
	defer Attach(bus)()
	bus.Publish(context.Background(), issuance.VouchersExpired{Count: 2})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "benefits_vouchers_expired_total")
}
