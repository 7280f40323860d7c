package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefits"
)

type loadResponse[T any] struct {
	Status   string `json:"status"`
	Scenario string `json:"scenario"`
	Result   T      `json:"result"`
}

func loadScenario[T any](t *testing.T, env *testEnv, id string) T {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[loadResponse[T]](t, rec)
	assert.Equal(t, "loaded", resp.Status)
	assert.Equal(t, id, resp.Scenario)
	return resp.Result
}

func TestListScenarios(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/scenarios", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	assert.Len(t, list, 6)
	for _, s := range list {
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Description)
	}
}

func TestScenario_HealthyIssuance(t *testing.T) {
	env := newTestEnv(t)

	res := loadScenario[IssueResponse](t, env, "healthy-issuance")

	assert.Equal(t, "complete", res.Status)
	assert.Equal(t, 2, res.Counts.Issued)
	assert.Equal(t, 2, res.Counts.Notified)
	assert.Zero(t, res.Counts.DocumentFailed)
	// Demo delivery never reaches the configured dispatcher.
	assert.Zero(t, env.dispatcher.count())
}

func TestScenario_TerminatedEmployee(t *testing.T) {
	env := newTestEnv(t)

	res := loadScenario[ErrorResponse](t, env, "terminated-employee")

	assert.Equal(t, "employee_inactive", res.Code)
	assert.Equal(t, benefits.UserMessage(benefits.ErrEmployeeInactive), res.Error)
	vs, err := env.store.ListVouchers(context.Background(), benefits.VoucherFilter{})
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestScenario_PartialPersistence(t *testing.T) {
	env := newTestEnv(t)

	res := loadScenario[IssueResponse](t, env, "partial-persistence")

	assert.Equal(t, "partial", res.Status)
	assert.Equal(t, "2 of 3 vouchers issued; 1 failed to persist", res.Summary)
	require.Len(t, res.Outcomes, 3)
	assert.True(t, res.Outcomes[0].Issued)
	assert.False(t, res.Outcomes[1].Issued)
	assert.True(t, res.Outcomes[2].Issued)
	require.Len(t, res.Outcomes[1].Failures, 1)
	assert.Equal(t, "persist", res.Outcomes[1].Failures[0].Stage)
	assert.Equal(t, "gym", res.Outcomes[1].BenefitID)

	vs, err := env.store.ListVouchers(context.Background(), benefits.VoucherFilter{EmployeeNumber: "E-1002"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
}

func TestScenario_NotifyTimeout(t *testing.T) {
	env := newTestEnv(t)

	res := loadScenario[IssueResponse](t, env, "notify-timeout")

	assert.Equal(t, "issued_with_warnings", res.Status)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].Issued)
	assert.False(t, res.Outcomes[0].Notified)
	require.NotNil(t, res.Outcomes[0].Voucher)
	assert.Equal(t, "issued", res.Outcomes[0].Voucher.Status)
	assert.True(t, res.Outcomes[0].Voucher.Urgent)
}

func TestScenario_RejectWithoutJustification(t *testing.T) {
	env := newTestEnv(t)

	res := loadScenario[struct {
		Request SelfServiceRequestDTO `json:"request"`
		Error   ErrorResponse         `json:"error"`
	}](t, env, "reject-no-justification")

	assert.Equal(t, "pending", res.Request.Status)
	assert.Equal(t, "validation_failed", res.Error.Code)
	assert.Contains(t, res.Error.Fields, "justification")
}

func TestScenario_ApproveWithinPolicy(t *testing.T) {
	env := newTestEnv(t)

	res := loadScenario[struct {
		Request SelfServiceRequestDTO `json:"request"`
	}](t, env, "approve-within-policy")

	assert.Equal(t, "approved", res.Request.Status)
	require.NotNil(t, res.Request.Review)
	assert.Equal(t, "within policy", res.Request.Review.Justification)
	assert.Equal(t, "G-0001", res.Request.Review.ReviewerID)

	rec := env.do(http.MethodGet, "/api/scenarios/current", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approve-within-policy", decode[ScenarioDTO](t, rec).ID)
}

func TestScenario_LoadResetsPreviousData(t *testing.T) {
	env := newTestEnv(t)
	loadScenario[IssueResponse](t, env, "healthy-issuance")

	loadScenario[IssueResponse](t, env, "notify-timeout")

	vs, err := env.store.ListVouchers(context.Background(), benefits.VoucherFilter{})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, benefits.EmployeeID("E-1004"), vs[0].Employee.Number)
}

func TestScenario_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "year-end"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
