package selfservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/logging"
	"github.com/warp/benefit-engine/selfservice"
	"github.com/warp/benefit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var reviewTime = time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*selfservice.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return &selfservice.Service{
		Store:  store,
		Bus:    events.NewBus(logging.Nop()),
		Logger: logging.Nop(),
		Now:    func() time.Time { return reviewTime },
	}, store
}

func submitInput() selfservice.SubmitInput {
	return selfservice.SubmitInput{
		Requester: selfservice.Requester{
			EmployeeNumber: "E-1001",
			Name:           "Ana Souza",
			Department:     "Finance",
			Role:           "Analyst",
		},
		Category:    selfservice.CategoryEarlyDeparture,
		Description: "Consulta médica às 16h",
	}
}

func manager() selfservice.Reviewer {
	return selfservice.Reviewer{ID: "mgr-7", Name: "Carlos Lima"}
}

func pendingRequest() selfservice.Request {
	return selfservice.Request{
		ID:          "req-1",
		Requester:   submitInput().Requester,
		Category:    selfservice.CategoryTimeOff,
		Description: "Day off",
		SubmittedAt: reviewTime.Add(-time.Hour),
		Status:      selfservice.StatusPending,
	}
}

// =============================================================================
// TRANSITION TESTS
// =============================================================================

func TestTransition_PendingToApproved(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: Approving it with a justification
	// THEN: The copy is approved and carries the review; the input is untouched

	r := pendingRequest()
	next, err := selfservice.Transition(r, selfservice.StatusApproved, manager(), "  ok  ", reviewTime)

	require.NoError(t, err)
	assert.Equal(t, selfservice.StatusApproved, next.Status)
	require.NotNil(t, next.Review)
	assert.Equal(t, "mgr-7", next.Review.Reviewer.ID)
	assert.Equal(t, "ok", next.Review.Justification)
	assert.Equal(t, reviewTime, next.Review.ReviewedAt)

	assert.Equal(t, selfservice.StatusPending, r.Status)
	assert.Nil(t, r.Review)
}

func TestTransition_BlankJustification_Rejected(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: Rejecting with a whitespace-only justification
	// THEN: A validation error naming justification is returned

	_, err := selfservice.Transition(pendingRequest(), selfservice.StatusRejected, manager(), "   ", reviewTime)

	var verr *selfservice.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "justification")
	assert.ErrorIs(t, err, selfservice.ErrValidation)
}

func TestTransition_FromTerminalState_Rejected(t *testing.T) {
	// GIVEN: Requests that are already approved or rejected
	// WHEN: Trying any further transition
	// THEN: Every attempt fails with ErrInvalidTransition

	for _, from := range []selfservice.Status{selfservice.StatusApproved, selfservice.StatusRejected} {
		for _, to := range []selfservice.Status{selfservice.StatusPending, selfservice.StatusApproved, selfservice.StatusRejected} {
			r := pendingRequest()
			r.Status = from
			_, err := selfservice.Transition(r, to, manager(), "changed my mind", reviewTime)
			assert.ErrorIs(t, err, selfservice.ErrInvalidTransition, "%s -> %s", from, to)
		}
	}
}

func TestTransition_ToPending_Rejected(t *testing.T) {
	_, err := selfservice.Transition(pendingRequest(), selfservice.StatusPending, manager(), "x", reviewTime)
	assert.ErrorIs(t, err, selfservice.ErrInvalidTransition)
}

// =============================================================================
// SERVICE TESTS
// =============================================================================

func TestService_Submit_StoresPendingRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var published []selfservice.RequestSubmitted
	events.Subscribe(svc.Bus, func(_ context.Context, e selfservice.RequestSubmitted) {
		published = append(published, e)
	})

	r, err := svc.Submit(ctx, submitInput())
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, selfservice.StatusPending, r.Status)
	assert.Nil(t, r.Review)
	assert.Equal(t, reviewTime, r.SubmittedAt)
	require.Len(t, published, 1)
	assert.Equal(t, r.ID, published[0].Request.ID)
}

func TestService_Submit_InvalidInput(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	in := submitInput()
	in.Category = "vacation"
	in.Description = "   "

	_, err := svc.Submit(ctx, in)

	var verr *selfservice.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "category")
	assert.Contains(t, verr.Fields, "description")

	all, err := store.ListRequests(ctx, selfservice.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_Reject_EmptyJustification_LeavesRequestPending(t *testing.T) {
	// GIVEN: A pending early-departure request
	// WHEN: The reviewer rejects it without a justification
	// THEN: A validation error is returned and the stored record is unchanged

	svc, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, submitInput())
	require.NoError(t, err)

	_, err = svc.Reject(ctx, submitted.ID, selfservice.ReviewInput{Reviewer: manager(), Justification: ""})
	require.ErrorIs(t, err, selfservice.ErrValidation)

	stored, err := svc.Get(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, *submitted, *stored)
	assert.Equal(t, selfservice.StatusPending, stored.Status)
	assert.Nil(t, stored.Review)
}

func TestService_Approve_StampsReviewAndIsFinal(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: A manager approves it with a justification
	// THEN: The record is approved with reviewer and time, and can never
	//       return to pending or be reviewed again

	svc, _ := newTestService(t)
	ctx := context.Background()

	var reviewed []selfservice.RequestReviewed
	events.Subscribe(svc.Bus, func(_ context.Context, e selfservice.RequestReviewed) {
		reviewed = append(reviewed, e)
	})

	submitted, err := svc.Submit(ctx, submitInput())
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, submitted.ID, selfservice.ReviewInput{
		Reviewer:      manager(),
		Justification: "Liberado, sem impacto na escala",
	})
	require.NoError(t, err)

	assert.Equal(t, selfservice.StatusApproved, approved.Status)
	require.NotNil(t, approved.Review)
	assert.Equal(t, "mgr-7", approved.Review.Reviewer.ID)
	assert.Equal(t, "Carlos Lima", approved.Review.Reviewer.Name)
	assert.Equal(t, reviewTime, approved.Review.ReviewedAt)
	require.Len(t, reviewed, 1)
	assert.Equal(t, selfservice.StatusApproved, reviewed[0].Request.Status)

	_, err = svc.Reject(ctx, submitted.ID, selfservice.ReviewInput{Reviewer: manager(), Justification: "oops"})
	var terr *selfservice.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, selfservice.StatusApproved, terr.From)

	stored, err := svc.Get(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, selfservice.StatusApproved, stored.Status)
	assert.Equal(t, "Liberado, sem impacto na escala", stored.Review.Justification)
}

func TestService_Review_UnknownRequest(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Approve(context.Background(), "missing", selfservice.ReviewInput{Reviewer: manager(), Justification: "ok"})
	assert.ErrorIs(t, err, selfservice.ErrRequestNotFound)
}

// racingStore lets another reviewer win between the service's read and write.
type racingStore struct {
	*memory.Store
}

func (s racingStore) CompleteReview(ctx context.Context, id string, status selfservice.Status, review selfservice.Review) error {
	other := review
	other.Reviewer = selfservice.Reviewer{ID: "mgr-other"}
	if err := s.Store.CompleteReview(ctx, id, selfservice.StatusRejected, other); err != nil {
		return err
	}
	return s.Store.CompleteReview(ctx, id, status, review)
}

func TestService_Review_ConcurrentReviewLoses(t *testing.T) {
	// GIVEN: Two reviewers acting on the same pending request
	// WHEN: The other reviewer's rejection lands first
	// THEN: Our approval fails as an invalid transition from rejected

	mem := memory.New()
	svc := &selfservice.Service{Store: racingStore{mem}, Logger: logging.Nop()}
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, submitInput())
	require.NoError(t, err)

	_, err = svc.Approve(ctx, submitted.ID, selfservice.ReviewInput{Reviewer: manager(), Justification: "ok"})

	var terr *selfservice.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, selfservice.StatusRejected, terr.From)

	stored, err := mem.GetRequest(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, "mgr-other", stored.Review.Reviewer.ID)
}

func TestService_List_FiltersByStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Submit(ctx, submitInput())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, submitInput())
	require.NoError(t, err)
	_, err = svc.Approve(ctx, a.ID, selfservice.ReviewInput{Reviewer: manager(), Justification: "ok"})
	require.NoError(t, err)

	pending, err := svc.List(ctx, selfservice.Filter{Status: selfservice.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := svc.List(ctx, selfservice.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
