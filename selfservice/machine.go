package selfservice

import (
	"strings"
	"time"
)

// Transition applies a review to r and returns the updated copy. It is the
// only place the state machine rules live:
//   - r must be pending
//   - to must be approved or rejected
//   - the justification must be non-blank
//
// r itself is never modified.
func Transition(r Request, to Status, reviewer Reviewer, justification string, at time.Time) (Request, error) {
	if r.Status != StatusPending || !to.Terminal() {
		return r, &TransitionError{RequestID: r.ID, From: r.Status, To: to}
	}

	justification = strings.TrimSpace(justification)
	if justification == "" {
		return r, &ValidationError{Fields: map[string]string{
			"justification": "justification is required to approve or reject a request",
		}}
	}
	if strings.TrimSpace(reviewer.ID) == "" {
		return r, &ValidationError{Fields: map[string]string{
			"reviewer_id": "reviewer_id is required",
		}}
	}

	next := r
	next.Status = to
	next.Review = &Review{
		Reviewer:      reviewer,
		ReviewedAt:    at,
		Justification: justification,
	}
	return next, nil
}
