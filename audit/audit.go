/*
Package audit keeps an append-only record of who did what to vouchers and
self-service requests.

PURPOSE:
  Every issuance outcome and every request transition becomes one Entry.
  Entries are written by a Recorder subscribed to the event bus, so the
  issuing and reviewing code never writes audit rows directly.

DISTINCT OUTCOMES:
  A voucher that was issued and delivered, one that was issued but whose
  e-mail failed, and one that failed to issue are three different actions.
  They are never folded into one "issued" entry.

SEE ALSO:
  - recorder.go: bus subscriptions
  - store/sqlite/audit.go, store/memory/audit.go: Log implementations
*/
package audit

import (
	"context"
	"time"
)

// Action names what happened.
type Action string

const (
	ActionVoucherIssued      Action = "voucher_issued"
	ActionVoucherNotNotified Action = "voucher_not_notified"
	ActionVoucherIssueFailed Action = "voucher_issue_failed"
	ActionIssuanceRejected   Action = "issuance_rejected"
	ActionVoucherRedeemed    Action = "voucher_redeemed"
	ActionVouchersExpired    Action = "vouchers_expired"
	ActionRequestSubmitted   Action = "request_submitted"
	ActionRequestApproved    Action = "request_approved"
	ActionRequestRejected    Action = "request_rejected"
)

// Entry records who did what when. Entries are never updated.
type Entry struct {
	ID          string
	At          time.Time
	ActorID     string // who performed the action
	Action      Action
	SubjectType string // "voucher", "request", "issuance"
	SubjectID   string
	Details     map[string]any
}

// Query narrows Log.List. Zero values match everything.
type Query struct {
	Actions   []Action
	SubjectID string
	ActorID   string
	Limit     int
}

// Matches reports whether e satisfies q, ignoring Limit.
func (q Query) Matches(e Entry) bool {
	if q.SubjectID != "" && e.SubjectID != q.SubjectID {
		return false
	}
	if q.ActorID != "" && e.ActorID != q.ActorID {
		return false
	}
	if len(q.Actions) == 0 {
		return true
	}
	for _, a := range q.Actions {
		if a == e.Action {
			return true
		}
	}
	return false
}

// Log stores audit entries. List returns the most recent first.
type Log interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, q Query) ([]Entry, error)
}
