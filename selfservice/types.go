/*
Package selfservice implements employee self-service requests and the
reviewer approval workflow that gates them.

PURPOSE:
  Employees file requests (time off, leaving early, special authorizations).
  A reviewer approves or rejects each one exactly once, and must say why.
  Requests are never deleted: a reviewed request is the audit record.

STATE MACHINE:
  ┌─────────┐   approve(justification)   ┌──────────┐
  │ pending │ ─────────────────────────▶ │ approved │
  │         │                            └──────────┘
  │         │   reject(justification)    ┌──────────┐
  │         │ ─────────────────────────▶ │ rejected │
  └─────────┘                            └──────────┘
  Both targets are terminal. A blank justification blocks the transition
  with a field-level ValidationError and leaves storage untouched.

KEY COMPONENTS:
  Request:    the record (requester snapshot, category, review stamp)
  Transition: pure guard + stamp, no I/O (machine.go)
  Store:      persistence; CompleteReview is conditional on "still pending"
  Service:    validate → load → transition → persist → re-read

SEE ALSO:
  - store/sqlite/requests.go: SQL implementation
  - api/requests.go: HTTP handlers
*/
package selfservice

import "time"

// =============================================================================
// STATUS & CATEGORY
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Category string

const (
	CategoryTimeOff        Category = "time_off"
	CategoryEarlyDeparture Category = "early_departure"
	CategoryAuthorization  Category = "authorization"
	CategoryOther          Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTimeOff, CategoryEarlyDeparture, CategoryAuthorization, CategoryOther:
		return true
	}
	return false
}

// =============================================================================
// REQUEST
// =============================================================================

// Requester is the requester's identity as it was at submission.
type Requester struct {
	EmployeeNumber string `json:"employee_number" validate:"required,max=32"`
	Name           string `json:"name" validate:"required,max=200"`
	Department     string `json:"department" validate:"max=200"`
	Role           string `json:"role" validate:"max=200"`
}

// Reviewer identifies who acted on a request.
type Reviewer struct {
	ID   string `json:"reviewer_id" validate:"required,max=64"`
	Name string `json:"reviewer_name" validate:"max=200"`
}

// Review is stamped on a request when it leaves pending.
type Review struct {
	Reviewer      Reviewer
	ReviewedAt    time.Time
	Justification string
}

// Request is a self-service request.
type Request struct {
	ID          string
	Requester   Requester
	Category    Category
	Description string
	SubmittedAt time.Time
	Status      Status
	Review      *Review
}

// Filter narrows Store.ListRequests. Zero values match everything.
type Filter struct {
	Status         Status
	EmployeeNumber string
}
