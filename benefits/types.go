/*
Package benefits holds the voucher domain: catalog definitions, employees,
vouchers, and the leaf components the issuance pipeline is built from.

PURPOSE:
  An employee selects one or more benefit types on the portal. Each selected
  benefit becomes one Voucher: a single-benefit, uniquely coded,
  time-bounded entitlement. This package defines those records and the
  checks that gate their creation.

KEY CONCEPTS IN THIS FILE (types.go):
  - BenefitDefinition: catalog entry, authoritative value at issuance time
  - Employee: directory record used for the eligibility check
  - Voucher: the persisted entitlement, carrying snapshots (not references)
    of the employee and benefit as they were when it was issued
  - NewVoucher: the single-row insert contract; code and ID come back from
    the store, never from the caller

SNAPSHOTS:
  Catalog edits and employee profile changes never alter issued vouchers.
  The voucher copies name, e-mail, employee number, benefit name and value
  when it is created.

SEE ALSO:
  - store.go: persistence interfaces
  - eligibility.go, catalog.go: request-level gates
  - code.go, payload.go: voucher code and scannable payload
  - issuance/pipeline.go: orchestration
*/
package benefits

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BenefitID string
type EmployeeID string
type VoucherID int64

// =============================================================================
// CATALOG
// =============================================================================

// BenefitDefinition is a catalog entry.
type BenefitDefinition struct {
	ID          BenefitID
	Name        string
	Description string
	Value       decimal.Decimal
	Active      bool
	UpdatedAt   time.Time
}

// Snapshot freezes the fields a voucher keeps.
func (b BenefitDefinition) Snapshot() BenefitSnapshot {
	return BenefitSnapshot{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Value:       b.Value,
	}
}

// BenefitSnapshot is the immutable copy of a definition stored on a voucher.
type BenefitSnapshot struct {
	ID          BenefitID
	Name        string
	Description string
	Value       decimal.Decimal
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee is a directory record.
type Employee struct {
	Number     EmployeeID
	Name       string
	Email      string
	Department string
	Role       string
	HireDate   time.Time
	// TerminatedAt is set once the employee has left the company.
	TerminatedAt *time.Time
	CreatedAt    time.Time
}

// Active reports whether the employee has no termination date.
func (e Employee) Active() bool {
	return e.TerminatedAt == nil
}

// Snapshot freezes the fields a voucher keeps.
func (e Employee) Snapshot() EmployeeSnapshot {
	return EmployeeSnapshot{
		Number:     e.Number,
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
	}
}

// EmployeeSnapshot is the copy of an employee stored on a voucher.
type EmployeeSnapshot struct {
	Number     EmployeeID
	Name       string
	Email      string
	Department string
}

// =============================================================================
// VOUCHERS
// =============================================================================

type VoucherStatus string

const (
	StatusPending   VoucherStatus = "pending"
	StatusIssued    VoucherStatus = "issued"
	StatusRedeemed  VoucherStatus = "redeemed"
	StatusExpired   VoucherStatus = "expired"
	StatusCancelled VoucherStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s VoucherStatus) Valid() bool {
	switch s {
	case StatusPending, StatusIssued, StatusRedeemed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// DefaultValidityDays is the voucher lifetime when none is configured.
const DefaultValidityDays = 30

// Voucher is a persisted single-benefit entitlement.
type Voucher struct {
	ID            VoucherID
	Code          string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Employee      EmployeeSnapshot
	Benefit       BenefitSnapshot
	Justification string
	Urgent        bool
	Value         decimal.Decimal
	Status        VoucherStatus
	CreatedBy     string
	CreatedAt     time.Time
	Deleted       bool

	RedeemedAt   *time.Time
	CancelReason string
}

// ExpiredAt reports whether the voucher's validity window has closed at t.
func (v Voucher) ExpiredAt(t time.Time) bool {
	return !t.Before(v.ExpiresAt)
}

// NewVoucher is the insert contract for one voucher row.
type NewVoucher struct {
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Employee      EmployeeSnapshot
	Benefit       BenefitSnapshot
	Justification string
	Urgent        bool
	Status        VoucherStatus
	Value         decimal.Decimal
	CreatedBy     string
	CreatedAt     time.Time

	// IdempotencyKey, when set, must be unique across all vouchers.
	IdempotencyKey string
}

// Validate rejects malformed inserts before they reach storage.
func (n NewVoucher) Validate() error {
	if n.Benefit.ID == "" {
		return &InvalidVoucherError{Field: "benefit_id", Reason: "missing benefit reference", Err: ErrInvalidBenefitReference}
	}
	if n.Employee.Number == "" {
		return &InvalidVoucherError{Field: "employee_number", Reason: "missing employee number"}
	}
	if n.Status != StatusIssued {
		return &InvalidVoucherError{Field: "status", Reason: "new vouchers must be issued, got " + string(n.Status)}
	}
	if n.Value.IsNegative() {
		return &InvalidVoucherError{Field: "value", Reason: "negative value"}
	}
	if !n.ExpiresAt.After(n.IssuedAt) {
		return &InvalidVoucherError{Field: "expires_at", Reason: "expiry must be after issuance"}
	}
	if n.CreatedBy == "" {
		return &InvalidVoucherError{Field: "created_by", Reason: "missing creator identity"}
	}
	return nil
}
