package benefits

import (
	"context"
	"time"
)

// VoucherStore persists vouchers. Codes and IDs are assigned by the store;
// the code column carries a uniqueness constraint.
type VoucherStore interface {
	// CreateVoucher inserts one row and returns it with ID and Code set.
	// Returns ErrInvalidBenefitReference, ErrDuplicateIdempotencyKey or
	// ErrDuplicateCode (after exhausting code retries) on constraint failures.
	CreateVoucher(ctx context.Context, v NewVoucher) (*Voucher, error)

	// GetVoucher and GetVoucherByCode return (nil, nil) when absent.
	GetVoucher(ctx context.Context, id VoucherID) (*Voucher, error)
	GetVoucherByCode(ctx context.Context, code string) (*Voucher, error)

	ListVouchers(ctx context.Context, filter VoucherFilter) ([]Voucher, error)

	// CancelVoucher moves an issued voucher to cancelled. Any other status
	// yields ErrVoucherNotCancellable.
	CancelVoucher(ctx context.Context, id VoucherID, reason string) error

	// RedeemVoucher moves an issued, unexpired voucher to redeemed.
	RedeemVoucher(ctx context.Context, code string, at time.Time) (*Voucher, error)

	// ExpireVouchers moves every issued voucher whose expiry is at or before
	// asOf to expired and returns how many rows changed.
	ExpireVouchers(ctx context.Context, asOf time.Time) (int, error)
}

// VoucherFilter narrows ListVouchers. Zero values match everything.
type VoucherFilter struct {
	EmployeeNumber EmployeeID
	Status         VoucherStatus
	Limit          int
}

// CatalogStore reads and writes benefit definitions.
type CatalogStore interface {
	// ListBenefits returns the definitions with the given IDs, active or not.
	ListBenefits(ctx context.Context, ids []BenefitID) ([]BenefitDefinition, error)
	ListActiveBenefits(ctx context.Context) ([]BenefitDefinition, error)
	SaveBenefit(ctx context.Context, b BenefitDefinition) error
}

// EmployeeDirectory resolves employees. GetEmployee returns (nil, nil) when
// the employee does not exist.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, number EmployeeID) (*Employee, error)
}
