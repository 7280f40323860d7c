/*
errors.go - Error taxonomy for voucher issuance

PURPOSE:
  All issuance errors in one place. Errors fall into three groups that the
  pipeline and the API treat differently:

  1. Fatal, whole request: raised before any voucher is written.
     ErrNoSession, ErrEmptySelection, ErrEmployeeNotFound,
     ErrEmployeeInactive, ErrEmployeeIncomplete, ErrCatalogUnavailable,
     ErrCatalogMismatch
  2. Fatal, one item: the voucher for that benefit was not issued.
     ErrInvalidBenefitReference, ErrDuplicateCode,
     ErrDuplicateIdempotencyKey, ErrInvalidCode
  3. Lookup / lifecycle: ErrVoucherNotFound, ErrVoucherNotRedeemable,
     ErrVoucherNotCancellable

USER MESSAGES:
  UserMessage maps each whole-request error to the specific sentence shown on
  the portal. Every fatal condition has its own message.

SEE ALSO:
  - issuance/result.go: per-item failures
  - api/handlers.go: HTTP status mapping (writeDomainError)
*/
package benefits

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNoSession          = errors.New("no active session")
	ErrEmptySelection     = errors.New("no benefits selected")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrEmployeeInactive   = errors.New("employee is no longer active")
	ErrEmployeeIncomplete = errors.New("employee record is incomplete")
	ErrCatalogUnavailable = errors.New("benefit catalog unavailable")
	ErrCatalogMismatch    = errors.New("selected benefits not found in active catalog")

	ErrInvalidBenefitReference = errors.New("invalid benefit reference")
	ErrDuplicateCode           = errors.New("could not allocate a unique voucher code")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrInvalidCode             = errors.New("invalid voucher code")

	ErrVoucherNotFound       = errors.New("voucher not found")
	ErrVoucherNotRedeemable  = errors.New("voucher cannot be redeemed")
	ErrVoucherNotCancellable = errors.New("voucher cannot be cancelled")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// EligibilityError explains why an employee may not request vouchers.
type EligibilityError struct {
	EmployeeID EmployeeID
	Status     EligibilityStatus
	Missing    []string // populated for StatusIncomplete
}

func (e *EligibilityError) Error() string {
	switch e.Status {
	case NotFound:
		return fmt.Sprintf("employee %s not found", e.EmployeeID)
	case Inactive:
		return fmt.Sprintf("employee %s is terminated", e.EmployeeID)
	case Incomplete:
		return fmt.Sprintf("employee %s is missing %s", e.EmployeeID, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("employee %s is not eligible (%s)", e.EmployeeID, e.Status)
}

func (e *EligibilityError) Unwrap() error {
	switch e.Status {
	case NotFound:
		return ErrEmployeeNotFound
	case Inactive:
		return ErrEmployeeInactive
	case Incomplete:
		return ErrEmployeeIncomplete
	}
	return nil
}

// CatalogMismatchError lists the selected benefits that are absent or inactive.
type CatalogMismatchError struct {
	Requested []BenefitID
	Missing   []BenefitID
}

func (e *CatalogMismatchError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = string(id)
	}
	return fmt.Sprintf("%d of %d selected benefits unavailable: %s",
		len(e.Missing), len(e.Requested), strings.Join(ids, ", "))
}

func (e *CatalogMismatchError) Unwrap() error {
	return ErrCatalogMismatch
}

// InvalidCodeError reports a code that does not match the voucher code format.
type InvalidCodeError struct {
	Code   string
	Reason string
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid voucher code %q: %s", e.Code, e.Reason)
}

func (e *InvalidCodeError) Unwrap() error {
	return ErrInvalidCode
}

// InvalidVoucherError reports a malformed insert.
type InvalidVoucherError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidVoucherError) Error() string {
	return fmt.Sprintf("invalid voucher %s: %s", e.Field, e.Reason)
}

func (e *InvalidVoucherError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRequestFatal reports whether err aborts a whole issuance request.
func IsRequestFatal(err error) bool {
	return errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrEmptySelection) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrEmployeeInactive) ||
		errors.Is(err, ErrEmployeeIncomplete) ||
		errors.Is(err, ErrCatalogUnavailable) ||
		errors.Is(err, ErrCatalogMismatch)
}

// ErrorCode returns a stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrEmptySelection):
		return "empty_selection"
	case errors.Is(err, ErrEmployeeNotFound):
		return "employee_not_found"
	case errors.Is(err, ErrEmployeeInactive):
		return "employee_inactive"
	case errors.Is(err, ErrEmployeeIncomplete):
		return "employee_incomplete"
	case errors.Is(err, ErrCatalogUnavailable):
		return "catalog_unavailable"
	case errors.Is(err, ErrCatalogMismatch):
		return "catalog_mismatch"
	case errors.Is(err, ErrInvalidBenefitReference):
		return "invalid_benefit_reference"
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		return "duplicate_submission"
	case errors.Is(err, ErrDuplicateCode):
		return "code_collision"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrVoucherNotFound):
		return "voucher_not_found"
	case errors.Is(err, ErrVoucherNotRedeemable):
		return "voucher_not_redeemable"
	case errors.Is(err, ErrVoucherNotCancellable):
		return "voucher_not_cancellable"
	}
	return "internal_error"
}

// UserMessage returns the portal message for a whole-request error.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoSession):
		return "Sessão expirada. Faça login novamente para solicitar benefícios."
	case errors.Is(err, ErrEmptySelection):
		return "Selecione ao menos um benefício."
	case errors.Is(err, ErrEmployeeNotFound):
		return "Colaborador não encontrado: não foi possível identificar o solicitante."
	case errors.Is(err, ErrEmployeeInactive):
		return "Colaborador desligado: não é possível solicitar benefícios."
	case errors.Is(err, ErrEmployeeIncomplete):
		return "Cadastro incompleto: nome, e-mail e matrícula são obrigatórios."
	case errors.Is(err, ErrCatalogUnavailable):
		return "Catálogo de benefícios indisponível. Tente novamente mais tarde."
	case errors.Is(err, ErrCatalogMismatch):
		return "Um ou mais benefícios selecionados não estão mais disponíveis."
	}
	return "Não foi possível processar a solicitação."
}
