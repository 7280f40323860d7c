package benefits

import (
	"context"
	"fmt"
	"strings"
)

// EligibilityStatus is the outcome of an eligibility check.
type EligibilityStatus string

const (
	Eligible   EligibilityStatus = "eligible"
	NotFound   EligibilityStatus = "not_found"
	Inactive   EligibilityStatus = "inactive"
	Incomplete EligibilityStatus = "incomplete"
)

// EligibilityValidator confirms the requesting employee exists, has no
// termination date and has the profile fields a voucher snapshot needs.
// It runs once per issuance request.
type EligibilityValidator struct {
	Directory EmployeeDirectory
}

// Check classifies the employee. A directory error is returned as-is and is
// distinct from NotFound.
func (v *EligibilityValidator) Check(ctx context.Context, id EmployeeID) (EligibilityStatus, *Employee, []string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return NotFound, nil, nil, nil
	}

	emp, err := v.Directory.GetEmployee(ctx, id)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to load employee %s: %w", id, err)
	}
	if emp == nil {
		return NotFound, nil, nil, nil
	}
	if !emp.Active() {
		return Inactive, emp, nil, nil
	}
	if missing := missingFields(*emp); len(missing) > 0 {
		return Incomplete, emp, missing, nil
	}
	return Eligible, emp, nil, nil
}

// Require returns the employee when eligible and an *EligibilityError otherwise.
func (v *EligibilityValidator) Require(ctx context.Context, id EmployeeID) (*Employee, error) {
	status, emp, missing, err := v.Check(ctx, id)
	if err != nil {
		return nil, err
	}
	if status != Eligible {
		return nil, &EligibilityError{EmployeeID: id, Status: status, Missing: missing}
	}
	return emp, nil
}

func missingFields(e Employee) []string {
	var missing []string
	if strings.TrimSpace(e.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(e.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(string(e.Number)) == "" {
		missing = append(missing, "employee_number")
	}
	return missing
}
