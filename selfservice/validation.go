package selfservice

import (
	"strings"

	"github.com/warp/benefit-engine/validation"
)

// SubmitInput is what an employee sends to file a request.
type SubmitInput struct {
	Requester   Requester `json:"requester" validate:"required"`
	Category    Category  `json:"category" validate:"required,oneof=time_off early_departure authorization other"`
	Description string    `json:"description" validate:"required,max=4000"`
}

// Normalize trims free-text fields.
func (in *SubmitInput) Normalize() {
	in.Requester.EmployeeNumber = strings.TrimSpace(in.Requester.EmployeeNumber)
	in.Requester.Name = strings.TrimSpace(in.Requester.Name)
	in.Requester.Department = strings.TrimSpace(in.Requester.Department)
	in.Requester.Role = strings.TrimSpace(in.Requester.Role)
	in.Description = strings.TrimSpace(in.Description)
}

// ReviewInput is what a reviewer sends to approve or reject.
type ReviewInput struct {
	Reviewer      Reviewer `json:"reviewer" validate:"required"`
	Justification string   `json:"justification" validate:"required,max=2000"`
}

// Normalize trims free-text fields; a whitespace-only justification becomes
// empty and fails the required rule.
func (in *ReviewInput) Normalize() {
	in.Reviewer.ID = strings.TrimSpace(in.Reviewer.ID)
	in.Reviewer.Name = strings.TrimSpace(in.Reviewer.Name)
	in.Justification = strings.TrimSpace(in.Justification)
}

var reviewMessages = validation.Messages{
	"justification.required": "justification is required to approve or reject a request",
}

// validateStruct runs the struct rules and converts failures into a
// *ValidationError keyed by the leaf JSON field name.
func validateStruct(s any) error {
	fields, err := validation.Struct(s, reviewMessages)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
