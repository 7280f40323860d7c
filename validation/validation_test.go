package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/validation"
)

type employeeForm struct {
	Number   string   `json:"employee_number" validate:"required,max=8"`
	Email    string   `json:"email" validate:"omitempty,email"`
	HireDate string   `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	Value    string   `json:"value" validate:"omitempty,numeric"`
	Kind     string   `json:"kind" validate:"omitempty,oneof=a b"`
	Tags     []string `json:"tags" validate:"max=2"`
	Reason   string   `json:"reason" validate:"required"`
}

func TestStruct_Valid(t *testing.T) {
	fields, err := validation.Struct(employeeForm{Number: "E-1", Reason: "ok"})

	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestStruct_FieldMessagesUseJSONNames(t *testing.T) {
	// GIVEN: A form breaking every rule
	form := employeeForm{
		Number:   "E-123456789",
		Email:    "not-an-email",
		HireDate: "02/05/2025",
		Value:    "ten",
		Kind:     "c",
		Tags:     []string{"x", "y", "z"},
	}

	// WHEN: Validating it
	fields, err := validation.Struct(form)

	// THEN: Each failure is keyed by its JSON name with a readable message
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"employee_number": "employee_number must be at most 8 characters",
		"email":           "email must be an e-mail address",
		"hire_date":       "hire_date must use the format YYYY-MM-DD",
		"value":           "value must be a number",
		"kind":            "kind must be one of: a b",
		"tags":            "tags must have at most 2 items",
		"reason":          "reason is required",
	}, fields)
}

func TestStruct_MessageOverride(t *testing.T) {
	fields, err := validation.Struct(employeeForm{Number: "E-1"}, validation.Messages{
		"reason.required": "reason is required to close the case",
	})

	require.NoError(t, err)
	assert.Equal(t, "reason is required to close the case", fields["reason"])
}

func TestStruct_NotAStruct(t *testing.T) {
	fields, err := validation.Struct(nil)

	assert.Error(t, err)
	assert.Nil(t, fields)
}
