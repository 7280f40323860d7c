/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Values travel as decimal strings with two places ("35.00"), never floats.

VALIDATION:
  Request types carry validator/v10 tags for shape checks (lengths, formats).
  Business rules (eligibility, catalog membership) stay in the domain
  packages so they produce their own error codes.

SEE ALSO:
  - handlers.go: Uses these types
  - issuance/result.go: Result and Outcome
*/
package api

import (
	"time"

	"github.com/warp/benefit-engine/audit"
	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/selfservice"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// IssueRequest is the body of POST /api/vouchers/issue. EmployeeID defaults
// to the caller's own identity.
type IssueRequest struct {
	EmployeeID    string   `json:"employee_id" validate:"max=32"`
	BenefitIDs    []string `json:"benefit_ids" validate:"max=20,dive,max=64"`
	Justification string   `json:"justification" validate:"max=2000"`
	Urgent        bool     `json:"urgent"`
}

// IssueResponse reports every selected benefit individually.
type IssueResponse struct {
	RequestID string       `json:"request_id"`
	Status    string       `json:"status"`
	Summary   string       `json:"summary"`
	Counts    CountsDTO    `json:"counts"`
	Outcomes  []OutcomeDTO `json:"outcomes"`
}

type CountsDTO struct {
	Requested      int `json:"requested"`
	Issued         int `json:"issued"`
	NotIssued      int `json:"not_issued"`
	PersistFailed  int `json:"persist_failed"`
	CodeRejected   int `json:"code_rejected"`
	Notified       int `json:"notified"`
	NotNotified    int `json:"not_notified"`
	EncodeFailed   int `json:"encode_failed"`
	DocumentFailed int `json:"document_failed"`
}

type OutcomeDTO struct {
	Index         int          `json:"index"`
	BenefitID     string       `json:"benefit_id"`
	BenefitName   string       `json:"benefit_name"`
	Issued        bool         `json:"issued"`
	Encoded       bool         `json:"encoded"`
	DocumentReady bool         `json:"document_ready"`
	Notified      bool         `json:"notified"`
	Voucher       *VoucherDTO  `json:"voucher,omitempty"`
	Failures      []FailureDTO `json:"failures,omitempty"`
}

type FailureDTO struct {
	Stage  string `json:"stage"`
	Hard   bool   `json:"hard"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// VoucherDTO represents a voucher in API responses.
type VoucherDTO struct {
	ID                 int64   `json:"id"`
	Code               string  `json:"code"`
	Status             string  `json:"status"`
	IssuedAt           string  `json:"issued_at"`
	ExpiresAt          string  `json:"expires_at"`
	EmployeeNumber     string  `json:"employee_number"`
	EmployeeName       string  `json:"employee_name"`
	EmployeeEmail      string  `json:"employee_email"`
	EmployeeDepartment string  `json:"employee_department,omitempty"`
	BenefitID          string  `json:"benefit_id"`
	BenefitName        string  `json:"benefit_name"`
	Value              string  `json:"value"`
	Justification      string  `json:"justification,omitempty"`
	Urgent             bool    `json:"urgent"`
	CreatedBy          string  `json:"created_by"`
	RedeemedAt         *string `json:"redeemed_at,omitempty"`
	CancelReason       string  `json:"cancel_reason,omitempty"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	EmployeeNumber string  `json:"employee_number"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Department     string  `json:"department,omitempty"`
	Role           string  `json:"role,omitempty"`
	HireDate       string  `json:"hire_date,omitempty"`
	TerminatedAt   *string `json:"terminated_at,omitempty"`
	Active         bool    `json:"active"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	EmployeeNumber string `json:"employee_number" validate:"required,max=32"`
	Name           string `json:"name" validate:"max=200"`
	Email          string `json:"email" validate:"omitempty,email,max=254"`
	Department     string `json:"department" validate:"max=200"`
	Role           string `json:"role" validate:"max=200"`
	HireDate       string `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	TerminatedAt   string `json:"terminated_at" validate:"omitempty,datetime=2006-01-02"`
}

// BenefitDTO represents a catalog entry.
type BenefitDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
	Active      bool   `json:"active"`
}

// SaveBenefitRequest creates or edits a catalog entry. Editing never
// changes vouchers already issued.
type SaveBenefitRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Value       string `json:"value" validate:"required,numeric"`
	Active      *bool  `json:"active"`
}

// SelfServiceRequestDTO represents a self-service request.
type SelfServiceRequestDTO struct {
	ID             string     `json:"id"`
	EmployeeNumber string     `json:"employee_number"`
	RequesterName  string     `json:"requester_name"`
	Department     string     `json:"department,omitempty"`
	Role           string     `json:"role,omitempty"`
	Category       string     `json:"category"`
	Description    string     `json:"description"`
	SubmittedAt    string     `json:"submitted_at"`
	Status         string     `json:"status"`
	Review         *ReviewDTO `json:"review,omitempty"`
}

type ReviewDTO struct {
	ReviewerID    string `json:"reviewer_id"`
	ReviewerName  string `json:"reviewer_name"`
	ReviewedAt    string `json:"reviewed_at"`
	Justification string `json:"justification"`
}

// ReviewRequest is the body of approve and reject. The reviewer is the
// caller's identity.
type ReviewRequest struct {
	Justification string `json:"justification"`
}

// ReviewResponse carries the reviewed request and the refreshed queue of
// pending requests.
type ReviewResponse struct {
	Request SelfServiceRequestDTO   `json:"request"`
	Pending []SelfServiceRequestDTO `json:"pending"`
}

// AuditEntryDTO represents one audit entry.
type AuditEntryDTO struct {
	ID          string         `json:"id"`
	At          string         `json:"at"`
	ActorID     string         `json:"actor_id"`
	Action      string         `json:"action"`
	SubjectType string         `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	Details     map[string]any `json:"details,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details any               `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toIssueResponse(res *issuance.Result) IssueResponse {
	c := res.Counts()
	out := IssueResponse{
		RequestID: res.RequestID,
		Status:    string(res.Status()),
		Summary:   res.Summary(),
		Counts: CountsDTO{
			Requested:      c.Requested,
			Issued:         c.Issued,
			NotIssued:      c.NotIssued,
			PersistFailed:  c.PersistFailed,
			CodeRejected:   c.CodeRejected,
			Notified:       c.Notified,
			NotNotified:    c.NotNotified,
			EncodeFailed:   c.EncodeFailed,
			DocumentFailed: c.DocumentFailed,
		},
		Outcomes: make([]OutcomeDTO, len(res.Outcomes)),
	}
	for i, o := range res.Outcomes {
		dto := OutcomeDTO{
			Index:         o.Index,
			BenefitID:     string(o.BenefitID),
			BenefitName:   o.BenefitName,
			Issued:        o.Issued,
			Encoded:       o.Encoded,
			DocumentReady: o.DocumentReady,
			Notified:      o.Notified,
		}
		if o.Issued && o.Voucher != nil {
			v := toVoucherDTO(*o.Voucher)
			dto.Voucher = &v
		}
		for _, f := range o.Failures {
			dto.Failures = append(dto.Failures, FailureDTO{
				Stage:  string(f.Stage),
				Hard:   f.Hard,
				Code:   f.Code,
				Reason: f.Reason,
			})
		}
		out.Outcomes[i] = dto
	}
	return out
}

func toVoucherDTO(v benefits.Voucher) VoucherDTO {
	dto := VoucherDTO{
		ID:                 int64(v.ID),
		Code:               v.Code,
		Status:             string(v.Status),
		IssuedAt:           v.IssuedAt.Format(time.RFC3339),
		ExpiresAt:          v.ExpiresAt.Format(time.RFC3339),
		EmployeeNumber:     string(v.Employee.Number),
		EmployeeName:       v.Employee.Name,
		EmployeeEmail:      v.Employee.Email,
		EmployeeDepartment: v.Employee.Department,
		BenefitID:          string(v.Benefit.ID),
		BenefitName:        v.Benefit.Name,
		Value:              v.Value.StringFixed(2),
		Justification:      v.Justification,
		Urgent:             v.Urgent,
		CreatedBy:          v.CreatedBy,
		CancelReason:       v.CancelReason,
	}
	if v.RedeemedAt != nil {
		s := v.RedeemedAt.Format(time.RFC3339)
		dto.RedeemedAt = &s
	}
	return dto
}

func toVoucherDTOs(vs []benefits.Voucher) []VoucherDTO {
	out := make([]VoucherDTO, len(vs))
	for i, v := range vs {
		out[i] = toVoucherDTO(v)
	}
	return out
}

func toEmployeeDTO(e benefits.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		EmployeeNumber: string(e.Number),
		Name:           e.Name,
		Email:          e.Email,
		Department:     e.Department,
		Role:           e.Role,
		Active:         e.Active(),
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.Format(dateLayout)
	}
	if e.TerminatedAt != nil {
		s := e.TerminatedAt.Format(dateLayout)
		dto.TerminatedAt = &s
	}
	return dto
}

func toBenefitDTO(b benefits.BenefitDefinition) BenefitDTO {
	return BenefitDTO{
		ID:          string(b.ID),
		Name:        b.Name,
		Description: b.Description,
		Value:       b.Value.StringFixed(2),
		Active:      b.Active,
	}
}

func toRequestDTO(r selfservice.Request) SelfServiceRequestDTO {
	dto := SelfServiceRequestDTO{
		ID:             r.ID,
		EmployeeNumber: r.Requester.EmployeeNumber,
		RequesterName:  r.Requester.Name,
		Department:     r.Requester.Department,
		Role:           r.Requester.Role,
		Category:       string(r.Category),
		Description:    r.Description,
		SubmittedAt:    r.SubmittedAt.Format(time.RFC3339),
		Status:         string(r.Status),
	}
	if r.Review != nil {
		dto.Review = &ReviewDTO{
			ReviewerID:    r.Review.Reviewer.ID,
			ReviewerName:  r.Review.Reviewer.Name,
			ReviewedAt:    r.Review.ReviewedAt.Format(time.RFC3339),
			Justification: r.Review.Justification,
		}
	}
	return dto
}

func toRequestDTOs(rs []selfservice.Request) []SelfServiceRequestDTO {
	out := make([]SelfServiceRequestDTO, len(rs))
	for i, r := range rs {
		out[i] = toRequestDTO(r)
	}
	return out
}

func toAuditEntryDTO(e audit.Entry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:          e.ID,
		At:          e.At.Format(time.RFC3339),
		ActorID:     e.ActorID,
		Action:      string(e.Action),
		SubjectType: e.SubjectType,
		SubjectID:   e.SubjectID,
		Details:     e.Details,
	}
}
