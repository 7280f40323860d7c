package benefits_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var issuedAt = time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC)

func activeEmployee() benefits.Employee {
	return benefits.Employee{
		Number:     "E-1001",
		Name:       "Ana Souza",
		Email:      "ana.souza@example.com",
		Department: "Finance",
		HireDate:   time.Date(2020, time.January, 6, 0, 0, 0, 0, time.UTC),
	}
}

func meal() benefits.BenefitDefinition {
	return benefits.BenefitDefinition{ID: "meal", Name: "Vale Refeição", Value: decimal.RequireFromString("35.00"), Active: true}
}

func gym() benefits.BenefitDefinition {
	return benefits.BenefitDefinition{ID: "gym", Name: "Academia", Value: decimal.RequireFromString("120.50"), Active: true}
}

// failingCatalog always errors, standing in for an unreachable database.
type failingCatalog struct{}

func (failingCatalog) ListBenefits(context.Context, []benefits.BenefitID) ([]benefits.BenefitDefinition, error) {
	return nil, errors.New("connection refused")
}
func (failingCatalog) ListActiveBenefits(context.Context) ([]benefits.BenefitDefinition, error) {
	return nil, errors.New("connection refused")
}
func (failingCatalog) SaveBenefit(context.Context, benefits.BenefitDefinition) error {
	return errors.New("connection refused")
}

// =============================================================================
// CODE TESTS
// =============================================================================

func TestNewCode_Format(t *testing.T) {
	code, err := benefits.NewCode(nil)
	require.NoError(t, err)

	assert.Len(t, code, benefits.CodeLength)
	assert.Regexp(t, `^VCH-[0-9A-F]{16}$`, code)
	assert.NoError(t, benefits.ValidateCode(code))
}

func TestNewCode_DeterministicReader(t *testing.T) {
	r := bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03})
	code, err := benefits.NewCode(r)
	require.NoError(t, err)
	assert.Equal(t, "VCH-DEADBEEF00010203", code)
}

func TestNewCode_ShortReader(t *testing.T) {
	_, err := benefits.NewCode(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}

func TestNewCode_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := benefits.NewCode(nil)
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestValidateCode_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"short":      "VCH-ABC",
		"prefix":     "VXH-0123456789ABCDEF",
		"lowercase":  "VCH-0123456789abcdef",
		"non-hex":    "VCH-0123456789ABCDEG",
		"too long":   "VCH-0123456789ABCDEF0",
		"no divider": "VCH00123456789ABCDEF",
	}
	for name, code := range cases {
		code := code
		t.Run(name, func(t *testing.T) {
			err := benefits.ValidateCode(code)
			assert.ErrorIs(t, err, benefits.ErrInvalidCode)
		})
	}
}

// =============================================================================
// ELIGIBILITY TESTS
// =============================================================================

func TestEligibility_Statuses(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	terminated := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	gone := activeEmployee()
	gone.Number = "E-2"
	gone.TerminatedAt = &terminated

	noEmail := activeEmployee()
	noEmail.Number = "E-3"
	noEmail.Email = "  "

	require.NoError(t, store.SaveEmployee(ctx, activeEmployee()))
	require.NoError(t, store.SaveEmployee(ctx, gone))
	require.NoError(t, store.SaveEmployee(ctx, noEmail))

	v := &benefits.EligibilityValidator{Directory: store}

	cases := []struct {
		id      benefits.EmployeeID
		status  benefits.EligibilityStatus
		wantErr error
	}{
		{"E-1001", benefits.Eligible, nil},
		{"E-2", benefits.Inactive, benefits.ErrEmployeeInactive},
		{"E-3", benefits.Incomplete, benefits.ErrEmployeeIncomplete},
		{"E-404", benefits.NotFound, benefits.ErrEmployeeNotFound},
		{"", benefits.NotFound, benefits.ErrEmployeeNotFound},
	}
	for _, tc := range cases {
		status, _, _, err := v.Check(ctx, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.status, status, "employee %q", tc.id)

		_, err = v.Require(ctx, tc.id)
		if tc.wantErr == nil {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, tc.wantErr)
			assert.True(t, benefits.IsRequestFatal(err))
		}
	}
}

func TestEligibility_IncompleteListsMissingFields(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := activeEmployee()
	e.Name = ""
	e.Email = ""
	require.NoError(t, store.SaveEmployee(ctx, e))

	_, err := (&benefits.EligibilityValidator{Directory: store}).Require(ctx, e.Number)

	var eerr *benefits.EligibilityError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, []string{"name", "email"}, eerr.Missing)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func newCatalog(t *testing.T, defs ...benefits.BenefitDefinition) *benefits.Catalog {
	t.Helper()
	store := memory.New()
	for _, d := range defs {
		require.NoError(t, store.SaveBenefit(context.Background(), d))
	}
	return &benefits.Catalog{Store: store}
}

func TestCatalog_LoadSelected_PreservesOrderAndDuplicates(t *testing.T) {
	c := newCatalog(t, meal(), gym())

	got, err := c.LoadSelected(context.Background(), []benefits.BenefitID{"gym", "meal", "gym"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, benefits.BenefitID("gym"), got[0].ID)
	assert.Equal(t, benefits.BenefitID("meal"), got[1].ID)
	assert.Equal(t, benefits.BenefitID("gym"), got[2].ID)
	assert.True(t, got[0].Value.Equal(decimal.RequireFromString("120.50")))
}

func TestCatalog_LoadSelected_EmptySelection(t *testing.T) {
	_, err := newCatalog(t, meal()).LoadSelected(context.Background(), nil)
	assert.ErrorIs(t, err, benefits.ErrEmptySelection)
}

func TestCatalog_LoadSelected_MissingOrInactive(t *testing.T) {
	// GIVEN: One unknown ID and one deactivated definition
	// WHEN: Loading the selection
	// THEN: A mismatch error names both, in selection order

	retired := gym()
	retired.Active = false
	c := newCatalog(t, meal(), retired)

	_, err := c.LoadSelected(context.Background(), []benefits.BenefitID{"meal", "gym", "spa"})

	var mismatch *benefits.CatalogMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []benefits.BenefitID{"gym", "spa"}, mismatch.Missing)
	assert.ErrorIs(t, err, benefits.ErrCatalogMismatch)
}

func TestCatalog_LoadSelected_Unavailable(t *testing.T) {
	c := &benefits.Catalog{Store: failingCatalog{}}

	_, err := c.LoadSelected(context.Background(), []benefits.BenefitID{"meal"})
	assert.ErrorIs(t, err, benefits.ErrCatalogUnavailable)
	assert.Equal(t, "catalog_unavailable", benefits.ErrorCode(err))
}

// =============================================================================
// PAYLOAD TESTS
// =============================================================================

func TestQREncoder_EncodesPNG(t *testing.T) {
	v := benefits.Voucher{Code: "VCH-0123456789ABCDEF", IssuedAt: issuedAt, Benefit: meal().Snapshot()}
	p := benefits.NewPayload(v, "benefits-portal")

	data, err := benefits.NewQREncoder().Encode(p)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestQREncoder_EmptyCode(t *testing.T) {
	_, err := benefits.NewQREncoder().Encode(benefits.Payload{BenefitID: "meal"})
	assert.Error(t, err)
}

func TestPayload_RoundTrip(t *testing.T) {
	v := benefits.Voucher{Code: "VCH-0123456789ABCDEF", IssuedAt: issuedAt, Benefit: meal().Snapshot()}
	p := benefits.NewPayload(v, "benefits-portal")
	assert.Equal(t, "2025-05-02T09:00:00Z", p.IssuedAt)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"VCH-0123456789ABCDEF","benefit_id":"meal","issued_at":"2025-05-02T09:00:00Z","issuer":"benefits-portal"}`, string(raw))

	got, err := benefits.DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodePayload_InvalidCode(t *testing.T) {
	_, err := benefits.DecodePayload([]byte(`{"code":"X","benefit_id":"meal","issued_at":"2025-05-02T09:00:00Z"}`))
	assert.ErrorIs(t, err, benefits.ErrInvalidCode)
}

// =============================================================================
// VOUCHER / ERROR TESTS
// =============================================================================

func validNewVoucher() benefits.NewVoucher {
	return benefits.NewVoucher{
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.AddDate(0, 0, benefits.DefaultValidityDays),
		Employee:  activeEmployee().Snapshot(),
		Benefit:   meal().Snapshot(),
		Status:    benefits.StatusIssued,
		Value:     meal().Value,
		CreatedBy: "E-1001",
		CreatedAt: issuedAt,
	}
}

func TestNewVoucher_Validate(t *testing.T) {
	require.NoError(t, validNewVoucher().Validate())

	noBenefit := validNewVoucher()
	noBenefit.Benefit.ID = ""
	assert.ErrorIs(t, noBenefit.Validate(), benefits.ErrInvalidBenefitReference)

	backwards := validNewVoucher()
	backwards.ExpiresAt = backwards.IssuedAt
	var ierr *benefits.InvalidVoucherError
	require.ErrorAs(t, backwards.Validate(), &ierr)
	assert.Equal(t, "expires_at", ierr.Field)

	pending := validNewVoucher()
	pending.Status = benefits.StatusPending
	assert.Error(t, pending.Validate())
}

func TestVoucher_ExpiredAt(t *testing.T) {
	v := benefits.Voucher{ExpiresAt: issuedAt.AddDate(0, 0, 30)}
	assert.False(t, v.ExpiredAt(issuedAt))
	assert.True(t, v.ExpiredAt(v.ExpiresAt))
}

func TestUserMessage_DistinctPerFatalError(t *testing.T) {
	fatal := []error{
		benefits.ErrNoSession,
		benefits.ErrEmptySelection,
		benefits.ErrEmployeeNotFound,
		benefits.ErrEmployeeInactive,
		benefits.ErrEmployeeIncomplete,
		benefits.ErrCatalogUnavailable,
		benefits.ErrCatalogMismatch,
	}
	seen := make(map[string]error)
	for _, err := range fatal {
		msg := benefits.UserMessage(err)
		if prev, dup := seen[msg]; dup {
			t.Fatalf("%v and %v share message %q", prev, err, msg)
		}
		seen[msg] = err
		assert.True(t, benefits.IsRequestFatal(err))
	}
	assert.False(t, benefits.IsRequestFatal(benefits.ErrDuplicateCode))
}
