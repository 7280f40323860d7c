package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/selfservice"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScanVoucher_RejectsUnknownStatus(t *testing.T) {
	// GIVEN: A stored voucher whose status column was written outside the store
	s := openMemory(t)
	ctx := context.Background()
	at := time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveBenefit(ctx, benefits.BenefitDefinition{
		ID: "meal", Name: "Vale Refeição", Value: decimal.RequireFromString("35"), Active: true,
	}))
	v, err := s.CreateVoucher(ctx, benefits.NewVoucher{
		IssuedAt:  at,
		ExpiresAt: at.AddDate(0, 0, 30),
		Employee:  benefits.EmployeeSnapshot{Number: "E-1001", Name: "Ana Souza", Email: "ana@example.com"},
		Benefit:   benefits.BenefitSnapshot{ID: "meal", Name: "Vale Refeição", Value: decimal.RequireFromString("35")},
		Status:    benefits.StatusIssued,
		Value:     decimal.RequireFromString("35"),
		CreatedBy: "E-1001",
		CreatedAt: at,
	})
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "UPDATE vouchers SET status = 'lost' WHERE id = ?", int64(v.ID))
	require.NoError(t, err)

	// WHEN: Loading it
	got, err := s.GetVoucher(ctx, v.ID)

	// THEN: The load fails instead of returning an unusable voucher
	assert.Nil(t, got)
	assert.ErrorContains(t, err, `unknown status "lost"`)

	_, err = s.ListVouchers(ctx, benefits.VoucherFilter{})
	assert.Error(t, err)
}

func TestScanRequest_RejectsUnknownStatusOrCategory(t *testing.T) {
	cases := []struct {
		name   string
		update string
		want   string
	}{
		{"status", "UPDATE selfservice_requests SET status = 'archived' WHERE id = ?", `unknown status "archived"`},
		{"category", "UPDATE selfservice_requests SET category = 'vacation' WHERE id = ?", `unknown category "vacation"`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := openMemory(t)
			ctx := context.Background()
			require.NoError(t, s.CreateRequest(ctx, selfservice.Request{
				ID:          "req-1",
				Requester:   selfservice.Requester{EmployeeNumber: "E-1001", Name: "Ana Souza"},
				Category:    selfservice.CategoryTimeOff,
				Description: "Folga no dia 12",
				SubmittedAt: time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC),
				Status:      selfservice.StatusPending,
			}))
			_, err := s.db.ExecContext(ctx, tc.update, "req-1")
			require.NoError(t, err)

			got, err := s.GetRequest(ctx, "req-1")

			assert.Nil(t, got)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
