package render_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefits"
	"github.com/warp/benefit-engine/render"
)

func testVoucher() benefits.Voucher {
	issued := time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC)
	return benefits.Voucher{
		ID:        1,
		Code:      "VCH-0123456789ABCDEF",
		IssuedAt:  issued,
		ExpiresAt: issued.AddDate(0, 0, 30),
		Employee:  benefits.EmployeeSnapshot{Number: "E-1001", Name: "Ana Souza", Email: "ana@example.com"},
		Benefit:   benefits.BenefitSnapshot{ID: "meal", Name: "Vale Refeição"},
		Value:     decimal.RequireFromString("35.00"),
		Urgent:    true,
		Status:    benefits.StatusIssued,
	}
}

func TestPDFRenderer_Render(t *testing.T) {
	// GIVEN: An issued voucher and its QR image
	// WHEN: Rendering it
	// THEN: A PDF named after the code is produced, containing the code

	v := testVoucher()
	qr, err := benefits.NewQREncoder().Encode(benefits.NewPayload(v, "benefits-portal"))
	require.NoError(t, err)

	r := render.NewPDFRenderer("")
	r.Compress = false

	art, err := r.Render(context.Background(), render.Document{Voucher: v, QRCode: qr, Issuer: "benefits-portal"})
	require.NoError(t, err)

	assert.Equal(t, "voucher-VCH-0123456789ABCDEF.pdf", art.FileName)
	assert.Equal(t, render.ContentTypePDF, art.ContentType)
	assert.True(t, bytes.HasPrefix(art.Data, []byte("%PDF-")))
	assert.True(t, bytes.Contains(art.Data, []byte("VCH-0123456789ABCDEF")))
}

func TestPDFRenderer_WithoutQRCode(t *testing.T) {
	art, err := render.NewPDFRenderer("Portal").Render(context.Background(), render.Document{Voucher: testVoucher()})
	require.NoError(t, err)
	assert.NotEmpty(t, art.Data)
}

func TestPDFRenderer_EmptyCode(t *testing.T) {
	v := testVoucher()
	v.Code = ""

	_, err := render.NewPDFRenderer("").Render(context.Background(), render.Document{Voucher: v})
	assert.ErrorIs(t, err, render.ErrEmptyDocument)
}

func TestPDFRenderer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := render.NewPDFRenderer("").Render(ctx, render.Document{Voucher: testVoucher()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"35":      "R$ 35,00",
		"120.5":   "R$ 120,50",
		"1234.5":  "R$ 1.234,50",
		"1000000": "R$ 1.000.000,00",
		"0":       "R$ 0,00",
		"-12.345": "-R$ 12,35",
		"999.999": "R$ 1.000,00",
	}
	for in, want := range cases {
		assert.Equal(t, want, render.FormatBRL(decimal.RequireFromString(in)), in)
	}
}
