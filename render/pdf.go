/*
pdf.go - Printable voucher documents

PURPOSE:
  Turns one issued voucher plus its encoded QR image into a single-page PDF
  the employee can print or show on a phone. The document is rendered
  in memory and handed to the dispatcher as an attachment; nothing is
  written to disk.

CONTENTS:
  - portal / issuer heading
  - employee name and number
  - benefit name and value (frozen at issuance)
  - voucher code in large type
  - issue and expiry dates
  - justification and urgency flag, when present
  - the QR image

SEE ALSO:
  - benefits/payload.go: the encoded payload
  - notify/http.go: where the artifact is attached
*/
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/benefits"
)

const ContentTypePDF = "application/pdf"

var ErrEmptyDocument = errors.New("document has no voucher code")

// Document is everything needed to render one voucher.
type Document struct {
	Voucher benefits.Voucher
	QRCode  []byte // PNG
	Issuer  string
}

// Artifact is a rendered file.
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Renderer produces a printable artifact for one voucher.
type Renderer interface {
	Render(ctx context.Context, doc Document) (Artifact, error)
}

// PDFRenderer renders A4 portrait vouchers.
type PDFRenderer struct {
	// Title is printed at the top of every voucher.
	Title string
	// Location formats dates on the document; nil means UTC.
	Location *time.Location
	// Compress toggles stream compression; tests turn it off to search text.
	Compress bool
}

func NewPDFRenderer(title string) *PDFRenderer {
	return &PDFRenderer{Title: title, Compress: true}
}

// FileName returns the attachment name for a voucher code.
func FileName(code string) string {
	return "voucher-" + code + ".pdf"
}

func (r *PDFRenderer) Render(ctx context.Context, doc Document) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	v := doc.Voucher
	if v.Code == "" {
		return Artifact{}, ErrEmptyDocument
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetCreationDate(v.IssuedAt)
	pdf.SetModificationDate(v.IssuedAt)
	pdf.SetTitle("Voucher "+v.Code, true)
	pdf.SetCreator(doc.Issuer, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.title()), "", 1, "C", false, 0, "")
	if doc.Issuer != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(doc.Issuer), "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 14, v.Code, "1", 1, "C", false, 0, "")
	pdf.Ln(4)

	field := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 7, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 7, tr(value), "", "L", false)
	}

	field("Colaborador:", v.Employee.Name)
	field("Matrícula:", string(v.Employee.Number))
	field("Benefício:", v.Benefit.Name)
	field("Valor:", FormatBRL(v.Value))
	field("Emitido em:", r.date(v.IssuedAt))
	field("Válido até:", r.date(v.ExpiresAt))
	if strings.TrimSpace(v.Justification) != "" {
		field("Justificativa:", v.Justification)
	}
	if v.Urgent {
		field("Prioridade:", "Urgente")
	}

	if len(doc.QRCode) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		name := "qr-" + v.Code
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(doc.QRCode))
		pdf.Ln(6)
		x := (210 - 60) / 2.0
		pdf.ImageOptions(name, x, pdf.GetY(), 60, 60, true, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Artifact{}, fmt.Errorf("render voucher %s: %w", v.Code, err)
	}

	return Artifact{
		FileName:    FileName(v.Code),
		ContentType: ContentTypePDF,
		Data:        buf.Bytes(),
	}, nil
}

func (r *PDFRenderer) title() string {
	if r.Title == "" {
		return "Voucher de Benefício"
	}
	return r.Title
}

func (r *PDFRenderer) date(t time.Time) string {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006")
}

// FormatBRL renders a value as Brazilian currency, e.g. "R$ 1.234,50".
func FormatBRL(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}
