// Package report exports vouchers as spreadsheets for HR and finance.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/benefit-engine/benefits"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const voucherSheet = "Vouchers"

var voucherHeaders = []string{
	"Código", "Matrícula", "Colaborador", "E-mail", "Departamento",
	"Benefício", "Valor", "Status", "Emitido em", "Válido até",
	"Resgatado em", "Urgente", "Justificativa", "Emitido por",
}

var voucherColWidths = []float64{24, 12, 24, 28, 16, 20, 10, 10, 18, 18, 18, 8, 32, 14}

// VoucherWorkbook builds a one-sheet workbook with one row per voucher and
// a totals row. The caller must Close the returned file.
func VoucherWorkbook(vouchers []benefits.Voucher) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", voucherSheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, err
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, h := range voucherHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(voucherSheet, cell, h)
		f.SetCellStyle(voucherSheet, cell, cell, headerStyle)
	}

	var total float64
	for i, v := range vouchers {
		row := i + 2
		value, _ := v.Value.Float64()
		total += value

		redeemed := ""
		if v.RedeemedAt != nil {
			redeemed = v.RedeemedAt.UTC().Format("2006-01-02 15:04")
		}
		urgent := "Não"
		if v.Urgent {
			urgent = "Sim"
		}

		cells := []any{
			v.Code, string(v.Employee.Number), v.Employee.Name, v.Employee.Email, v.Employee.Department,
			v.Benefit.Name, value, string(v.Status),
			v.IssuedAt.UTC().Format("2006-01-02 15:04"), v.ExpiresAt.UTC().Format("2006-01-02"),
			redeemed, urgent, v.Justification, v.CreatedBy,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(voucherSheet, start, &cells); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		valueCell := fmt.Sprintf("G%d", row)
		if err := f.SetCellStyle(voucherSheet, valueCell, valueCell, moneyStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("style row %d: %w", row, err)
		}
	}

	totalRow := len(vouchers) + 2
	f.SetCellValue(voucherSheet, fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue(voucherSheet, fmt.Sprintf("C%d", totalRow), fmt.Sprintf("%d vouchers", len(vouchers)))
	f.SetCellValue(voucherSheet, fmt.Sprintf("G%d", totalRow), total)
	f.SetCellStyle(voucherSheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("N%d", totalRow), totalStyle)

	for i, w := range voucherColWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(voucherSheet, col, col, w)
	}
	return f, nil
}

// WriteVouchers writes the workbook for vouchers to w.
func WriteVouchers(w io.Writer, vouchers []benefits.Voucher) error {
	f, err := VoucherWorkbook(vouchers)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
