package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "mhp-cloud/internal/billing/domain"
)

// BuildBillPDF renders a minimal PDF for a utility bill.
func BuildBillPDF(bill *billing.UtilityBill) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Utility Bill")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Bill: %s", bill.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Park: %s", bill.ParkID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Lot: %s", bill.LotID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s", bill.Period.Start.Format("2006-01-02"), bill.Period.End.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", bill.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Due: %s", bill.DueDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", bill.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if bill.VoidReason != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Void reason: %s", bill.VoidReason))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total Amount (USD): %.2f", bill.TotalAmount()))
	pdf.Ln(8)

	// Charges table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Utility", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Method", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Usage", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, charge := range bill.Charges {
		usage := "-"
		if charge.Usage != nil {
			usage = fmt.Sprintf("%.3f", *charge.Usage)
		}
		pdf.CellFormat(40, 6, string(charge.UtilityType), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, string(charge.Method), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, usage, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", charge.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBillXLSX renders a minimal XLSX for a utility bill.
func BuildBillXLSX(bill *billing.UtilityBill) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	chargesSheet := "charges"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(chargesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Utility Bill")
	_ = f.SetCellValue(summarySheet, "A3", "Bill")
	_ = f.SetCellValue(summarySheet, "B3", bill.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Park")
	_ = f.SetCellValue(summarySheet, "B4", bill.ParkID)
	_ = f.SetCellValue(summarySheet, "A5", "Lot")
	_ = f.SetCellValue(summarySheet, "B5", bill.LotID)
	_ = f.SetCellValue(summarySheet, "A6", "Period Start")
	_ = f.SetCellValue(summarySheet, "B6", bill.Period.Start.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A7", "Period End")
	_ = f.SetCellValue(summarySheet, "B7", bill.Period.End.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A8", "Status")
	_ = f.SetCellValue(summarySheet, "B8", string(bill.Status))
	_ = f.SetCellValue(summarySheet, "A9", "Due Date")
	_ = f.SetCellValue(summarySheet, "B9", bill.DueDate.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A10", "Total Amount")
	_ = f.SetCellValue(summarySheet, "B10", bill.TotalAmount())

	_ = f.SetCellValue(chargesSheet, "A1", "Utility")
	_ = f.SetCellValue(chargesSheet, "B1", "Method")
	_ = f.SetCellValue(chargesSheet, "C1", "Usage")
	_ = f.SetCellValue(chargesSheet, "D1", "Rate")
	_ = f.SetCellValue(chargesSheet, "E1", "Amount")
	for i, charge := range bill.Charges {
		row := i + 2
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("A%d", row), string(charge.UtilityType))
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("B%d", row), string(charge.Method))
		if charge.Usage != nil {
			_ = f.SetCellValue(chargesSheet, fmt.Sprintf("C%d", row), *charge.Usage)
		}
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("D%d", row), charge.Rate)
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("E%d", row), charge.Amount)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
