package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	firehistory "firewatch-cloud/internal/firehistory/domain"
	"firewatch-cloud/internal/observability/metrics"
)

const timeLayout = "2006-01-02 15:04:05"

// BuildHistoryXLSX renders a fire history query result as a
// spreadsheet. The registry name is not re-resolved; entries carry the
// codes recorded at ingest time.
func BuildHistoryXLSX(items []firehistory.Item) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	sheet := "fire_history"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"ID", "Market", "Receiver MAC", "Receiver Status", "Repeater ID",
		"Repeater Status", "Chamber", "Temp", "Class", "Registrar",
		"Registered At", "False Alarm", "Note",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}

	for i, item := range items {
		row := i + 2
		values := []any{
			item.ID, item.MarketName, item.ReceiverMAC, item.ReceiverStatus, item.RepeaterID,
			item.RepeaterStatus, item.DetectorChamber, item.DetectorTemp, item.Class, item.Registrar,
			item.RegisteredAt.Format(timeLayout), item.FalseAlarmStatus, item.Note,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(start))
	return buf.Bytes(), nil
}

// BuildHistoryPDF renders a fire history query result as a minimal PDF
// table.
func BuildHistoryPDF(items []firehistory.Item) ([]byte, error) {
	start := time.Now()
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Fire History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Entries: %d", len(items)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(15, 6, "ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Market", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Receiver MAC", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Class", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Registered At", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "False Alarm", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Note", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", item.ID), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, item.MarketName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, item.ReceiverMAC, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, item.Class, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, item.RegisteredAt.Format(timeLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, item.FalseAlarmStatus, "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, item.Note, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(start))
	return buf.Bytes(), nil
}
