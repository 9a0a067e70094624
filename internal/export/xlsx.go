// Package export renders normalized mail records into a styled xlsx
// spreadsheet. Pure formatting; it never reorders or rewrites records.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/acuervo/mailexport/internal/mail/types"
)

// ErrNoRecords is returned when there is nothing to export; no file is
// written in that case.
var ErrNoRecords = errors.New("no records to export")

var columns = []string{"Date", "Username", "Domain", "Subject"}

// maxSheetName is the xlsx limit on sheet name length.
const maxSheetName = 31

// Writer is the spreadsheet record sink.
type Writer struct {
	log *zap.SugaredLogger
}

func NewWriter(log *zap.SugaredLogger) *Writer {
	return &Writer{log: log}
}

// FileName derives the destination file name purely from the account
// address and the query window.
func FileName(address string, w types.Window) string {
	const day = "20060102"
	return fmt.Sprintf("sent_emails_%s_%s%s.xlsx",
		strings.ReplaceAll(address, "@", "_at_"),
		w.Start.Format(day),
		w.End.Format(day))
}

// Write renders records to destination in their given order. accountLabel
// names the sheet.
func (wr *Writer) Write(records []types.MailRecord, destination, accountLabel string) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(accountLabel)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	widths := make([]int, len(columns))
	for i, c := range columns {
		header[i] = c
		widths[i] = len(c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header row: %w", err)
	}

	for i, rec := range records {
		row := []interface{}{rec.SentAt, rec.RecipientLocalPart, rec.RecipientDomain, rec.Subject}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
		for col, v := range row {
			if n := len(fmt.Sprint(v)); n > widths[col] {
				widths[col] = n
			}
		}
	}

	styleID, err := f.NewStyle(headerStyle())
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", styleID); err != nil {
		return fmt.Errorf("styling header row: %w", err)
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(width+2)); err != nil {
			return fmt.Errorf("sizing column %s: %w", col, err)
		}
	}

	if err := f.SaveAs(destination); err != nil {
		return fmt.Errorf("saving %s: %w", destination, err)
	}
	wr.log.Infow("export written",
		"file", destination,
		"records", len(records))
	return nil
}

func headerStyle() *excelize.Style {
	border := func(t string) excelize.Border {
		return excelize.Border{Type: t, Color: "000000", Style: 1}
	}
	return &excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			border("left"), border("right"), border("top"), border("bottom"),
		},
	}
}

func sheetName(label string) string {
	name := "Sent Emails - " + label
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
