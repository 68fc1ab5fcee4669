// Package xlsx renders signature lists as Excel workbooks.
package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Signatures"

// Header is the column order of the export.
var Header = []string{
	"Signed at",
	"First name",
	"Last name",
	"Username",
	"Phone",
	"Language",
	"Status",
	"Verified at",
	"Privacy version",
}

var columnWidths = []float64{20, 18, 18, 22, 16, 10, 12, 20, 15}

const timeLayout = "2006-01-02 15:04"

type exporter struct {
	loc *time.Location
	log zerolog.Logger
}

var _ ports.SignatureExporter = (*exporter)(nil)

// NewExporter creates the workbook exporter. Times are written in loc; nil
// means UTC.
func NewExporter(loc *time.Location, baseLogger *zerolog.Logger) ports.SignatureExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &exporter{
		loc: loc,
		log: baseLogger.With().Str("component", "xlsx_exporter").Logger(),
	}
}

// Export writes the event name in A1, the header in row 2 and one row per
// signature after that.
func (e *exporter) Export(w io.Writer, eventName string, items []*domain.SignatureListItem) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("failed to create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetCellValue(sheetName, "A1", eventName); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", titleStyle); err != nil {
		return err
	}

	for i, h := range Header {
		if err := setCell(f, i+1, 2, h); err != nil {
			return fmt.Errorf("failed to set header cell: %w", err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 2)
	if err := f.SetCellStyle(sheetName, "A2", last, headerStyle); err != nil {
		return err
	}

	for i, item := range items {
		row := i + 3
		for col, value := range e.rowValues(item) {
			if value == "" {
				continue
			}
			if err := setCell(f, col+1, row, value); err != nil {
				return fmt.Errorf("failed to set cell at row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		e.log.Error().Err(err).Msg("Failed to write workbook")
		return err
	}
	e.log.Debug().Int("rows", len(items)).Msg("Signature workbook written")
	return nil
}

func (e *exporter) rowValues(item *domain.SignatureListItem) []any {
	sig := item.Signature
	status, verifiedAt := "Pending", ""
	if sig.VerifiedAt != nil {
		status = "Verified"
		verifiedAt = sig.VerifiedAt.In(e.loc).Format(timeLayout)
	}
	return []any{
		sig.SignedAt.In(e.loc).Format(timeLayout),
		item.GuestFirstName,
		item.GuestLastName,
		item.GuestUsername,
		item.GuestPhone,
		string(sig.Language),
		status,
		verifiedAt,
		sig.PrivacyVersion,
	}
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheetName, cell, value)
}
