// Package exporter renders visit records as XLSX workbooks for the desk
// UI's export download.
package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"vmscli/internal/store"
)

const sheetName = "Visitor Records"

var headers = []string{
	"Pass Number", "Name", "NRIC", "HP No", "Category", "Purpose",
	"Destination", "Company", "Vehicle Number", "Person Visited",
	"Organization", "Check-In Time", "Check-Out Time", "Duration (min)",
	"Remarks",
}

const timeLayout = "2006-01-02 15:04"

// WriteVisitorReport writes the given visits to w as a single-sheet XLSX
// workbook, one row per visit in the order given.
func WriteVisitorReport(w io.Writer, visitors []store.Visitor) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for col, title := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	for i, v := range visitors {
		row := visitorRow(v)
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	if err := f.SetColWidth(sheetName, "A", "O", 18); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func visitorRow(v store.Visitor) []any {
	checkOut := ""
	if v.CheckOutTime != nil {
		checkOut = v.CheckOutTime.Format(timeLayout)
	}
	duration := any("")
	if v.DurationMinutes != nil {
		duration = *v.DurationMinutes
	}
	return []any{
		v.PassNumber, v.Name, v.NRIC, v.HPNo, v.Category, v.Purpose,
		v.Destination, v.Company, v.VehicleNumber, v.PersonVisited,
		v.Organization, v.CheckInTime.Format(timeLayout), checkOut,
		duration, v.Remarks,
	}
}
