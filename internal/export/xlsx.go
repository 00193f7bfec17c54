// Package export renders a user's bookings as an XLSX workbook.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"staybook/internal/models"
)

const (
	sheetName   = "Bookings"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{"Booking", "Room", "Location", "Check-in", "Check-out", "Nights", "Price", "Status", "Created"}

// FileName returns the attachment name for an export generated at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", now.UTC().Format("20060102_150405"))
}

// Bookings writes one row per booking below a styled header row and a
// trailing total for non-cancelled stays.
func Bookings(bookings []models.Booking) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating style: %w", err)
	}
	cancelledStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006", Strike: true},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating style: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)

	var total float64
	row := 2
	for i := range bookings {
		b := &bookings[i]
		title, location := "", ""
		if b.Room != nil {
			title, location = b.Room.Title, b.Room.Location
		}
		values := []interface{}{
			b.ID,
			title,
			location,
			b.StartDate.Format(models.DateLayout),
			b.EndDate.Format(models.DateLayout),
			b.Nights,
			b.Price,
			b.Status,
			b.CreatedAt.UTC().Format(models.SheetTimeLayout),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		if b.IsCancelled() {
			end, _ := excelize.CoordinatesToCellName(len(headers), row)
			_ = f.SetCellStyle(sheetName, start, end, cancelledStyle)
		} else {
			total += b.Price
		}
		row++
	}

	labelCell, _ := excelize.CoordinatesToCellName(6, row+1)
	totalCell, _ := excelize.CoordinatesToCellName(7, row+1)
	_ = f.SetCellValue(sheetName, labelCell, "Total")
	_ = f.SetCellValue(sheetName, totalCell, total)

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	_ = f.SetColWidth(sheetName, "B", "C", 28)
	_ = f.SetColWidth(sheetName, "D", "I", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}
