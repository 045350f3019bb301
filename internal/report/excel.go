package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetName 导出工作表名
const SheetName = "Countdowns"

// CountdownHeader 导出表头
var CountdownHeader = []string{
	"Device",
	"Online",
	"Health",
	"Remaining (s)",
	"Remaining",
	"End Date",
	"Default Duration",
	"Last Penalty Check",
	"Last Seen",
}

var columnWidths = []float64{22, 10, 16, 16, 18, 20, 18, 22, 22}

// CountdownRow 一台设备的导出行
type CountdownRow struct {
	Device           string
	Online           bool
	Health           string
	Remaining        int64
	Pretty           string
	EndsAt           time.Time
	DefaultDuration  string
	LastPenaltyCheck time.Time // 零值表示从未惩罚
	LastSeen         time.Time // 零值表示没有遥测
}

// GenerateCountdownReport 生成设备倒计时 Excel 报表
func GenerateCountdownReport(rows []CountdownRow) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range CountdownHeader {
		if err := setCellValue(f, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(CountdownHeader), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, r := range rows {
		row := i + 2 // 第1行是表头
		values := []interface{}{
			r.Device,
			yesNo(r.Online),
			r.Health,
			r.Remaining,
			r.Pretty,
			formatTime(r.EndsAt, "2006-01-02"),
			r.DefaultDuration,
			formatTime(r.LastPenaltyCheck, "2006-01-02 15:04:05"),
			formatTime(r.LastSeen, "2006-01-02 15:04:05"),
		}
		for col, v := range values {
			if err := setCellValue(f, col+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(SheetName, cell, value)
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
