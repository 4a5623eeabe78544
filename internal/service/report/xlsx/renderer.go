package xlsx

import (
	"bytes"
	"fmt"

	"github.com/kubev2v/wave-planner/internal/service/report/types"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) SupportedFormat() types.ReportFormat {
	return types.ReportFormatXLSX
}

func (r *Renderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Render writes one sheet per table with a bold, frozen header row.
func (r *Renderer) Render(data *types.PlanData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, table := range data.Tables() {
		index, err := f.NewSheet(table.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", table.Name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := r.writeTable(f, table, headerStyle); err != nil {
			return nil, err
		}
	}
	_ = f.DeleteSheet(defaultSheet)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) writeTable(f *excelize.File, table types.Table, headerStyle int) error {
	headers := make([]any, len(table.Headers))
	for i, h := range table.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(table.Name, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s headers: %w", table.Name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(table.Name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s headers: %w", table.Name, err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(table.Name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", table.Name, i+1, err)
		}
	}

	return f.SetPanes(table.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
