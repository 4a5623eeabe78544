package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kubev2v/wave-planner/internal/service/report/types"
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) SupportedFormat() types.ReportFormat {
	return types.ReportFormatCSV
}

func (r *Renderer) ContentType() string {
	return "text/csv"
}

// Render writes every table as a block: a title row, the headers, the rows and
// an empty separator row.
func (r *Renderer) Render(data *types.PlanData) ([]byte, error) {
	var csvRows [][]string

	csvRows = append(csvRows, []string{"MIGRATION WAVE PLAN"})
	csvRows = append(csvRows, []string{fmt.Sprintf("Generated: %s", data.Generated.UTC().Format(time.RFC3339))})
	csvRows = append(csvRows, []string{""})

	for _, table := range data.Tables() {
		csvRows = append(csvRows, []string{strings.ToUpper(table.Name)})
		csvRows = append(csvRows, table.Headers)
		for _, row := range table.Rows {
			csvRows = append(csvRows, r.formatRow(row))
		}
		csvRows = append(csvRows, []string{""})
	}

	return r.convertRowsToCSV(csvRows)
}

func (r *Renderer) formatRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch val := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(val, 'f', -1, 64)
		case string:
			out[i] = val
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}

func (r *Renderer) convertRowsToCSV(csvRows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	for _, row := range csvRows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return buf.Bytes(), nil
}
