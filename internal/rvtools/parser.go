// Package rvtools reads the VM inventory out of an RVTools export. Only the
// columns the planner scores and estimates on are read; other sheets are
// ignored.
package rvtools

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetInfo     = "vInfo"
	sheetDisk     = "vDisk"
	sheetNetwork  = "vNetwork"
	sheetSnapshot = "vSnapshot"
)

var ErrNoVMSheet = errors.New("rvtools export has no vInfo sheet")

// ParseVMs returns one planner VM per vInfo row. Templates are kept but
// excluded from migration.
func ParseVMs(content []byte) ([]planner.VM, error) {
	excelFile, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("error opening Excel file: %w", err)
	}
	defer excelFile.Close()

	sheets := excelFile.GetSheetList()
	if !slices.Contains(sheets, sheetInfo) {
		return nil, ErrNoVMSheet
	}

	vms := processVMInfo(
		readSheet(excelFile, sheets, sheetInfo),
		readSheet(excelFile, sheets, sheetDisk),
		readSheet(excelFile, sheets, sheetNetwork),
		readSheet(excelFile, sheets, sheetSnapshot),
	)
	zap.S().Named("rvtools").Infow("parsed rvtools export", "vms", len(vms), "sheets", len(sheets))
	return vms, nil
}
