package rvtools

import (
	"bytes"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var numberRegex = regexp.MustCompile(`[0-9.]+`)

func parseMemoryMB(s string) int64 {
	if s == "" {
		return 0
	}
	cleanS := strings.ReplaceAll(s, ",", "")
	match := numberRegex.FindString(cleanS)
	if match == "" {
		return 0
	}
	if val, err := strconv.ParseFloat(match, 64); err == nil {
		return int64(val)
	}
	return 0
}

func parseIntOrZero(s string) int32 {
	s = strings.ReplaceAll(s, ",", "")
	val, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return int32(val)
}

// parseFormattedInt64 keeps the digits only, RVTools localizes thousand separators.
func parseFormattedInt64(s string) int64 {
	cleanStr := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, strings.TrimSpace(s))

	if cleanStr == "" {
		return 0
	}

	val, err := strconv.ParseInt(cleanStr, 10, 64)
	if err != nil {
		zap.S().Named("rvtools").Warnf("Invalid numeric string: %s", cleanStr)
		return 0
	}
	return val
}

func parseBooleanValue(s string) bool {
	if s == "" {
		return false
	}
	cleanStr := strings.ToLower(strings.TrimSpace(s))
	return cleanStr == "true" || cleanStr == "1" || cleanStr == "yes" || cleanStr == "enabled"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func getColumnValue(row []string, colMap map[string]int, key string) string {
	if idx, exists := colMap[key]; exists && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func buildColumnMap(headers []string) map[string]int {
	colMap := make(map[string]int)
	for i, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header))
		colMap[key] = i
	}
	return colMap
}

func groupRowsByVM(rows [][]string, colMap map[string]int) map[string][][]string {
	vmData := make(map[string][][]string)

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		vmName := getColumnValue(row, colMap, "vm")
		if vmName == "" {
			continue
		}

		vmData[vmName] = append(vmData[vmName], row)
	}

	return vmData
}

func readSheet(excelFile *excelize.File, sheets []string, sheetName string) [][]string {
	if !slices.Contains(sheets, sheetName) {
		return [][]string{}
	}

	rows, err := excelFile.GetRows(sheetName)
	if err != nil {
		zap.S().Named("rvtools").Warnf("Could not read %s sheet: %v", sheetName, err)
		return [][]string{}
	}

	return rows
}

// IsExcelFile reports whether content is a workbook excelize can open.
func IsExcelFile(content []byte) bool {
	if len(content) < 2 {
		return false
	}

	if content[0] == 0x50 && content[1] == 0x4B {
		f, err := excelize.OpenReader(bytes.NewReader(content))
		if err != nil {
			return false
		}
		defer f.Close()
		return true
	}

	return false
}

func splitSheet(rows [][]string) (header []string, data [][]string) {
	if len(rows) == 0 {
		return []string{}, [][]string{}
	}
	return rows[0], rows[1:]
}
