package types

import (
	"math"
	"strconv"
)

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
