package model

// PlannerStats are the row counts exported as gauges.
type PlannerStats struct {
	ProjectsByStatus   map[string]int
	VMsByCategory      map[string]int
	WavesByStatus      map[string]int
	OpenGapsBySeverity map[string]int
}

// GroupCount is one row of a GROUP BY count query.
type GroupCount struct {
	Label string
	Total int
}

func CountsToMap(rows []GroupCount) map[string]int {
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		label := r.Label
		if label == "" {
			label = "unknown"
		}
		out[label] += r.Total
	}
	return out
}
