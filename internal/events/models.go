package events

import "time"

// PassEvent is published when a planning pass finished, whatever its outcome.
type PassEvent struct {
	ProjectID       string    `json:"project_id"`
	PassID          string    `json:"pass_id"`
	Kind            string    `json:"kind"`
	Status          string    `json:"status"`
	CohortKey       string    `json:"cohort_key,omitempty"`
	VMsAffected     int       `json:"vms_affected"`
	CohortsAffected int       `json:"cohorts_affected"`
	Failures        int       `json:"failures"`
	Error           string    `json:"error,omitempty"`
	FinishedAt      time.Time `json:"finished_at"`
}

// WaveEvent is published on every wave status transition.
type WaveEvent struct {
	ProjectID string `json:"project_id"`
	WaveID    string `json:"wave_id"`
	CohortKey string `json:"cohort_key"`
	Index     int    `json:"index"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// ProjectEvent is published on every project lifecycle transition.
type ProjectEvent struct {
	ProjectID string `json:"project_id"`
	Owner     string `json:"owner"`
	From      string `json:"from"`
	To        string `json:"to"`
}
