package v1alpha1

func StringToProjectStatus(s string) ProjectStatus {
	switch s {
	case string(ProjectStatusAssessment):
		return ProjectStatusAssessment
	case string(ProjectStatusPlanned):
		return ProjectStatusPlanned
	case string(ProjectStatusApproved):
		return ProjectStatusApproved
	case string(ProjectStatusPreparing):
		return ProjectStatusPreparing
	case string(ProjectStatusReady):
		return ProjectStatusReady
	case string(ProjectStatusExecuting):
		return ProjectStatusExecuting
	case string(ProjectStatusCompleted):
		return ProjectStatusCompleted
	case string(ProjectStatusCancelled):
		return ProjectStatusCancelled
	case string(ProjectStatusArchived):
		return ProjectStatusArchived
	default:
		return ProjectStatusDraft
	}
}

func StringToWaveStatus(s string) WaveStatus {
	switch s {
	case string(WaveStatusPreChecksPassed):
		return WaveStatusPreChecksPassed
	case string(WaveStatusExecuting):
		return WaveStatusExecuting
	case string(WaveStatusValidating):
		return WaveStatusValidating
	case string(WaveStatusComplete):
		return WaveStatusComplete
	case string(WaveStatusFailed):
		return WaveStatusFailed
	case string(WaveStatusCancelled):
		return WaveStatusCancelled
	default:
		return WaveStatusPlanned
	}
}
