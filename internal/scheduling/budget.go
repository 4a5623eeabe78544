package scheduling

import "math"

const (
	DefaultWorkingHoursPerDay = 8.0
	DefaultWorkingDaysPerWeek = 5
	DefaultConcurrency        = 16
)

// WorkingDays is the number of working days in the project window, at least one.
func WorkingDays(p Params) int {
	perWeek := p.WorkingDaysPerWeek
	if perWeek <= 0 || perWeek > 7 {
		perWeek = DefaultWorkingDaysPerWeek
	}
	days := int(math.Floor(float64(p.DurationDays) * float64(perWeek) / 7))
	if days < 1 {
		return 1
	}
	return days
}

// VMsPerDay returns the operator value when set. Otherwise the migration-hours
// budget (hours/day x working days x concurrent slots) is divided by the average
// per-VM duration and spread over the working days, which reduces to
// floor(hours/day x slots / average hours). The result is at least one.
func VMsPerDay(p Params, avgHours float64) int {
	if p.TargetVMsPerDay > 0 {
		return p.TargetVMsPerDay
	}
	concurrency := p.ConcurrencyCeiling
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if avgHours <= 0 {
		return concurrency
	}
	hours := p.WorkingHoursPerDay
	if hours <= 0 {
		hours = DefaultWorkingHoursPerDay
	}

	days := WorkingDays(p)
	budgetHours := hours * float64(days) * float64(concurrency)
	n := int(math.Floor(budgetHours / avgHours / float64(days)))
	if n < 1 {
		return 1
	}
	return n
}

// waveCapacity bounds a wave by the daily pacing and the cohort concurrency ceiling.
func waveCapacity(vmsPerDay int, c Cohort, p Params) int {
	ceiling := p.ConcurrencyCeiling
	if c.ConcurrencyCeiling > 0 {
		ceiling = c.ConcurrencyCeiling
	}
	if ceiling <= 0 {
		ceiling = DefaultConcurrency
	}
	if vmsPerDay < ceiling {
		return vmsPerDay
	}
	return ceiling
}
