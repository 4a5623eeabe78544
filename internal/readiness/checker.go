package readiness

import (
	"sort"
)

type Checker struct {
	rules Rules
}

func NewChecker(rules Rules) (*Checker, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Checker{rules: rules}, nil
}

// Check evaluates every requirement against the snapshot. Duplicate findings
// for the same scope, type and resource are reported once.
func (c *Checker) Check(reqs []Requirement, snap Snapshot) []Gap {
	idx := newIndex(snap)
	seen := make(map[string]bool)
	var gaps []Gap

	for _, r := range reqs {
		for _, chk := range checks {
			severity, ok := c.rules[chk.gapType]
			if !ok {
				continue
			}
			for _, f := range chk.fn(r, idx) {
				g := Gap{
					Scope:    r.Scope,
					Type:     chk.gapType,
					Resource: f.resource,
					Severity: severity,
					Message:  f.message,
				}
				if seen[g.Key()] {
					continue
				}
				seen[g.Key()] = true
				gaps = append(gaps, g)
			}
		}
	}

	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Key() < gaps[j].Key() })
	return gaps
}

// Reconcile merges a fresh check result into the stored records. Gaps still
// detected keep their resolution state, open gaps no longer detected are
// resolved automatically, and new gaps start open.
func Reconcile(existing []Record, detected []Gap) []Record {
	byKey := make(map[string]Record, len(existing))
	for _, r := range existing {
		byKey[r.Key()] = r
	}

	out := make([]Record, 0, len(existing)+len(detected))
	current := make(map[string]bool, len(detected))
	for _, g := range detected {
		current[g.Key()] = true
		prev, ok := byKey[g.Key()]
		switch {
		case !ok:
			out = append(out, Record{Gap: g, Status: StatusOpen})
		case prev.AutoResolved:
			// The resource disappeared again.
			out = append(out, Record{Gap: g, Status: StatusOpen})
		default:
			out = append(out, Record{Gap: g, Status: prev.Status})
		}
	}

	for _, r := range existing {
		if current[r.Key()] {
			continue
		}
		if r.Status == StatusOpen {
			r.Status = StatusResolved
			r.AutoResolved = true
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Blocking returns the open critical records attached to one of the scopes.
// Records with an empty scope apply to every scope.
func Blocking(records []Record, scopes []string) []Record {
	in := set(scopes)
	var out []Record
	for _, r := range records {
		if r.Status != StatusOpen || r.Severity != SeverityCritical {
			continue
		}
		if r.Scope == "" || in[r.Scope] {
			out = append(out, r)
		}
	}
	return out
}

// CountOpen counts open records per severity.
func CountOpen(records []Record) map[Severity]int {
	counts := map[Severity]int{SeverityCritical: 0, SeverityWarning: 0, SeverityInfo: 0}
	for _, r := range records {
		if r.Status == StatusOpen {
			counts[r.Severity]++
		}
	}
	return counts
}
