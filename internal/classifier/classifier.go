package classifier

import (
	"fmt"
	"regexp"
	"strconv"
)

// Classifier evaluates one risk configuration version against VMs.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	cfg          Config
	rules        []compiledRule
	coldRequired []*regexp.Regexp
	warmRisky    []*regexp.Regexp
}

// New compiles cfg. It returns a *ValidationError when the configuration is malformed.
func New(cfg Config) (*Classifier, error) {
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = DefaultMaxScore
	}
	if cfg.GreenThreshold < 0 || cfg.YellowThreshold < cfg.GreenThreshold {
		return nil, &ValidationError{Reason: fmt.Sprintf("thresholds must satisfy 0 <= green (%d) <= yellow (%d)", cfg.GreenThreshold, cfg.YellowThreshold)}
	}

	c := &Classifier{cfg: cfg}
	seen := make(map[string]struct{}, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if _, dup := seen[r.ID]; dup {
			return nil, &ValidationError{RuleID: r.ID, Reason: "duplicate rule id"}
		}
		seen[r.ID] = struct{}{}

		cr, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, cr)
	}

	var err error
	if c.coldRequired, err = compilePatterns(cfg.ColdRequiredPatterns); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("cold required patterns: %v", err)}
	}
	if c.warmRisky, err = compilePatterns(cfg.WarmRiskyPatterns); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("warm risky patterns: %v", err)}
	}
	return c, nil
}

func (c *Classifier) Config() Config {
	return c.cfg
}

// Classify scores vm. The result only depends on vm and the configuration:
// rules are reported in configuration order.
func (c *Classifier) Classify(vm VM) Result {
	score := 0
	reasons := make([]string, 0)
	for _, r := range c.rules {
		value, ok := r.match(vm)
		if !ok {
			continue
		}
		score += r.Weight
		reasons = append(reasons, fmt.Sprintf("%s: %s", r.ID, value))
	}
	if score > c.cfg.MaxScore {
		score = c.cfg.MaxScore
	}

	res := Result{
		Score:    score,
		Category: c.Category(score),
		Reasons:  reasons,
	}
	res.ComputedMode, res.ModeReasons = c.recommendMode(vm)

	res.Mode, res.ModeSource = res.ComputedMode, ProvenanceComputed
	if vm.ManualMode != nil {
		res.Mode, res.ModeSource = *vm.ManualMode, ProvenanceManual
	}
	return res
}

// Category maps a score to its risk category. A score equal to a threshold
// falls into the more severe category.
func (c *Classifier) Category(score int) Category {
	switch {
	case score < c.cfg.GreenThreshold:
		return CategoryGreen
	case score < c.cfg.YellowThreshold:
		return CategoryYellow
	default:
		return CategoryRed
	}
}

func (c *Classifier) recommendMode(vm VM) (Mode, []string) {
	for _, m := range c.coldRequired {
		if vm.GuestOS != "" && m.MatchString(vm.GuestOS) {
			return ModeCold, []string{fmt.Sprintf("cold_required_os: %s", vm.GuestOS)}
		}
	}

	var reasons []string
	for _, m := range c.warmRisky {
		if vm.GuestOS != "" && m.MatchString(vm.GuestOS) {
			reasons = append(reasons, fmt.Sprintf("warm_risky_os: %s", vm.GuestOS))
			break
		}
	}
	if c.cfg.SnapshotDepthCritical > 0 && vm.SnapshotDepth >= c.cfg.SnapshotDepthCritical {
		reasons = append(reasons, "snapshot_depth_critical: "+strconv.Itoa(vm.SnapshotDepth))
	}
	if len(reasons) > 0 {
		return ModeCold, reasons
	}
	return ModeWarm, []string{"warm_eligible"}
}
