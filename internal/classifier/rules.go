package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	FieldGuestOS       = "guest_os"
	FieldPowerState    = "power_state"
	FieldName          = "name"
	FieldVCPU          = "vcpu"
	FieldRAMGB         = "ram_gb"
	FieldProvisionedGB = "provisioned_gb"
	FieldInUseGB       = "in_use_gb"
	FieldDiskCount     = "disk_count"
	FieldNICCount      = "nic_count"
	FieldSnapshotCount = "snapshot_count"
	FieldSnapshotDepth = "snapshot_depth"
)

var stringFields = map[string]func(VM) string{
	FieldGuestOS:    func(vm VM) string { return vm.GuestOS },
	FieldPowerState: func(vm VM) string { return vm.PowerState },
	FieldName:       func(vm VM) string { return vm.Name },
}

var numericFields = map[string]func(VM) float64{
	FieldVCPU:          func(vm VM) float64 { return float64(vm.VCPU) },
	FieldRAMGB:         func(vm VM) float64 { return vm.RAMGB },
	FieldProvisionedGB: func(vm VM) float64 { return vm.ProvisionedGB },
	FieldInUseGB:       func(vm VM) float64 { return vm.InUseGB },
	FieldDiskCount:     func(vm VM) float64 { return float64(vm.DiskCount) },
	FieldNICCount:      func(vm VM) float64 { return float64(vm.NICCount) },
	FieldSnapshotCount: func(vm VM) float64 { return float64(vm.SnapshotCount) },
	FieldSnapshotDepth: func(vm VM) float64 { return float64(vm.SnapshotDepth) },
}

// compiledRule is a rule ready for evaluation. match returns the matched value
// and whether the rule triggered.
type compiledRule struct {
	Rule
	match func(vm VM) (string, bool)
}

type compileFunc func(r Rule) (func(VM) (string, bool), error)

// compilers is the evaluator table, keyed by rule kind.
var compilers = map[RuleKind]compileFunc{
	RuleKindPattern:   compilePattern,
	RuleKindThreshold: compileThreshold,
	RuleKindFlag:      compileFlag,
	RuleKindPolicy:    compilePolicy,
}

func compileRule(r Rule) (compiledRule, error) {
	if r.ID == "" {
		return compiledRule{}, &ValidationError{Reason: "rule without id"}
	}
	if r.Weight < 0 {
		return compiledRule{}, &ValidationError{RuleID: r.ID, Reason: "weight must be non-negative"}
	}
	compile, ok := compilers[r.Kind]
	if !ok {
		return compiledRule{}, &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("unknown rule kind %q", r.Kind)}
	}
	match, err := compile(r)
	if err != nil {
		return compiledRule{}, err
	}
	return compiledRule{Rule: r, match: match}, nil
}

func compilePattern(r Rule) (func(VM) (string, bool), error) {
	get, ok := stringFields[r.Field]
	if !ok {
		return nil, &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("field %q is not a string field", r.Field)}
	}
	if len(r.Patterns) == 0 {
		return nil, &ValidationError{RuleID: r.ID, Reason: "pattern rule without patterns"}
	}
	res, err := compilePatterns(r.Patterns)
	if err != nil {
		return nil, &ValidationError{RuleID: r.ID, Reason: err.Error()}
	}
	return func(vm VM) (string, bool) {
		v := get(vm)
		if matchAny(res, v) {
			return v, true
		}
		return "", false
	}, nil
}

func compileThreshold(r Rule) (func(VM) (string, bool), error) {
	get, ok := numericFields[r.Field]
	if !ok {
		return nil, &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("field %q is not a numeric field", r.Field)}
	}
	return func(vm VM) (string, bool) {
		v := get(vm)
		if v >= r.Min {
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
		return "", false
	}, nil
}

func compileFlag(r Rule) (func(VM) (string, bool), error) {
	if r.Field == "" {
		return nil, &ValidationError{RuleID: r.ID, Reason: "flag rule without field"}
	}
	return func(vm VM) (string, bool) {
		for _, f := range vm.Flags {
			if strings.EqualFold(f, r.Field) {
				return r.Field, true
			}
		}
		return "", false
	}, nil
}

// compilePatterns compiles case-insensitive regular expressions.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchAny(res []*regexp.Regexp, v string) bool {
	if v == "" {
		return false
	}
	for _, re := range res {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}
