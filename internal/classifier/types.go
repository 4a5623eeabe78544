package classifier

import "fmt"

type Category string

const (
	CategoryGreen  Category = "GREEN"
	CategoryYellow Category = "YELLOW"
	CategoryRed    Category = "RED"
)

// Severity orders categories, GREEN being the lowest.
func (c Category) Severity() int {
	switch c {
	case CategoryGreen:
		return 0
	case CategoryYellow:
		return 1
	case CategoryRed:
		return 2
	default:
		return -1
	}
}

type Mode string

const (
	ModeWarm Mode = "warm"
	ModeCold Mode = "cold"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeWarm, ModeCold:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown migration mode %q", s)
	}
}

// Provenance records where the effective migration mode came from.
type Provenance string

const (
	ProvenanceComputed Provenance = "computed"
	ProvenanceManual   Provenance = "manual"
)

type RuleKind string

const (
	// RuleKindPattern triggers when a string field matches one of the rule patterns.
	RuleKindPattern RuleKind = "pattern"
	// RuleKindThreshold triggers when a numeric field is greater than or equal to Min.
	RuleKindThreshold RuleKind = "threshold"
	// RuleKindFlag triggers when the VM carries the flag named by Field.
	RuleKindFlag RuleKind = "flag"
	// RuleKindPolicy triggers when the Rego module in Policy raises concerns for the VM.
	RuleKindPolicy RuleKind = "policy"
)

// Rule is one weighted classification rule.
type Rule struct {
	ID       string   `json:"id" yaml:"id"`
	Kind     RuleKind `json:"kind" yaml:"kind"`
	Field    string   `json:"field" yaml:"field"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Min      float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Policy   string   `json:"policy,omitempty" yaml:"policy,omitempty"`
	Weight   int      `json:"weight" yaml:"weight"`
}

// Config is one version of a project's risk configuration.
type Config struct {
	Rules []Rule `json:"rules"`
	// GreenThreshold and YellowThreshold are exclusive upper bounds: a score equal
	// to a threshold belongs to the next, more severe, category.
	GreenThreshold  int `json:"green_threshold"`
	YellowThreshold int `json:"yellow_threshold"`
	MaxScore        int `json:"max_score"`

	ColdRequiredPatterns  []string `json:"cold_required_patterns"`
	WarmRiskyPatterns     []string `json:"warm_risky_patterns"`
	SnapshotDepthCritical int      `json:"snapshot_depth_critical"`
}

// VM holds the attributes the classifier reads.
type VM struct {
	Name          string
	GuestOS       string
	PowerState    string
	VCPU          int
	RAMGB         float64
	ProvisionedGB float64
	InUseGB       float64
	DiskCount     int
	NICCount      int
	SnapshotCount int
	SnapshotDepth int
	Flags         []string
	ManualMode    *Mode
}

type Result struct {
	Score        int
	Category     Category
	Reasons      []string
	ComputedMode Mode
	ModeReasons  []string
	// Mode is the effective mode: the manual override when set, ComputedMode otherwise.
	Mode       Mode
	ModeSource Provenance
}

// ValidationError reports a malformed risk configuration.
type ValidationError struct {
	RuleID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("invalid risk configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid risk configuration: rule %s: %s", e.RuleID, e.Reason)
}
