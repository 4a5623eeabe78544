package classifier

const (
	DefaultGreenThreshold        = 30
	DefaultYellowThreshold       = 60
	DefaultMaxScore              = 100
	DefaultSnapshotDepthCritical = 5
)

// DefaultConfig returns the rule set used for a project's first risk configuration version.
func DefaultConfig() Config {
	return Config{
		Rules: []Rule{
			{
				ID:    "deprecated_os",
				Kind:  RuleKindPattern,
				Field: FieldGuestOS,
				Patterns: []string{
					"Windows Server 2003", "Windows Server 2008", "Windows XP", "Windows 2000",
					"CentOS 5", "CentOS 6", "Red Hat Enterprise Linux 5", "Red Hat Enterprise Linux 6",
					"SUSE Linux Enterprise 10", "SUSE Linux Enterprise 11",
				},
				Weight: 30,
			},
			{
				ID:       "unsupported_os",
				Kind:     RuleKindPattern,
				Field:    FieldGuestOS,
				Patterns: []string{"FreeBSD", "Solaris", "NetWare", "OS/2"},
				Weight:   50,
			},
			{ID: "large_disk", Kind: RuleKindThreshold, Field: FieldProvisionedGB, Min: 2000, Weight: 20},
			{ID: "very_large_disk", Kind: RuleKindThreshold, Field: FieldProvisionedGB, Min: 8000, Weight: 20},
			{ID: "snapshot_depth", Kind: RuleKindThreshold, Field: FieldSnapshotDepth, Min: 3, Weight: 15},
			{ID: "many_disks", Kind: RuleKindThreshold, Field: FieldDiskCount, Min: 8, Weight: 10},
			{ID: "many_nics", Kind: RuleKindThreshold, Field: FieldNICCount, Min: 4, Weight: 10},
			{ID: "high_memory", Kind: RuleKindThreshold, Field: FieldRAMGB, Min: 256, Weight: 10},
			{ID: "raw_device_mapping", Kind: RuleKindFlag, Field: "rdm", Weight: 40},
			{ID: "shared_disk", Kind: RuleKindFlag, Field: "shared_disk", Weight: 40},
		},
		GreenThreshold:        DefaultGreenThreshold,
		YellowThreshold:       DefaultYellowThreshold,
		MaxScore:              DefaultMaxScore,
		ColdRequiredPatterns:  []string{"Windows Server 2003", "Windows XP", "Windows 2000"},
		WarmRiskyPatterns:     []string{"Windows Server 2008", "CentOS 5", "Red Hat Enterprise Linux 5"},
		SnapshotDepthCritical: DefaultSnapshotDepthCritical,
	}
}
