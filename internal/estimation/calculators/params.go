package calculators

// Param keys shared by the per-VM calculators.
const (
	// ParamProvisionedGB is the provisioned disk size of a VM in gigabytes.
	ParamProvisionedGB = "provisioned_gb"
	// ParamInUseGB is the written ("in-use") disk size of a VM in gigabytes; zero when unknown.
	ParamInUseGB = "in_use_gb"
	// ParamDataGB is the volume to transfer, published by DataVolume.
	ParamDataGB = "data_gb"

	ParamTopology              = "topology"
	ParamSourceNICMbps         = "source_nic_mbps"
	ParamSourceNICUsablePct    = "source_nic_usable_pct"
	ParamLinkMbps              = "link_mbps"
	ParamLinkUsablePct         = "link_usable_pct"
	ParamAgentCount            = "agent_count"
	ParamAgentSlots            = "agent_slots"
	ParamAgentNICMbps          = "agent_nic_mbps"
	ParamAgentNICUsablePct     = "agent_nic_usable_pct"
	ParamAgentThroughputMBps   = "agent_throughput_mbps"
	ParamStorageWriteMBps      = "storage_write_mbps"
	ParamStorageWriteUsablePct = "storage_write_usable_pct"

	// ParamEffectiveMBps and ParamBottleneck are published by Throughput.
	ParamEffectiveMBps = "effective_mbps"
	ParamBottleneck    = "bottleneck"

	ParamMigrationMode      = "migration_mode"
	ParamDailyChangeRatePct = "daily_change_rate_pct"

	// ParamPhase1Seconds is published by InitialCopy, ParamCutoverSeconds by Cutover.
	ParamPhase1Seconds  = "phase1_seconds"
	ParamCutoverSeconds = "cutover_seconds"
)
