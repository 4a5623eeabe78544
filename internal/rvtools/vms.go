package rvtools

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kubev2v/wave-planner/internal/planner"
)

const mib = 1.0 / 1024

// Flags read from the disk and info sheets, matched by the default risk rules.
const (
	FlagRDM            = "rdm"
	FlagSharedDisk     = "shared_disk"
	FlagFaultTolerance = "fault_tolerance"
	FlagTemplate       = "template"
)

var networkKeyPattern = regexp.MustCompile(`^network #\d+$`)

func processVMInfo(vInfoRows, vDiskRows, vNetworkRows, vSnapshotRows [][]string) []planner.VM {
	if len(vInfoRows) <= 1 {
		return nil
	}

	vDiskHeader, vDiskData := splitSheet(vDiskRows)
	vNetworkHeader, vNetworkData := splitSheet(vNetworkRows)
	vSnapshotHeader, vSnapshotData := splitSheet(vSnapshotRows)

	vInfoColMap := buildColumnMap(vInfoRows[0])
	vDiskColMap := buildColumnMap(vDiskHeader)
	vNetworkColMap := buildColumnMap(vNetworkHeader)
	vSnapshotColMap := buildColumnMap(vSnapshotHeader)

	vmDiskData := groupRowsByVM(vDiskData, vDiskColMap)
	vmNetworkData := groupRowsByVM(vNetworkData, vNetworkColMap)
	vmSnapshotData := groupRowsByVM(vSnapshotData, vSnapshotColMap)
	networkKeys := networkColumns(vInfoColMap)

	vms := make([]planner.VM, 0, len(vInfoRows)-1)
	seen := make(map[string]bool, len(vInfoRows)-1)
	for _, row := range vInfoRows[1:] {
		if len(row) == 0 {
			continue
		}
		vmName := getColumnValue(row, vInfoColMap, "vm")
		if vmName == "" {
			continue
		}

		vm := planner.VM{}
		populateVMInfoData(&vm, row, vInfoColMap)
		if seen[vm.Key] {
			// Same name in two datacenters without a VM ID column.
			vm.Key = vm.Key + "@" + vm.Cluster
		}
		seen[vm.Key] = true

		if diskRows, exists := vmDiskData[vmName]; exists {
			populateVMDiskData(&vm, diskRows, vDiskColMap)
		}
		if nicRows, exists := vmNetworkData[vmName]; exists {
			populateVMNetworkData(&vm, nicRows, vNetworkColMap)
		} else {
			vm.Networks = networksFromInfo(row, vInfoColMap, networkKeys)
		}
		if snapshotRows, exists := vmSnapshotData[vmName]; exists {
			// RVTools lists snapshots flat; a linear chain is assumed.
			vm.SnapshotCount = len(snapshotRows)
			vm.SnapshotDepth = len(snapshotRows)
		}
		vms = append(vms, vm)
	}
	return vms
}

func populateVMInfoData(vm *planner.VM, row []string, colMap map[string]int) {
	vm.Name = getColumnValue(row, colMap, "vm")
	vm.Key = getColumnValue(row, colMap, "vm uuid")
	if vm.Key == "" {
		vm.Key = getColumnValue(row, colMap, "vm id")
	}
	if vm.Key == "" {
		vm.Key = vm.Name
	}

	vm.GuestOS = getColumnValue(row, colMap, "os according to the configuration file")
	if tools := getColumnValue(row, colMap, "os according to the vmware tools"); tools != "" {
		vm.GuestOS = tools
	}
	vm.PowerState = getColumnValue(row, colMap, "powerstate")
	vm.VCPU = int(parseIntOrZero(getColumnValue(row, colMap, "cpus")))
	vm.RAMGB = round2(float64(parseMemoryMB(getColumnValue(row, colMap, "memory"))) * mib)
	vm.ProvisionedGB = round2(float64(parseFormattedInt64(getColumnValue(row, colMap, "provisioned mib"))) * mib)
	vm.InUseGB = round2(float64(parseFormattedInt64(getColumnValue(row, colMap, "in use mib"))) * mib)
	vm.DiskCount = int(parseIntOrZero(getColumnValue(row, colMap, "disks")))
	vm.NICCount = int(parseIntOrZero(getColumnValue(row, colMap, "nics")))
	vm.Folder = getColumnValue(row, colMap, "folder")
	vm.ResourcePool = getColumnValue(row, colMap, "resource pool")
	vm.Host = getColumnValue(row, colMap, "host")
	vm.Cluster = getColumnValue(row, colMap, "cluster")

	if parseBooleanValue(getColumnValue(row, colMap, "template")) {
		vm.Flags = appendFlag(vm.Flags, FlagTemplate)
		vm.Exclude = true
	}
	ftState := getColumnValue(row, colMap, "ft state")
	if ftState != "" && ftState != "notConfigured" {
		vm.Flags = appendFlag(vm.Flags, FlagFaultTolerance)
	}
}

// populateVMDiskData counts the disks and raises the RDM and shared disk flags.
// The disk sheet wins over the vInfo counters when both are present.
func populateVMDiskData(vm *planner.VM, diskRows [][]string, colMap map[string]int) {
	var capacity float64
	for _, diskRow := range diskRows {
		capacity += float64(parseFormattedInt64(getColumnValue(diskRow, colMap, "capacity mib"))) * mib

		sharingMode := getColumnValue(diskRow, colMap, "sharing mode")
		if sharingMode != "" && sharingMode != "sharingNone" {
			vm.Flags = appendFlag(vm.Flags, FlagSharedDisk)
		}
		rawValue := strings.ToLower(getColumnValue(diskRow, colMap, "raw"))
		if rawValue != "" && rawValue != "0" && rawValue != "false" {
			vm.Flags = appendFlag(vm.Flags, FlagRDM)
		}
	}
	vm.DiskCount = len(diskRows)
	if vm.ProvisionedGB == 0 {
		vm.ProvisionedGB = round2(capacity)
	}
}

func populateVMNetworkData(vm *planner.VM, nicRows [][]string, colMap map[string]int) {
	vm.NICCount = len(nicRows)
	for _, nicRow := range nicRows {
		if network := getColumnValue(nicRow, colMap, "network"); network != "" {
			vm.Networks = appendFlag(vm.Networks, network)
		}
	}
}

func networkColumns(colMap map[string]int) []string {
	keys := []string{}
	for key := range colMap {
		if networkKeyPattern.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func networksFromInfo(row []string, colMap map[string]int, networkKeys []string) []string {
	var networks []string
	for _, key := range networkKeys {
		if name := getColumnValue(row, colMap, key); name != "" {
			networks = appendFlag(networks, name)
		}
	}
	return networks
}

func appendFlag(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
