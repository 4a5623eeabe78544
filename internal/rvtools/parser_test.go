package rvtools_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/kubev2v/wave-planner/internal/rvtools"
)

type sheet struct {
	Headers []string
	Rows    [][]any
}

// Helper functions for Excel operations
func buildWorkbook(sheets map[string]sheet) []byte {
	f := excelize.NewFile()
	defer f.Close()

	for name, s := range sheets {
		_, err := f.NewSheet(name)
		Expect(err).To(Succeed())
		for col, header := range s.Headers {
			Expect(f.SetCellValue(name, cell(col, 1), header)).To(Succeed())
		}
		for r, row := range s.Rows {
			for col, value := range row {
				Expect(f.SetCellValue(name, cell(col, r+2), value)).To(Succeed())
			}
		}
	}
	Expect(f.DeleteSheet("Sheet1")).To(Succeed())

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	Expect(err).To(Succeed())
	return buf.Bytes()
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row)
	Expect(err).To(Succeed())
	return name
}

var vInfoHeaders = []string{
	"VM", "Powerstate", "Template", "CPUs", "Memory", "NICs", "Disks", "Provisioned MiB", "In Use MiB",
	"Folder", "Resource pool", "Cluster", "Host", "OS according to the configuration file",
	"OS according to the VMware Tools", "VM UUID", "FT State", "Network #1", "Network #2",
}

var _ = Describe("rvtools parser", func() {
	Context("ParseVMs", func() {
		It("reads the sizing and placement of every vm", func() {
			content := buildWorkbook(map[string]sheet{
				"vInfo": {
					Headers: vInfoHeaders,
					Rows: [][]any{
						{"web01", "poweredOn", "False", "2", "8,192", "1", "1", "102,400", "51,200",
							"/dc1/finance", "finance-rp", "cluster-a", "esx01", "Red Hat Enterprise Linux 9 (64-bit)",
							"", "uuid-web01", "notConfigured", "VM Network", ""},
						{"db01", "poweredOn", "False", "8", "65536", "2", "2", "2097152", "1048576",
							"/dc1/finance", "finance-rp", "cluster-a", "esx02", "Microsoft Windows Server 2019 (64-bit)",
							"Microsoft Windows Server 2019 (64-bit)", "uuid-db01", "running", "VM Network", "Backup"},
					},
				},
			})

			vms, err := rvtools.ParseVMs(content)
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(2))

			web := vms[0]
			Expect(web.Key).To(Equal("uuid-web01"))
			Expect(web.Name).To(Equal("web01"))
			Expect(web.VCPU).To(Equal(2))
			Expect(web.RAMGB).To(Equal(8.0))
			Expect(web.ProvisionedGB).To(Equal(100.0))
			Expect(web.InUseGB).To(Equal(50.0))
			Expect(web.Folder).To(Equal("/dc1/finance"))
			Expect(web.ResourcePool).To(Equal("finance-rp"))
			Expect(web.Cluster).To(Equal("cluster-a"))
			Expect(web.Networks).To(Equal([]string{"VM Network"}))
			Expect(web.Flags).To(BeEmpty())

			db := vms[1]
			Expect(db.ProvisionedGB).To(Equal(2048.0))
			Expect(db.Networks).To(Equal([]string{"VM Network", "Backup"}))
			Expect(db.Flags).To(ContainElement(rvtools.FlagFaultTolerance))
		})

		It("reads disks, nics and snapshots from their sheets", func() {
			content := buildWorkbook(map[string]sheet{
				"vInfo": {
					Headers: vInfoHeaders,
					Rows: [][]any{
						{"db01", "poweredOn", "False", "4", "16384", "1", "1", "", "",
							"", "", "cluster-a", "", "CentOS 7 (64-bit)", "", "uuid-db01", "", "", ""},
					},
				},
				"vDisk": {
					Headers: []string{"VM", "Disk", "Capacity MiB", "Raw", "Sharing mode"},
					Rows: [][]any{
						{"db01", "Hard disk 1", "51200", "False", "sharingNone"},
						{"db01", "Hard disk 2", "51200", "True", "sharingMultiWriter"},
					},
				},
				"vNetwork": {
					Headers: []string{"VM", "NIC label", "Network"},
					Rows: [][]any{
						{"db01", "Network adapter 1", "App"},
						{"db01", "Network adapter 2", "Storage"},
						{"db01", "Network adapter 3", "App"},
					},
				},
				"vSnapshot": {
					Headers: []string{"VM", "Name"},
					Rows: [][]any{
						{"db01", "before-upgrade"},
						{"db01", "after-upgrade"},
					},
				},
			})

			vms, err := rvtools.ParseVMs(content)
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(1))

			vm := vms[0]
			Expect(vm.DiskCount).To(Equal(2))
			Expect(vm.ProvisionedGB).To(Equal(100.0))
			Expect(vm.NICCount).To(Equal(3))
			Expect(vm.Networks).To(Equal([]string{"App", "Storage"}))
			Expect(vm.SnapshotCount).To(Equal(2))
			Expect(vm.SnapshotDepth).To(Equal(2))
			Expect(vm.Flags).To(ConsistOf(rvtools.FlagRDM, rvtools.FlagSharedDisk))
		})

		It("excludes templates", func() {
			content := buildWorkbook(map[string]sheet{
				"vInfo": {
					Headers: vInfoHeaders,
					Rows: [][]any{
						{"golden", "poweredOff", "True", "2", "4096", "1", "1", "40960", "10240",
							"", "", "", "", "Red Hat Enterprise Linux 9 (64-bit)", "", "", "", "", ""},
					},
				},
			})

			vms, err := rvtools.ParseVMs(content)
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(1))
			Expect(vms[0].Key).To(Equal("golden"))
			Expect(vms[0].Exclude).To(BeTrue())
			Expect(vms[0].Flags).To(ContainElement(rvtools.FlagTemplate))
		})

		It("fails without a vInfo sheet", func() {
			content := buildWorkbook(map[string]sheet{
				"vHost": {Headers: []string{"Host"}},
			})
			_, err := rvtools.ParseVMs(content)
			Expect(err).To(MatchError(rvtools.ErrNoVMSheet))
		})

		It("fails on content that is not a workbook", func() {
			_, err := rvtools.ParseVMs([]byte("vms: []"))
			Expect(err).NotTo(BeNil())
		})
	})

	Context("IsExcelFile", func() {
		It("detects workbooks", func() {
			content := buildWorkbook(map[string]sheet{"vInfo": {Headers: vInfoHeaders}})
			Expect(rvtools.IsExcelFile(content)).To(BeTrue())
		})

		It("rejects yaml and truncated zips", func() {
			Expect(rvtools.IsExcelFile([]byte("vms: []"))).To(BeFalse())
			Expect(rvtools.IsExcelFile([]byte("PK"))).To(BeFalse())
			Expect(rvtools.IsExcelFile(nil)).To(BeFalse())
		})
	})
})
