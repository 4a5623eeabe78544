package service_test

import (
	"context"
	"strings"

	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("report service", Ordered, func() {
	var (
		s       store.Store
		ps      *service.ProjectService
		srv     *service.ReportService
		ctx     context.Context
		project *model.Project
	)

	BeforeAll(func() {
		s = store.NewStore(newTestDB())
		ps = service.NewProjectService(s, nil, planner.DefaultSettings())
		srv = service.NewReportService(s)
		ctx = context.TODO()

		project = newTestProject(ctx, ps, "export")
		_, err := service.NewInventoryService(s).ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
			VMs: []planner.VM{testVM("vm-1", "fin", 10), testVM("vm-2", "fin", 30)},
		})
		Expect(err).To(BeNil())
		_, err = service.NewPlannerService(s, newTestPool()).RunAll(ctx, project.ID, service.PassOptions{})
		Expect(err).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	It("loads the persisted plan", func() {
		data, err := srv.LoadPlan(ctx, project.ID, testOwner)
		Expect(err).To(BeNil())
		Expect(data.Project.ID).To(Equal(project.ID))
		Expect(data.VMs).To(HaveLen(2))
		Expect(data.Waves).NotTo(BeEmpty())
	})

	It("exports csv", func() {
		report, err := srv.ExportPlan(ctx, project.ID, testOwner, service.ReportFormatCSV)
		Expect(err).To(BeNil())
		Expect(report.Filename).To(Equal("export-plan.csv"))
		Expect(report.ContentType).To(HavePrefix("text/csv"))

		content := string(report.Content)
		Expect(content).To(HavePrefix("MIGRATION WAVE PLAN"))
		Expect(strings.Count(content, "vm-")).To(BeNumerically(">=", 2))
	})

	It("exports xlsx", func() {
		report, err := srv.ExportPlan(ctx, project.ID, testOwner, service.ReportFormatXLSX)
		Expect(err).To(BeNil())
		Expect(report.Filename).To(Equal("export-plan.xlsx"))
		// xlsx is a zip archive
		Expect(report.Content[:2]).To(Equal([]byte("PK")))
	})

	It("rejects an unknown format", func() {
		_, err := srv.ExportPlan(ctx, project.ID, testOwner, service.ReportFormat("pdf"))
		var validation *service.ErrValidation
		Expect(err).To(BeAssignableToTypeOf(validation))
	})

	It("hides the plan from other owners", func() {
		_, err := srv.ExportPlan(ctx, project.ID, "bob", service.ReportFormatCSV)
		Expect(service.IsNotFound(err)).To(BeTrue())
	})
})
