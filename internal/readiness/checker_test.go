package readiness_test

import (
	"github.com/kubev2v/wave-planner/internal/readiness"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("checker", func() {
	var (
		checker *readiness.Checker
		snap    readiness.Snapshot
	)

	BeforeEach(func() {
		var err error
		checker, err = readiness.NewChecker(nil)
		Expect(err).To(BeNil())

		snap = readiness.Snapshot{
			Domains:  []string{"corp"},
			Projects: []readiness.Project{{Name: "finance", Domain: "corp"}},
			Networks: []string{"fin-net"},
			Routers:  []string{"fin-router"},
			Flavors: []readiness.Flavor{
				{Name: "m1.small", VCPU: 2, RAMMB: 4096, DiskGB: 40},
				{Name: "m1.large", VCPU: 8, RAMMB: 32768, DiskGB: 0},
			},
			Images:         []readiness.Image{{Name: "rhel-9.4", OSFamily: "rhel"}, {Name: "windows-2022"}},
			SecurityGroups: []string{"default"},
			Quotas: map[string]readiness.Quota{
				readiness.QuotaKey("corp", "finance"): {
					CoresLimit: 20, CoresUsed: 10,
					RAMMBLimit:     -1,
					InstancesLimit: 10, InstancesUsed: 2,
				},
			},
		}
	})

	ready := func() readiness.Requirement {
		return readiness.Requirement{
			Scope:         "finance",
			Domain:        "corp",
			Project:       "finance",
			Networks:      []readiness.NetworkMapping{{Source: "vlan-100", Target: "fin-net"}},
			Shapes:        []readiness.Shape{{VCPU: 2, RAMMB: 4096, DiskGB: 40}, {VCPU: 4, RAMMB: 16384, DiskGB: 500}},
			OSFamilies:    []string{"rhel", "windows"},
			Router:        "fin-router",
			SecurityGroup: "default",
			VCPU:          6,
			RAMMB:         20480,
			Instances:     2,
		}
	}

	It("reports nothing when the destination has everything", func() {
		Expect(checker.Check([]readiness.Requirement{ready()}, snap)).To(BeEmpty())
	})

	It("reports a missing domain and skips the project check", func() {
		r := ready()
		r.Domain = "other"
		gaps := checker.Check([]readiness.Requirement{r}, snap)
		Expect(gaps).To(HaveLen(1))
		Expect(gaps[0].Type).To(Equal(readiness.GapMissingDomain))
		Expect(gaps[0].Resource).To(Equal("other"))
		Expect(gaps[0].Severity).To(Equal(readiness.SeverityCritical))
	})

	It("reports unmapped and missing networks separately", func() {
		r := ready()
		r.Networks = []readiness.NetworkMapping{{Source: "vlan-100", Target: "nope"}, {Source: "vlan-200"}}
		gaps := checker.Check([]readiness.Requirement{r}, snap)
		Expect(gaps).To(HaveLen(2))
		Expect(gaps[0].Type).To(Equal(readiness.GapMissingNetworkMapping))
		Expect(gaps[0].Resource).To(Equal("vlan-200"))
		Expect(gaps[1].Type).To(Equal(readiness.GapMissingNetwork))
		Expect(gaps[1].Resource).To(Equal("nope"))
	})

	It("reports shapes no flavor can hold", func() {
		r := ready()
		r.Shapes = append(r.Shapes, readiness.Shape{VCPU: 16, RAMMB: 4096, DiskGB: 10})
		gaps := checker.Check([]readiness.Requirement{r}, snap)
		Expect(gaps).To(HaveLen(1))
		Expect(gaps[0].Type).To(Equal(readiness.GapMissingFlavor))
		Expect(gaps[0].Resource).To(Equal("16vcpu-4096mb-10gb"))
	})

	It("matches images by name when no os family is set", func() {
		r := ready()
		r.OSFamilies = []string{"windows", "sles"}
		gaps := checker.Check([]readiness.Requirement{r}, snap)
		Expect(gaps).To(HaveLen(1))
		Expect(gaps[0].Type).To(Equal(readiness.GapMissingImage))
		Expect(gaps[0].Resource).To(Equal("sles"))
		Expect(gaps[0].Severity).To(Equal(readiness.SeverityWarning))
	})

	It("reports quota shortfall after overcommit", func() {
		r := ready()
		r.VCPU = 30
		gaps := checker.Check([]readiness.Requirement{r}, snap)
		Expect(gaps).To(HaveLen(1))
		Expect(gaps[0].Type).To(Equal(readiness.GapQuotaShortfall))
		Expect(gaps[0].Resource).To(Equal("cores"))
		Expect(gaps[0].Message).To(ContainSubstring("short by 20"))

		r.CPUOvercommit = 4
		Expect(checker.Check([]readiness.Requirement{r}, snap)).To(BeEmpty())
	})

	It("is idempotent", func() {
		r := ready()
		r.Domain = ""
		r.OSFamilies = []string{"sles", "debian"}
		first := checker.Check([]readiness.Requirement{r, r}, snap)
		second := checker.Check([]readiness.Requirement{r, r}, snap)
		Expect(first).To(Equal(second))
		Expect(first).To(HaveLen(3))
	})

	It("uses the configured severities and skips unlisted gap types", func() {
		c, err := readiness.NewChecker(readiness.Rules{readiness.GapMissingImage: readiness.SeverityCritical})
		Expect(err).To(BeNil())
		r := ready()
		r.Domain = "other"
		r.OSFamilies = []string{"sles"}
		gaps := c.Check([]readiness.Requirement{r}, snap)
		Expect(gaps).To(HaveLen(1))
		Expect(gaps[0].Severity).To(Equal(readiness.SeverityCritical))
	})

	It("rejects unknown severities", func() {
		_, err := readiness.NewChecker(readiness.Rules{readiness.GapMissingImage: "fatal"})
		Expect(err).NotTo(BeNil())
	})
})

var _ = Describe("reconcile", func() {
	gap := func(scope, resource string, severity readiness.Severity) readiness.Gap {
		return readiness.Gap{Scope: scope, Type: readiness.GapMissingNetwork, Resource: resource, Severity: severity}
	}

	It("opens new gaps", func() {
		out := readiness.Reconcile(nil, []readiness.Gap{gap("a", "n1", readiness.SeverityCritical)})
		Expect(out).To(HaveLen(1))
		Expect(out[0].Status).To(Equal(readiness.StatusOpen))
	})

	It("keeps operator resolution for gaps still detected", func() {
		existing := []readiness.Record{{Gap: gap("a", "n1", readiness.SeverityCritical), Status: readiness.StatusOverridden}}
		out := readiness.Reconcile(existing, []readiness.Gap{gap("a", "n1", readiness.SeverityCritical)})
		Expect(out).To(HaveLen(1))
		Expect(out[0].Status).To(Equal(readiness.StatusOverridden))
	})

	It("auto resolves open gaps no longer detected and reopens them when they come back", func() {
		existing := []readiness.Record{{Gap: gap("a", "n1", readiness.SeverityCritical), Status: readiness.StatusOpen}}
		out := readiness.Reconcile(existing, nil)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Status).To(Equal(readiness.StatusResolved))
		Expect(out[0].AutoResolved).To(BeTrue())

		again := readiness.Reconcile(out, []readiness.Gap{gap("a", "n1", readiness.SeverityCritical)})
		Expect(again[0].Status).To(Equal(readiness.StatusOpen))
		Expect(again[0].AutoResolved).To(BeFalse())
	})

	It("finds blocking gaps by scope", func() {
		records := []readiness.Record{
			{Gap: gap("a", "n1", readiness.SeverityCritical), Status: readiness.StatusOpen},
			{Gap: gap("a", "n2", readiness.SeverityWarning), Status: readiness.StatusOpen},
			{Gap: gap("b", "n3", readiness.SeverityCritical), Status: readiness.StatusOpen},
			{Gap: gap("a", "n4", readiness.SeverityCritical), Status: readiness.StatusOverridden},
			{Gap: gap("", "n5", readiness.SeverityCritical), Status: readiness.StatusOpen},
		}
		blocking := readiness.Blocking(records, []string{"a"})
		Expect(blocking).To(HaveLen(2))
		Expect(blocking[0].Resource).To(Equal("n1"))
		Expect(blocking[1].Resource).To(Equal("n5"))

		counts := readiness.CountOpen(records)
		Expect(counts[readiness.SeverityCritical]).To(Equal(3))
		Expect(counts[readiness.SeverityWarning]).To(Equal(1))
		Expect(counts[readiness.SeverityInfo]).To(Equal(0))
	})
})
