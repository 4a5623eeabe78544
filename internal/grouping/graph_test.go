package grouping_test

import (
	"errors"

	"github.com/kubev2v/wave-planner/internal/grouping"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("dependency graph", func() {
	var g *grouping.Graph

	byName := func(a, b string) bool { return a < b }

	BeforeEach(func() {
		g = grouping.NewGraph()
	})

	Context("edge insertion", func() {
		It("accepts an acyclic chain", func() {
			Expect(g.AddEdge("app", "db")).To(Succeed())
			Expect(g.AddEdge("web", "app")).To(Succeed())
			Expect(g.DependsOn("web")).To(Equal([]string{"app"}))
			Expect(g.Dependents("db")).To(Equal([]string{"app"}))
		})

		It("ignores a duplicate edge", func() {
			Expect(g.AddEdge("app", "db")).To(Succeed())
			Expect(g.AddEdge("app", "db")).To(Succeed())
			Expect(g.Edges()).To(HaveLen(1))
		})

		It("rejects a self reference", func() {
			err := g.AddEdge("db", "db")
			var cycle *grouping.CycleError
			Expect(errors.As(err, &cycle)).To(BeTrue())
			Expect(cycle.Edge).To(Equal(grouping.Edge{VM: "db", DependsOn: "db"}))
			Expect(g.Len()).To(Equal(0))
		})

		It("rejects an edge closing a cycle and leaves the graph unchanged", func() {
			Expect(g.AddEdge("web", "app")).To(Succeed())
			Expect(g.AddEdge("app", "db")).To(Succeed())
			before := g.Edges()

			err := g.AddEdge("db", "web")
			var cycle *grouping.CycleError
			Expect(errors.As(err, &cycle)).To(BeTrue())
			Expect(cycle.Path).To(Equal([]string{"web", "app", "db"}))
			Expect(err.Error()).To(ContainSubstring("db -> web -> app -> db"))

			Expect(g.Edges()).To(Equal(before))
		})

		It("allows a diamond", func() {
			Expect(g.AddEdge("web", "cache")).To(Succeed())
			Expect(g.AddEdge("web", "app")).To(Succeed())
			Expect(g.AddEdge("app", "db")).To(Succeed())
			Expect(g.AddEdge("cache", "db")).To(Succeed())
		})

		It("removes an edge so the reverse becomes legal", func() {
			Expect(g.AddEdge("app", "db")).To(Succeed())
			g.RemoveEdge("app", "db")
			Expect(g.AddEdge("db", "app")).To(Succeed())
		})
	})

	Context("topological order", func() {
		It("places dependencies first and breaks ties with the comparator", func() {
			g.AddNode("zeta")
			Expect(g.AddEdge("web", "app")).To(Succeed())
			Expect(g.AddEdge("app", "db")).To(Succeed())
			Expect(g.AddEdge("batch", "db")).To(Succeed())

			Expect(g.TopologicalOrder(byName)).To(Equal([]string{"db", "app", "batch", "web", "zeta"}))
		})

		It("is reproducible regardless of insertion order", func() {
			other := grouping.NewGraph()
			Expect(other.AddEdge("batch", "db")).To(Succeed())
			Expect(other.AddEdge("app", "db")).To(Succeed())
			Expect(other.AddEdge("web", "app")).To(Succeed())

			Expect(g.AddEdge("web", "app")).To(Succeed())
			Expect(g.AddEdge("app", "db")).To(Succeed())
			Expect(g.AddEdge("batch", "db")).To(Succeed())

			Expect(other.TopologicalOrder(byName)).To(Equal(g.TopologicalOrder(byName)))
		})
	})
})
