// Package grouping maintains the VM dependency graph of a project and partitions VMs
// into tenants and cohorts.
package grouping

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

// Edge means VM may not start before DependsOn completed.
type Edge struct {
	VM        string
	DependsOn string
}

// CycleError is returned when an edge would close a cycle. Path lists the
// existing dependency chain from DependsOn to VM.
type CycleError struct {
	Edge Edge
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("dependency %s -> %s is a self reference", e.Edge.VM, e.Edge.DependsOn)
	}
	cycle := append([]string{e.Edge.VM}, e.Path...)
	return fmt.Sprintf("dependency %s -> %s would close cycle %s", e.Edge.VM, e.Edge.DependsOn, strings.Join(cycle, " -> "))
}

// Graph is an adjacency list over arena indices. Keys are stable VM identifiers.
// Edges are validated on insertion, so the graph is always acyclic.
type Graph struct {
	index map[string]int
	keys  []string
	deps  [][]int // deps[i]: nodes i depends on
	users [][]int // users[i]: nodes depending on i
}

func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode registers key and returns its arena index.
func (g *Graph) AddNode(key string) int {
	if i, ok := g.index[key]; ok {
		return i
	}
	i := len(g.keys)
	g.index[key] = i
	g.keys = append(g.keys, key)
	g.deps = append(g.deps, nil)
	g.users = append(g.users, nil)
	return i
}

func (g *Graph) Has(key string) bool {
	_, ok := g.index[key]
	return ok
}

func (g *Graph) Len() int {
	return len(g.keys)
}

// AddEdge inserts vm -> dependsOn. Inserting an existing edge is a no-op.
// An edge that would close a cycle is rejected with a *CycleError and leaves the graph unchanged.
func (g *Graph) AddEdge(vm, dependsOn string) error {
	e := Edge{VM: vm, DependsOn: dependsOn}
	if vm == dependsOn {
		return &CycleError{Edge: e}
	}
	if path := g.pathTo(dependsOn, vm); path != nil {
		return &CycleError{Edge: e, Path: path}
	}

	from, to := g.AddNode(vm), g.AddNode(dependsOn)
	for _, d := range g.deps[from] {
		if d == to {
			return nil
		}
	}
	g.deps[from] = append(g.deps[from], to)
	g.users[to] = append(g.users[to], from)
	return nil
}

// RemoveEdge deletes vm -> dependsOn if present.
func (g *Graph) RemoveEdge(vm, dependsOn string) {
	from, ok1 := g.index[vm]
	to, ok2 := g.index[dependsOn]
	if !ok1 || !ok2 {
		return
	}
	g.deps[from] = without(g.deps[from], to)
	g.users[to] = without(g.users[to], from)
}

func without(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// pathTo searches the dependency chain starting at from for target and returns
// the visited path, or nil. The traversal visits each node at most once.
func (g *Graph) pathTo(from, target string) []string {
	start, ok := g.index[from]
	if !ok {
		return nil
	}
	goal, ok := g.index[target]
	if !ok {
		return nil
	}

	visited := make([]bool, len(g.keys))
	parent := make([]int, len(g.keys))
	stack := []int{start}
	visited[start] = true
	parent[start] = -1
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == goal {
			var rev []string
			for c := n; c != -1; c = parent[c] {
				rev = append(rev, g.keys[c])
			}
			path := make([]string, 0, len(rev))
			for i := len(rev) - 1; i >= 0; i-- {
				path = append(path, rev[i])
			}
			return path
		}
		for _, d := range g.deps[n] {
			if !visited[d] {
				visited[d] = true
				parent[d] = n
				stack = append(stack, d)
			}
		}
	}
	return nil
}

// DependsOn lists the direct dependencies of key, sorted.
func (g *Graph) DependsOn(key string) []string {
	i, ok := g.index[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.deps[i]))
	for _, d := range g.deps[i] {
		out = append(out, g.keys[d])
	}
	sort.Strings(out)
	return out
}

// Dependents lists the VMs depending directly on key, sorted.
func (g *Graph) Dependents(key string) []string {
	i, ok := g.index[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.users[i]))
	for _, u := range g.users[i] {
		out = append(out, g.keys[u])
	}
	sort.Strings(out)
	return out
}

// Edges returns all edges sorted by VM then dependency.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for i, ds := range g.deps {
		for _, d := range ds {
			out = append(out, Edge{VM: g.keys[i], DependsOn: g.keys[d]})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].VM != out[b].VM {
			return out[a].VM < out[b].VM
		}
		return out[a].DependsOn < out[b].DependsOn
	})
	return out
}

// TopologicalOrder returns every node with dependencies before dependents.
// Among the nodes ready at the same time, less decides; it must be a strict total order
// for the result to be reproducible.
func (g *Graph) TopologicalOrder(less func(a, b string) bool) []string {
	pending := make([]int, len(g.keys))
	q := &readyQueue{keys: g.keys, less: less}
	for i := range g.keys {
		pending[i] = len(g.deps[i])
		if pending[i] == 0 {
			q.items = append(q.items, i)
		}
	}
	heap.Init(q)

	out := make([]string, 0, len(g.keys))
	for q.Len() > 0 {
		n := heap.Pop(q).(int)
		out = append(out, g.keys[n])
		for _, u := range g.users[n] {
			pending[u]--
			if pending[u] == 0 {
				heap.Push(q, u)
			}
		}
	}
	return out
}

type readyQueue struct {
	items []int
	keys  []string
	less  func(a, b string) bool
}

func (q *readyQueue) Len() int { return len(q.items) }
func (q *readyQueue) Less(i, j int) bool {
	return q.less(q.keys[q.items[i]], q.keys[q.items[j]])
}
func (q *readyQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *readyQueue) Push(x any)    { q.items = append(q.items, x.(int)) }
func (q *readyQueue) Pop() any {
	n := len(q.items)
	v := q.items[n-1]
	q.items = q.items[:n-1]
	return v
}
