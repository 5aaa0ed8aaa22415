package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formula/internal/ast"
)

// CycleWarning reports a recursive group of symbols.
//
// Recursion is legal, so it is reported as a warning. The search back end
// uses it to decide where fixpoint iteration is needed.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Path", "Reach", "Path"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeRecursion finds recursively defined symbols.
//
// The algorithm:
//  1. Build a head symbol → body symbol dependency graph. Body symbols are the
//     functions of every FuncTerm under a rule body that resolve in the table.
//  2. Use Tarjan's algorithm to find strongly connected components.
//  3. Report each SCC with size > 1 or a self-loop.
//
// Output order is deterministic: SCCs are listed by their smallest member and
// each path starts there.
func AnalyzeRecursion(p *Program) []CycleWarning {
	graph := buildDependencyGraph(p)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// dependencyGraph maps a symbol to the symbols its definition reads, sorted.
type dependencyGraph map[string][]string

func buildDependencyGraph(p *Program) dependencyGraph {
	t := p.Tree
	sets := make(map[string]varSet)

	for _, rule := range p.Rules {
		body := make(varSet)
		for _, b := range t.ChildrenWithRole(rule, ast.RoleBodies) {
			funcTermScan.Walk(t, b, nil, func(_ []ast.NodeID, fn ast.NodeID) {
				if _, ok := p.Symbols.TryGetSymbol(t.Name(fn)); ok {
					body.add(t.Name(fn))
				}
			})
		}

		for _, head := range t.ChildrenWithRole(rule, ast.RoleHeads) {
			if t.Kind(head) != ast.KindFuncTerm {
				continue
			}
			name := t.Name(head)
			if sets[name] == nil {
				sets[name] = make(varSet)
			}
			for dep := range body {
				sets[name].add(dep)
			}
		}
	}

	graph := make(dependencyGraph, len(sets))
	for name, deps := range sets {
		graph[name] = deps.minus(nil)
	}
	return graph
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Roots are visited in sorted order so the result is stable across runs.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		sym := scc[0]
		return CycleWarning{
			Path:    []string{sym, sym},
			Message: fmt.Sprintf("Directly recursive symbol: %s → %s", sym, sym),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Mutually recursive symbols: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks from the smallest SCC member through unvisited
// SCC members, following the first such edge each time, then closes the loop.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	inSCC := make(varSet, len(scc))
	for _, node := range scc {
		inSCC.add(node)
	}

	start := scc[0]
	path := []string{start}
	visited := varSet{start: {}}

	for current := start; ; {
		next := ""
		for _, neighbor := range graph[current] {
			if inSCC.has(neighbor) && !visited.has(neighbor) {
				next = neighbor
				break
			}
		}
		if next == "" {
			return append(path, start)
		}
		visited.add(next)
		path = append(path, next)
		current = next
	}
}
