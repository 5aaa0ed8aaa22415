package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formula/internal/ast"
	"github.com/roach88/formula/internal/query"
	"github.com/roach88/formula/internal/symbols"
)

// The four scans the safety analysis runs over each rule body.
var (
	findScan     = query.MustCompile(query.AnyDepth(), query.Match(query.OfKind(ast.KindFind)))
	idScan       = query.MustCompile(query.AnyDepth(), query.Match(query.OfKind(ast.KindId)))
	funcTermScan = query.MustCompile(query.AnyDepth(), query.Match(query.OfKind(ast.KindFuncTerm)))
	relScan      = query.MustCompile(query.AnyDepth(), query.Match(query.OfKind(ast.KindRelConstr)))
)

// SafetyResult is the outcome of range-restriction analysis for one body.
type SafetyResult struct {
	Safe   bool     `json:"safe"`
	Unsafe []string `json:"unsafe"` // sorted, never nil
}

// AnalyzeBody decides whether every variable used in body is range-restricted.
//
// The evaluator binds variables by joint constraint satisfaction, so the check
// is set-based and ignores the textual order of constraints:
//
//	binding  = Find bindings
//	         ∪ roots of Id left-hand sides of '=' constraints
//	         ∪ roots of Id arguments of FuncTerms whose function is a
//	           non-auto-generated user symbol (pattern positions)
//	matched  = roots of qualified Ids used directly as a Find pattern
//	used     = roots of qualified Ids anywhere in the body, minus matched
//	unsafe   = used − binding, sorted
//
// table may be nil, in which case no FuncTerm contributes bindings.
// AnalyzeBody is pure: it does not mutate the tree or the table.
func AnalyzeBody(t *ast.Tree, body ast.NodeID, table symbols.SymbolTable) SafetyResult {
	binding := make(varSet)
	matched := make(varSet)
	used := make(varSet)

	findScan.Walk(t, body, nil, func(_ []ast.NodeID, find ast.NodeID) {
		if b, ok := t.FindBinding(find); ok {
			binding.add(t.Name(b))
		}
		if m := t.FindMatch(find); m != ast.NoNode && t.Kind(m) == ast.KindId && t.IsQualified(m) {
			matched.add(t.RootFragment(m))
		}
	})

	relScan.Walk(t, body, nil, func(_ []ast.NodeID, rel ast.NodeID) {
		if t.Op(rel) != ast.RelEq {
			return
		}
		if args := t.Args(rel); len(args) == 2 && t.Kind(args[0]) == ast.KindId {
			binding.add(t.RootFragment(args[0]))
		}
	})

	if table != nil {
		funcTermScan.Walk(t, body, nil, func(_ []ast.NodeID, fn ast.NodeID) {
			sym, ok := table.TryGetSymbol(t.Name(fn))
			if !ok || sym.IsAutoGen {
				return
			}
			for _, arg := range t.Args(fn) {
				if t.Kind(arg) == ast.KindId {
					binding.add(t.RootFragment(arg))
				}
			}
		})
	}

	idScan.Walk(t, body, nil, func(_ []ast.NodeID, id ast.NodeID) {
		if !t.IsQualified(id) {
			return
		}
		if root := t.RootFragment(id); !matched.has(root) {
			used.add(root)
		}
	})

	unsafe := used.minus(binding)
	return SafetyResult{Safe: len(unsafe) == 0, Unsafe: unsafe}
}

// SafetyViolation reports a rule body that uses unbound variables.
// Violations are data: analysis of other rules continues.
type SafetyViolation struct {
	RuleID    string   `json:"rule_id"`
	BodyIndex int      `json:"body_index"`
	Unsafe    []string `json:"unsafe"`
	Pos       ast.Pos  `json:"pos"`
}

// Error implements the error interface so violations can travel in []error.
func (v SafetyViolation) Error() string {
	return fmt.Sprintf("[%s] rule %s body %d: unsafe variables: %s",
		ErrUnsafeRule, v.RuleID, v.BodyIndex, strings.Join(v.Unsafe, ", "))
}

// AnalyzeRule runs AnalyzeBody over every body of rule.
func AnalyzeRule(t *ast.Tree, rule ast.NodeID, table symbols.SymbolTable) []SafetyViolation {
	var out []SafetyViolation
	for i, body := range t.ChildrenWithRole(rule, ast.RoleBodies) {
		res := AnalyzeBody(t, body, table)
		if res.Safe {
			continue
		}
		pos := t.Pos(body)
		if !pos.IsValid() {
			pos = t.Pos(rule)
		}
		out = append(out, SafetyViolation{
			RuleID:    t.Name(rule),
			BodyIndex: i,
			Unsafe:    res.Unsafe,
			Pos:       pos,
		})
	}
	return out
}

// AnalyzeProgram checks every rule in declaration order.
// Returns an empty slice (not nil) when every rule is safe.
func AnalyzeProgram(p *Program) []SafetyViolation {
	out := []SafetyViolation{}
	for _, rule := range p.Rules {
		out = append(out, AnalyzeRule(p.Tree, rule, p.Symbols)...)
	}
	return out
}

// varSet is a set of variable names.
type varSet map[string]struct{}

func (s varSet) add(name string) {
	s[name] = struct{}{}
}

func (s varSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// minus returns the sorted members of s not in other.
func (s varSet) minus(other varSet) []string {
	out := []string{}
	for name := range s {
		if !other.has(name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
