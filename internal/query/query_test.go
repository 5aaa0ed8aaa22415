package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formula/internal/ast"
)

// sampleTree builds
//
//	Path(a, c) :- e is Edge(a, b), Edge(b, c), z = 5, e.src != c.
type sample struct {
	tree *ast.Tree
	rule ast.NodeID
	body ast.NodeID
	find ast.NodeID
	rel  ast.NodeID
}

func sampleTree() sample {
	t := ast.NewTree()
	find := t.Find("e", t.Func("Edge", t.Id("a"), t.Id("b")))
	bare := t.Func("Edge", t.Id("b"), t.Id("c"))
	eq := t.Eq(t.Id("z"), t.Int(5))
	rel := t.Rel(ast.RelNeq, t.Id("e.src"), t.Id("c"))
	body := t.Body(find, bare, eq, rel)
	rule := t.Rule("path", []ast.NodeID{t.Func("Path", t.Id("a"), t.Id("c"))}, body)
	t.Module("Graph", rule)
	return sample{tree: t, rule: rule, body: body, find: find, rel: rel}
}

// allBelow enumerates start and its descendants in document order.
func allBelow(t *ast.Tree, start ast.NodeID) []ast.NodeID {
	out := []ast.NodeID{start}
	for _, c := range t.Children(start) {
		out = append(out, allBelow(t, c.ID)...)
	}
	return out
}

func names(t *ast.Tree, ids []ast.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.String(id)
	}
	return out
}

func TestCompileRejectsEmpty(t *testing.T) {
	_, err := Compile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuery))

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, -1, qe.Stage)
	assert.Contains(t, qe.Error(), "empty")
}

func TestCompileRejectsTrailingWildcard(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
	}{
		{"only wildcard", []Stage{AnyDepth()}},
		{"after match", []Stage{Match(OfKind(ast.KindBody)), AnyDepth()}},
		{"double", []Stage{Match(OfKind(ast.KindBody)), AnyDepth(), AnyDepth()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.stages...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrQuery)
			assert.Contains(t, err.Error(), "wildcard")
		})
	}
}

func TestCompileRejectsMalformedStages(t *testing.T) {
	_, err := Compile(AnyDepth(), Match())
	assert.ErrorIs(t, err, ErrQuery)

	_, err = Compile(nil)
	assert.ErrorIs(t, err, ErrQuery)

	_, err = Compile(Match(All(OfKind(ast.KindId), nil)))
	assert.ErrorIs(t, err, ErrQuery)
	assert.Contains(t, err.Error(), "nil predicate")
}

func TestCompileRejectsTooManyStages(t *testing.T) {
	stages := make([]Stage, MaxStages+1)
	for i := range stages {
		stages[i] = Match(OfKind(ast.KindId))
	}
	_, err := Compile(stages...)
	assert.ErrorIs(t, err, ErrQuery)
}

func TestCompileCollapsesWildcards(t *testing.T) {
	q, err := Compile(AnyDepth(), AnyDepth(), Match(OfKind(ast.KindFind)))
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, "**/Find", q.String())
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() { MustCompile() })
}

func TestWildcardIsComplete(t *testing.T) {
	s := sampleTree()
	root := s.tree.Parent(s.rule)

	for _, kind := range []ast.Kind{
		ast.KindModule, ast.KindRule, ast.KindBody, ast.KindFind,
		ast.KindRelConstr, ast.KindFuncTerm, ast.KindId, ast.KindCnst,
	} {
		t.Run(string(kind), func(t *testing.T) {
			q := MustCompile(AnyDepth(), Match(OfKind(kind)))

			var want []ast.NodeID
			for _, id := range allBelow(s.tree, root) {
				if s.tree.Kind(id) == kind {
					want = append(want, id)
				}
			}
			assert.Equal(t, want, q.Nodes(s.tree, root))
		})
	}
}

func TestWildcardIncludesStartNode(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(OfKind(ast.KindBody)))

	assert.Equal(t, []ast.NodeID{s.body}, q.Nodes(s.tree, s.body))
}

func TestExactChain(t *testing.T) {
	s := sampleTree()

	// Body / Find / Match FuncTerm / Args Id
	q := MustCompile(
		Match(OfKind(ast.KindBody)),
		Match(Node(ast.KindFind, ast.RoleConstraints)),
		Match(InRole(ast.RoleMatch)),
		Match(Node(ast.KindId, ast.RoleArgs)),
	)
	assert.Equal(t, []string{"a", "b"}, names(s.tree, q.Nodes(s.tree, s.body)))

	// Stage 0 applies to the start node itself.
	assert.Empty(t, q.Nodes(s.tree, s.rule))
}

func TestExactChainDoesNotSkipLevels(t *testing.T) {
	s := sampleTree()
	q := MustCompile(Match(OfKind(ast.KindBody)), Match(OfKind(ast.KindId)))

	assert.Empty(t, q.Nodes(s.tree, s.body), "Ids are never direct children of a Body")
}

func TestOrStage(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(OfKind(ast.KindFind), OfKind(ast.KindRelConstr)))

	got := q.Nodes(s.tree, s.body)
	require.Len(t, got, 3)
	assert.Equal(t, ast.KindFind, s.tree.Kind(got[0]))
	assert.Equal(t, ast.KindRelConstr, s.tree.Kind(got[1]))
	assert.Equal(t, ast.KindRelConstr, s.tree.Kind(got[2]))
}

func TestRolePredicate(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(Node(ast.KindId, ast.RoleBinding)))
	assert.Equal(t, []string{"e"}, names(s.tree, q.Nodes(s.tree, s.rule)))

	heads := MustCompile(AnyDepth(), Match(Node(ast.KindFuncTerm, ast.RoleHeads)))
	assert.Equal(t, []string{"Path(a, c)"}, names(s.tree, heads.Nodes(s.tree, s.rule)))

	root := MustCompile(Match(InRole(ast.RoleNone)))
	assert.Len(t, root.Nodes(s.tree, s.tree.Parent(s.rule)), 1)
}

func TestEmptyAndAlwaysHolds(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(All()))
	assert.Equal(t, len(allBelow(s.tree, s.body)), q.Count(s.tree, s.body))
}

func TestMiddleWildcard(t *testing.T) {
	s := sampleTree()
	// Ids anywhere below a RelConstr.
	q := MustCompile(AnyDepth(), Match(OfKind(ast.KindRelConstr)), AnyDepth(), Match(OfKind(ast.KindId)))

	assert.Equal(t, []string{"z", "e.src", "c"}, names(s.tree, q.Nodes(s.tree, s.rule)))
}

func TestNoDuplicateReports(t *testing.T) {
	tree := ast.NewTree()
	// Nested FuncTerms give many wildcard paths to the innermost Id.
	inner := tree.Func("F", tree.Func("F", tree.Func("F", tree.Id("x"))))
	body := tree.Body(inner)

	q := MustCompile(AnyDepth(), Match(OfKind(ast.KindFuncTerm)), AnyDepth(), Match(OfKind(ast.KindId)))
	assert.Equal(t, 1, q.Count(tree, body))

	funcs := MustCompile(AnyDepth(), Match(OfKind(ast.KindFuncTerm)), AnyDepth(), Match(OfKind(ast.KindFuncTerm)))
	assert.Equal(t, 2, funcs.Count(tree, body), "each inner FuncTerm reported once")
}

func TestAncestorChain(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(Node(ast.KindId, ast.RoleBinding)))

	outer := s.tree.Ancestors(s.body)
	var got []ast.NodeID
	var match ast.NodeID
	q.Walk(s.tree, s.body, outer, func(ancestors []ast.NodeID, n ast.NodeID) {
		got = append([]ast.NodeID(nil), ancestors...)
		match = n
	})

	assert.Equal(t, s.tree.Ancestors(match), got)
	assert.Equal(t, append(outer, s.body, s.find), got)
}

func TestAncestorChainNotClobbered(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(OfKind(ast.KindId)))

	for _, m := range q.FindAll(s.tree, s.rule) {
		var want []ast.NodeID
		for _, a := range s.tree.Ancestors(m.Node) {
			if a == s.rule || len(want) > 0 {
				want = append(want, a)
			}
		}
		assert.Equal(t, want, m.Ancestors, "match %s", s.tree.String(m.Node))
	}
}

func TestDeterministic(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(OfKind(ast.KindId), OfKind(ast.KindCnst)))

	first := q.FindAll(s.tree, s.rule)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, q.FindAll(s.tree, s.rule))
	}
}

func TestPreOrder(t *testing.T) {
	s := sampleTree()
	q := MustCompile(AnyDepth(), Match(All()))
	assert.Equal(t, allBelow(s.tree, s.find), q.Nodes(s.tree, s.find))
}

func TestStageStrings(t *testing.T) {
	q := MustCompile(
		AnyDepth(),
		Match(OfKind(ast.KindFind), Node(ast.KindId, ast.RoleArgs)),
		Match(InRole(ast.RoleNone)),
	)
	assert.Equal(t, "**/(Find|Id&@Args)/@root", q.String())
}
