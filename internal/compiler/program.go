package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/formula/internal/ast"
	"github.com/roach88/formula/internal/symbols"
)

// DefaultModuleName is used when a spec does not name its module.
const DefaultModuleName = "main"

// identPattern matches plain and dotted identifiers (x, e.src, Graph.Edge).
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_']*(\.[A-Za-z_][A-Za-z0-9_']*)*$`)

// Program is a compiled module: its tree, its rules in declaration order,
// and the symbols it declares.
type Program struct {
	Name    string
	Tree    *ast.Tree
	Root    ast.NodeID
	Rules   []ast.NodeID
	Symbols *symbols.Table
}

// NewProgram wraps an already-built module tree.
func NewProgram(tree *ast.Tree, module ast.NodeID, table *symbols.Table) *Program {
	return &Program{
		Name:    tree.Name(module),
		Tree:    tree,
		Root:    module,
		Rules:   tree.ChildrenWithRole(module, ast.RoleRules),
		Symbols: table,
	}
}

// Rule looks up a rule by id.
func (p *Program) Rule(id string) (ast.NodeID, bool) {
	for _, r := range p.Rules {
		if p.Tree.Name(r) == id {
			return r, true
		}
	}
	return ast.NoNode, false
}

// CompileProgram builds a Program from a CUE value of the form
//
//	module: "Graph"
//	symbols: Edge: {kind: "constructor", arity: 2}
//	rules: path: {
//		head: [{fn: "Path", args: ["a", "c"]}]
//		body: [
//			{find: {bind: "e", match: {fn: "Edge", args: ["a", "b"]}}},
//			{rel: "!=", args: ["e.src", 0]},
//		]
//	}
//
// A term is a string (identifier), an int, {str: "..."} or {fn, args}.
// A constraint is a term, {find: {bind?, match}} or {rel, args: [lhs, rhs]}.
// body is either one constraint list or a list of constraint lists, one per
// alternative body. A rule without a body is a fact.
func CompileProgram(v cue.Value) (*Program, error) {
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &programCompiler{tree: ast.NewTree()}

	name := DefaultModuleName
	if nameVal := v.LookupPath(cue.ParsePath("module")); nameVal.Exists() {
		s, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		name = s
	}

	table, err := compileSymbols(v.LookupPath(cue.ParsePath("symbols")))
	if err != nil {
		return nil, err
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{Field: "rules", Message: "rules is required", Pos: v.Pos()}
	}
	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []ast.NodeID
	for iter.Next() {
		rule, err := c.rule(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	root := c.tree.Module(name, rules...)
	c.tree.SetPos(root, astPos(v.Pos()))
	return NewProgram(c.tree, root, table), nil
}

func compileSymbols(v cue.Value) (*symbols.Table, error) {
	table := symbols.MustTable()
	if !v.Exists() {
		return table, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		symVal := iter.Value()
		field := "symbols." + name

		kindVal := symVal.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{Field: field, Message: "kind is required", Pos: symVal.Pos()}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		sym := symbols.UserSymbol{Name: name, Kind: symbols.SymbolKind(kind)}
		if arityVal := symVal.LookupPath(cue.ParsePath("arity")); arityVal.Exists() {
			n, err := arityVal.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			sym.Arity = int(n)
		}
		if autoVal := symVal.LookupPath(cue.ParsePath("auto_gen")); autoVal.Exists() {
			if sym.IsAutoGen, err = autoVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		if err := table.Add(sym); err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: symVal.Pos()}
		}
	}
	return table, nil
}

type programCompiler struct {
	tree *ast.Tree
}

func (c *programCompiler) rule(id string, v cue.Value) (ast.NodeID, error) {
	field := "rules." + id

	headVal := v.LookupPath(cue.ParsePath("head"))
	if !headVal.Exists() {
		return ast.NoNode, &CompileError{Field: field + ".head", Message: "head is required", Pos: v.Pos()}
	}
	heads, err := c.termList(headVal, field+".head")
	if err != nil {
		return ast.NoNode, err
	}
	if len(heads) == 0 {
		return ast.NoNode, &CompileError{Field: field + ".head", Message: "at least one head term is required", Pos: headVal.Pos()}
	}

	var bodies []ast.NodeID
	if bodyVal := v.LookupPath(cue.ParsePath("body")); bodyVal.Exists() {
		bodies, err = c.bodies(bodyVal, field+".body")
		if err != nil {
			return ast.NoNode, err
		}
	}

	rule := c.tree.Rule(id, heads, bodies...)
	c.tree.SetPos(rule, astPos(v.Pos()))
	return rule, nil
}

// bodies accepts either [constraint...] or [[constraint...]...].
func (c *programCompiler) bodies(v cue.Value, field string) ([]ast.NodeID, error) {
	if v.Kind() != cue.ListKind {
		return nil, &CompileError{Field: field, Message: "body must be a list", Pos: v.Pos()}
	}

	items, err := listValues(v)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	if items[0].Kind() != cue.ListKind {
		body, err := c.body(v, field)
		if err != nil {
			return nil, err
		}
		return []ast.NodeID{body}, nil
	}

	out := make([]ast.NodeID, 0, len(items))
	for i, item := range items {
		if item.Kind() != cue.ListKind {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "cannot mix constraint lists and constraints",
				Pos:     item.Pos(),
			}
		}
		body, err := c.body(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, nil
}

func (c *programCompiler) body(v cue.Value, field string) (ast.NodeID, error) {
	items, err := listValues(v)
	if err != nil {
		return ast.NoNode, err
	}
	constraints := make([]ast.NodeID, 0, len(items))
	for i, item := range items {
		con, err := c.constraint(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return ast.NoNode, err
		}
		constraints = append(constraints, con)
	}
	body := c.tree.Body(constraints...)
	c.tree.SetPos(body, astPos(v.Pos()))
	return body, nil
}

func (c *programCompiler) constraint(v cue.Value, field string) (ast.NodeID, error) {
	if v.Kind() != cue.StructKind {
		return c.term(v, field)
	}

	if findVal := v.LookupPath(cue.ParsePath("find")); findVal.Exists() {
		return c.find(findVal, field+".find")
	}
	if relVal := v.LookupPath(cue.ParsePath("rel")); relVal.Exists() {
		return c.rel(v, relVal, field)
	}
	return c.term(v, field)
}

func (c *programCompiler) find(v cue.Value, field string) (ast.NodeID, error) {
	var binding string
	if bindVal := v.LookupPath(cue.ParsePath("bind")); bindVal.Exists() {
		s, err := bindVal.String()
		if err != nil {
			return ast.NoNode, formatCUEError(err)
		}
		if !identPattern.MatchString(s) {
			return ast.NoNode, &CompileError{Field: field + ".bind", Message: fmt.Sprintf("invalid identifier %q", s), Pos: bindVal.Pos()}
		}
		if strings.Contains(s, ".") {
			return ast.NoNode, &CompileError{Field: field + ".bind", Message: fmt.Sprintf("binding %q must be a plain variable, not qualified", s), Pos: bindVal.Pos()}
		}
		binding = s
	}

	matchVal := v.LookupPath(cue.ParsePath("match"))
	if !matchVal.Exists() {
		return ast.NoNode, &CompileError{Field: field, Message: "match is required", Pos: v.Pos()}
	}
	match, err := c.term(matchVal, field+".match")
	if err != nil {
		return ast.NoNode, err
	}

	id := c.tree.Find(binding, match)
	c.tree.SetPos(id, astPos(v.Pos()))
	return id, nil
}

func (c *programCompiler) rel(v, opVal cue.Value, field string) (ast.NodeID, error) {
	op, err := opVal.String()
	if err != nil {
		return ast.NoNode, formatCUEError(err)
	}
	if !ast.ValidRelOps[ast.RelOp(op)] {
		return ast.NoNode, &CompileError{Field: field + ".rel", Message: fmt.Sprintf("unknown operator %q", op), Pos: opVal.Pos()}
	}

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return ast.NoNode, &CompileError{Field: field, Message: "args is required", Pos: v.Pos()}
	}
	args, err := c.termList(argsVal, field+".args")
	if err != nil {
		return ast.NoNode, err
	}
	if len(args) != 2 {
		return ast.NoNode, &CompileError{
			Field:   field + ".args",
			Message: fmt.Sprintf("relational constraint needs 2 arguments, got %d", len(args)),
			Pos:     argsVal.Pos(),
		}
	}

	id := c.tree.Rel(ast.RelOp(op), args[0], args[1])
	c.tree.SetPos(id, astPos(v.Pos()))
	return id, nil
}

func (c *programCompiler) term(v cue.Value, field string) (ast.NodeID, error) {
	var id ast.NodeID

	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return ast.NoNode, formatCUEError(err)
		}
		if !identPattern.MatchString(s) {
			return ast.NoNode, &CompileError{Field: field, Message: fmt.Sprintf("invalid identifier %q", s), Pos: v.Pos()}
		}
		id = c.tree.Id(s)

	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return ast.NoNode, formatCUEError(err)
		}
		id = c.tree.Int(n)

	case cue.StructKind:
		if strVal := v.LookupPath(cue.ParsePath("str")); strVal.Exists() {
			s, err := strVal.String()
			if err != nil {
				return ast.NoNode, formatCUEError(err)
			}
			id = c.tree.Str(s)
			break
		}

		fnVal := v.LookupPath(cue.ParsePath("fn"))
		if !fnVal.Exists() {
			return ast.NoNode, &CompileError{Field: field, Message: "term must have fn or str", Pos: v.Pos()}
		}
		fn, err := fnVal.String()
		if err != nil {
			return ast.NoNode, formatCUEError(err)
		}
		if !identPattern.MatchString(fn) {
			return ast.NoNode, &CompileError{Field: field + ".fn", Message: fmt.Sprintf("invalid function name %q", fn), Pos: fnVal.Pos()}
		}

		var args []ast.NodeID
		if argsVal := v.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
			if args, err = c.termList(argsVal, field+".args"); err != nil {
				return ast.NoNode, err
			}
		}
		id = c.tree.Func(fn, args...)

	case cue.FloatKind:
		return ast.NoNode, &CompileError{Field: field, Message: "float constants are not supported, use int", Pos: v.Pos()}

	default:
		return ast.NoNode, &CompileError{Field: field, Message: fmt.Sprintf("unsupported term kind: %v", v.IncompleteKind()), Pos: v.Pos()}
	}

	c.tree.SetPos(id, astPos(v.Pos()))
	return id, nil
}

func (c *programCompiler) termList(v cue.Value, field string) ([]ast.NodeID, error) {
	if v.Kind() != cue.ListKind {
		return nil, &CompileError{Field: field, Message: "expected a list", Pos: v.Pos()}
	}
	items, err := listValues(v)
	if err != nil {
		return nil, err
	}
	out := make([]ast.NodeID, 0, len(items))
	for i, item := range items {
		id, err := c.term(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func listValues(v cue.Value) ([]cue.Value, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []cue.Value
	for iter.Next() {
		out = append(out, iter.Value())
	}
	return out, nil
}
