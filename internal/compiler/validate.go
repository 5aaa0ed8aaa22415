package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/formula/internal/ast"
	"github.com/roach88/formula/internal/symbols"
)

// Validation error codes (E200-E299)
const (
	ErrUnsafeRule          = "E201" // body uses a variable no constraint binds
	ErrUnknownSymbol       = "E202" // head applies an undeclared function
	ErrHeadNotInstantiable = "E203" // head function is not a constructor or map
	ErrArityMismatch       = "E204" // FuncTerm argument count differs from declaration
)

// ValidationError represents a program validation error.
type ValidationError struct {
	Field   string  `json:"field"`
	Message string  `json:"message"`
	Code    string  `json:"code"`
	Pos     ast.Pos `json:"pos,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks every rule of p.
// Returns all errors found (does not fail-fast), rule by rule in declaration order.
func Validate(p *Program) []ValidationError {
	var errs []ValidationError
	for _, rule := range p.Rules {
		errs = append(errs, validateRule(p, rule)...)
	}
	return errs
}

func validateRule(p *Program, rule ast.NodeID) []ValidationError {
	var errs []ValidationError
	t := p.Tree
	field := "rules." + t.Name(rule)

	// E202/E203: heads must build instances of declared constructors or maps.
	for i, head := range t.ChildrenWithRole(rule, ast.RoleHeads) {
		headField := fmt.Sprintf("%s.head[%d]", field, i)
		if t.Kind(head) != ast.KindFuncTerm {
			errs = append(errs, ValidationError{
				Field:   headField,
				Message: fmt.Sprintf("head %s is not a function application", t.String(head)),
				Code:    ErrHeadNotInstantiable,
				Pos:     t.Pos(head),
			})
			continue
		}
		sym, ok := p.Symbols.TryGetSymbol(t.Name(head))
		if !ok {
			errs = append(errs, ValidationError{
				Field:   headField,
				Message: fmt.Sprintf("unknown symbol %q", t.Name(head)),
				Code:    ErrUnknownSymbol,
				Pos:     t.Pos(head),
			})
			continue
		}
		if !sym.Instantiable() {
			errs = append(errs, ValidationError{
				Field:   headField,
				Message: fmt.Sprintf("symbol %s is a %s, heads must be a constructor or map", sym.Name, sym.Kind),
				Code:    ErrHeadNotInstantiable,
				Pos:     t.Pos(head),
			})
		}
	}

	// E204: declared symbols applied with the wrong number of arguments.
	sections := ruleSections(t, rule, field)
	funcTermScan.Walk(t, rule, nil, func(_ []ast.NodeID, fn ast.NodeID) {
		sym, ok := p.Symbols.TryGetSymbol(t.Name(fn))
		if !ok || !hasArity(sym) {
			return
		}
		if got := len(t.Args(fn)); got != sym.Arity {
			errs = append(errs, ValidationError{
				Field:   sectionField(t, sections, fn, field),
				Message: fmt.Sprintf("%s expects %d arguments, got %d in %s", sym.Name, sym.Arity, got, t.String(fn)),
				Code:    ErrArityMismatch,
				Pos:     t.Pos(fn),
			})
		}
	})

	// E201: range restriction.
	for _, v := range AnalyzeRule(t, rule, p.Symbols) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("%s.body[%d]", field, v.BodyIndex),
			Message: fmt.Sprintf("unsafe variables: %s", strings.Join(v.Unsafe, ", ")),
			Code:    ErrUnsafeRule,
			Pos:     v.Pos,
		})
	}

	return errs
}

// ruleSections maps each head and body of rule to its diagnostic field.
func ruleSections(t *ast.Tree, rule ast.NodeID, field string) map[ast.NodeID]string {
	sections := make(map[ast.NodeID]string)
	for i, head := range t.ChildrenWithRole(rule, ast.RoleHeads) {
		sections[head] = fmt.Sprintf("%s.head[%d]", field, i)
	}
	for i, body := range t.ChildrenWithRole(rule, ast.RoleBodies) {
		sections[body] = fmt.Sprintf("%s.body[%d]", field, i)
	}
	return sections
}

// sectionField returns the field of the head or body enclosing n, or
// fallback when n sits in neither.
func sectionField(t *ast.Tree, sections map[ast.NodeID]string, n ast.NodeID, fallback string) string {
	for ; n != ast.NoNode; n = t.Parent(n) {
		if f, ok := sections[n]; ok {
			return f
		}
	}
	return fallback
}

// hasArity reports whether applications of sym have a fixed argument count.
// Unions and base sorts are not applied.
func hasArity(sym symbols.UserSymbol) bool {
	return sym.Kind == symbols.ConSymb || sym.Kind == symbols.MapSymb
}
