package ast

import "fmt"

// The constructors below append nodes to the arena and attach the given
// children. A child may be attached to exactly one parent; attaching it a
// second time is a programming error and panics.

func (t *Tree) add(n node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) attach(parent NodeID, role Role, child NodeID) {
	c := t.get(child)
	if c.parent != NoNode {
		panic(fmt.Sprintf("ast: node %d already attached to %d", child, c.parent))
	}
	if child == parent {
		panic(fmt.Sprintf("ast: node %d attached to itself", child))
	}
	p := t.get(parent)
	c.parent = parent
	c.role = role
	c.index = len(p.children)
	p.children = append(p.children, Child{Role: role, Index: c.index, ID: child})
}

// SetPos records the source position of a node.
func (t *Tree) SetPos(id NodeID, pos Pos) {
	t.get(id).pos = pos
}

// Id adds an identifier node. Dotted names are qualified identifiers.
func (t *Tree) Id(name string) NodeID {
	return t.add(node{kind: KindId, name: name})
}

// Int adds an integer constant.
func (t *Tree) Int(v int64) NodeID {
	return t.add(node{kind: KindCnst, ival: v})
}

// Str adds a string constant.
func (t *Tree) Str(s string) NodeID {
	return t.add(node{kind: KindCnst, sval: s, isStr: true})
}

// Func adds a function/relation application over args.
func (t *Tree) Func(function string, args ...NodeID) NodeID {
	id := t.add(node{kind: KindFuncTerm, name: function})
	for _, a := range args {
		t.attach(id, RoleArgs, a)
	}
	return id
}

// Rel adds a relational constraint lhs op rhs.
func (t *Tree) Rel(op RelOp, lhs, rhs NodeID) NodeID {
	id := t.add(node{kind: KindRelConstr, op: op})
	t.attach(id, RoleArgs, lhs)
	t.attach(id, RoleArgs, rhs)
	return id
}

// Eq is shorthand for Rel(RelEq, lhs, rhs).
func (t *Tree) Eq(lhs, rhs NodeID) NodeID {
	return t.Rel(RelEq, lhs, rhs)
}

// Find adds a pattern-binding node. An empty binding leaves the Find anonymous.
func (t *Tree) Find(binding string, match NodeID) NodeID {
	id := t.add(node{kind: KindFind})
	if binding != "" {
		t.attach(id, RoleBinding, t.Id(binding))
	}
	t.attach(id, RoleMatch, match)
	return id
}

// Body adds a conjunction of constraints.
func (t *Tree) Body(constraints ...NodeID) NodeID {
	id := t.add(node{kind: KindBody})
	for _, c := range constraints {
		t.attach(id, RoleConstraints, c)
	}
	return id
}

// Rule adds a rule with the given heads and bodies.
func (t *Tree) Rule(name string, heads []NodeID, bodies ...NodeID) NodeID {
	id := t.add(node{kind: KindRule, name: name})
	for _, h := range heads {
		t.attach(id, RoleHeads, h)
	}
	for _, b := range bodies {
		t.attach(id, RoleBodies, b)
	}
	return id
}

// Module adds a module root holding rules.
func (t *Tree) Module(name string, rules ...NodeID) NodeID {
	id := t.add(node{kind: KindModule, name: name})
	for _, r := range rules {
		t.attach(id, RoleRules, r)
	}
	return id
}
