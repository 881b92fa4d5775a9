package muf

import (
	"sort"
	"strings"
)

// Variable is a named slot. Constants are pushed as their literal value and
// reject assignment.
type Variable struct {
	Name       string
	Value      Datum
	IsConstant bool
}

// Scope is one level of variable storage: a word's function scope or a
// program's locals for a single run. Names are case-insensitive.
type Scope struct {
	vars map[string]*Variable
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]*Variable)}
}

func scopeKey(name string) string { return strings.ToLower(name) }

// Declare adds a variable; redeclaring a name in the same scope fails.
func (s *Scope) Declare(name string, value Datum, constant bool) Result {
	k := scopeKey(name)
	if _, ok := s.vars[k]; ok {
		return Fail(VariableAlreadyDefined, "variable %q already defined", name)
	}
	s.vars[k] = &Variable{Name: name, Value: value, IsConstant: constant}
	return Success()
}

// Lookup returns the named variable.
func (s *Scope) Lookup(name string) (*Variable, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.vars[scopeKey(name)]
	return v, ok
}

// Set assigns to an existing, non-constant variable.
func (s *Scope) Set(name string, value Datum) Result {
	v, ok := s.Lookup(name)
	if !ok {
		return Fail(VariableNotFound, "variable %q not found", name)
	}
	if v.IsConstant {
		return Fail(VariableIsConstant, "variable %q is constant", name)
	}
	value.Pos = nil
	v.Value = value
	return Success()
}

// Names lists declared names in sorted order.
func (s *Scope) Names() []string {
	out := make([]string, 0, len(s.vars))
	for _, v := range s.vars {
		out = append(out, v.Name)
	}
	sort.Strings(out)
	return out
}

// Len is the number of declared variables.
func (s *Scope) Len() int { return len(s.vars) }

// VarView is the read-only variable lookup handed to primitives.
type VarView interface {
	LookupVar(name string) (Variable, bool)
}
