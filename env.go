// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nin

import "strings"

// Env is a scope for variable ("$foo") lookups.
type Env interface {
	LookupVariable(name string) string
}

type evalToken struct {
	text    string
	special bool
}

// EvalString is a tokenized string that contains variable references.
// It can be evaluated relative to an Env.
type EvalString struct {
	Parsed []evalToken
}

// AddText appends a literal run of text, merging into the previous raw
// token when possible.
func (e *EvalString) AddText(text string) {
	if n := len(e.Parsed); n > 0 && !e.Parsed[n-1].special {
		e.Parsed[n-1].text += text
		return
	}
	e.Parsed = append(e.Parsed, evalToken{text: text})
}

// AddSpecial appends a variable reference ("$foo" or "${foo}").
func (e *EvalString) AddSpecial(text string) {
	e.Parsed = append(e.Parsed, evalToken{text: text, special: true})
}

// Evaluate expands every token against env.
func (e *EvalString) Evaluate(env Env) string {
	var b strings.Builder
	for _, tok := range e.Parsed {
		if tok.special {
			b.WriteString(env.LookupVariable(tok.text))
		} else {
			b.WriteString(tok.text)
		}
	}
	return b.String()
}

// Serialize renders the token list for debugging and tests.
func (e *EvalString) Serialize() string {
	var b strings.Builder
	for _, tok := range e.Parsed {
		b.WriteString("[")
		if tok.special {
			b.WriteString("$")
		}
		b.WriteString(tok.text)
		b.WriteString("]")
	}
	return b.String()
}

// Unparse renders the token list back into ninja-manifest syntax.
func (e *EvalString) Unparse() string {
	var b strings.Builder
	for _, tok := range e.Parsed {
		if tok.special {
			b.WriteString("${")
			b.WriteString(tok.text)
			b.WriteString("}")
		} else {
			b.WriteString(tok.text)
		}
	}
	return b.String()
}

// reservedBindings are the variable names a rule block may bind; the
// manifest parser rejects any other name inside a rule. Of these, only
// command, description, pool, rspfile and rspfile_content are read by this
// engine; the rest are accepted and stored but have no effect.
var reservedBindings = map[string]bool{
	"command":          true,
	"description":      true,
	"pool":             true,
	"restat":           true,
	"rspfile":          true,
	"rspfile_content":  true,
	"generator":        true,
	"command_hash":     true,
	"deps":             true,
	"depfile":          true,
	"msvc_deps_prefix": true,
}

// IsReservedBinding reports whether name is one of the variable names a
// rule block may bind.
func IsReservedBinding(name string) bool {
	return reservedBindings[name]
}

// Rule is an invocable build command and its associated metadata
// (description, pool, response file, ...).
type Rule struct {
	Name     string
	Bindings map[string]*EvalString
}

// NewRule creates an empty rule ready to receive bindings.
func NewRule(name string) *Rule {
	return &Rule{Name: name, Bindings: map[string]*EvalString{}}
}

// GetBinding returns the raw (unevaluated) binding for key, or nil.
func (r *Rule) GetBinding(key string) *EvalString {
	return r.Bindings[key]
}

// PhonyRule is the sentinel rule whose edges never spawn a process.
var PhonyRule = &Rule{Name: "phony", Bindings: map[string]*EvalString{}}

// BindingEnv is an Env backed by a map of variables and rules, with an
// optional parent scope — rule-level indent blocks and subninja files each
// get their own BindingEnv chained to the manifest's root scope.
type BindingEnv struct {
	Bindings map[string]string
	Rules    map[string]*Rule
	Parent   *BindingEnv
}

// NewBindingEnv creates a scope, optionally chained to parent.
func NewBindingEnv(parent *BindingEnv) *BindingEnv {
	return &BindingEnv{
		Bindings: map[string]string{},
		Rules:    map[string]*Rule{},
		Parent:   parent,
	}
}

// LookupVariable implements Env, falling back to the parent scope.
func (b *BindingEnv) LookupVariable(name string) string {
	if v, ok := b.Bindings[name]; ok {
		return v
	}
	if b.Parent != nil {
		return b.Parent.LookupVariable(name)
	}
	return ""
}

// LookupRuleCurrentScope looks up a rule without consulting the parent.
func (b *BindingEnv) LookupRuleCurrentScope(name string) *Rule {
	return b.Rules[name]
}

// LookupRule looks up a rule, falling back to the parent scope.
func (b *BindingEnv) LookupRule(name string) *Rule {
	if r, ok := b.Rules[name]; ok {
		return r
	}
	if b.Parent != nil {
		return b.Parent.LookupRule(name)
	}
	return nil
}

// AddRule registers a rule in this scope. The caller must have already
// checked LookupRuleCurrentScope returned nil.
func (b *BindingEnv) AddRule(rule *Rule) {
	b.Rules[rule.Name] = rule
}

// LookupWithFallback resolves a binding: an edge-scoped override first,
// then the provided EvalString evaluated against env, then the parent
// scope's plain variable.
func (b *BindingEnv) LookupWithFallback(name string, eval *EvalString, env Env) string {
	if v, ok := b.Bindings[name]; ok {
		return v
	}
	if eval != nil {
		return eval.Evaluate(env)
	}
	if b.Parent != nil {
		return b.Parent.LookupVariable(name)
	}
	return ""
}
