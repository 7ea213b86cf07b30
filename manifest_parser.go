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

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// FileReader abstracts reading manifest files, so tests can substitute an
// in-memory set of files instead of touching the real filesystem.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// RealFileReader is the FileReader backed by the actual filesystem.
type RealFileReader struct{}

// ReadFile reads path from disk.
func (RealFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ManifestParserOptions tunes how strictly the parser treats recoverable
// manifest problems.
type ManifestParserOptions struct {
	// ErrOnDupeEdge turns a second edge producing an already-generated
	// output into a hard error instead of a warning.
	ErrOnDupeEdge bool
	Quiet         bool
}

// ManifestParser turns ninja-file text into edges, pools, and bindings in
// a State. One ManifestParser processes exactly one root manifest, though
// it recurses into itself (a fresh instance per included or subninja'd
// file) to keep each file's lexer state independent.
type ManifestParser struct {
	fr      FileReader
	options ManifestParserOptions
	state   *State

	lexer Lexer
	env   *BindingEnv

	subninjas []pendingSubninja
}

type pendingSubninja struct {
	filename string
	input    []byte
	err      error
}

// NewManifestParser creates a parser that will populate state.
func NewManifestParser(state *State, fr FileReader, options ManifestParserOptions) *ManifestParser {
	return &ManifestParser{state: state, fr: fr, options: options, env: state.Bindings}
}

// Load reads filename and parses it as the root manifest.
func (m *ManifestParser) Load(ctx context.Context, filename string) error {
	input, err := m.fr.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("loading '%s': %w", filename, err)
	}
	return m.Parse(ctx, filename, string(input))
}

// Parse processes input as if it were the contents of filename.
func (m *ManifestParser) Parse(ctx context.Context, filename, input string) error {
	m.lexer.Start(filename, input)

	var errStr string
loop:
	for {
		token := m.lexer.ReadToken()
		var err error
		switch token {
		case POOL:
			err = m.parsePool()
		case BUILD:
			err = m.parseEdge()
		case RULE:
			err = m.parseRule()
		case DEFAULT:
			err = m.parseDefault()
		case IDENT:
			m.lexer.UnreadToken()
			err = m.parseIdent()
		case INCLUDE:
			err = m.parseInclude(ctx)
		case SUBNINJA:
			err = m.parseSubninja()
		case ERROR:
			m.lexer.Error(m.lexer.DescribeLastError(), &errStr)
			err = fmt.Errorf("%s", errStr)
		case TEOF:
			break loop
		case NEWLINE:
		default:
			m.lexer.Error("unexpected "+TokenName(token), &errStr)
			err = fmt.Errorf("%s", errStr)
		}
		if err != nil {
			return err
		}
	}

	return m.processSubninjaQueue(ctx)
}

// parsePool parses a "pool" block and registers it on the state.
func (m *ManifestParser) parsePool() error {
	name, err := m.readIdentOrErr("expected pool name")
	if err != nil {
		return err
	}
	if err := m.expectToken(NEWLINE); err != nil {
		return err
	}

	var depthEval EvalString
	haveDepth := false
	for m.lexer.PeekToken(INDENT) {
		key, value, err := m.parseLet()
		if err != nil {
			return err
		}
		if key != "depth" {
			return m.errorf("unexpected variable '%s'", key)
		}
		depthEval = value
		haveDepth = true
	}
	if !haveDepth {
		return m.errorf("expected 'depth =' line")
	}

	if m.state.LookupPool(name) != nil {
		return m.errorf("duplicate pool '%s'", name)
	}
	depthStr := depthEval.Evaluate(m.env)
	depth, err := strconv.Atoi(depthStr)
	if err != nil || depth < 0 {
		return m.errorf("invalid pool depth")
	}
	m.state.AddPool(NewPool(name, depth))
	return nil
}

// parseRule parses a "rule" block.
func (m *ManifestParser) parseRule() error {
	name, err := m.readIdentOrErr("expected rule name")
	if err != nil {
		return err
	}
	if err := m.expectToken(NEWLINE); err != nil {
		return err
	}

	rule := NewRule(name)
	for m.lexer.PeekToken(INDENT) {
		key, value, err := m.parseLet()
		if err != nil {
			return err
		}
		if !IsReservedBinding(key) {
			return m.errorf("unexpected variable '%s'", key)
		}
		v := value
		rule.Bindings[key] = &v
	}

	rsp, hasRsp := rule.Bindings["rspfile"]
	content, hasContent := rule.Bindings["rspfile_content"]
	if hasRsp != hasContent || (hasRsp && (len(rsp.Parsed) == 0) != (len(content.Parsed) == 0)) {
		return m.errorf("rspfile and rspfile_content need to be both specified")
	}
	if m.env.LookupRuleCurrentScope(name) != nil {
		return m.errorf("duplicate rule '%s'", name)
	}
	m.env.AddRule(rule)
	return nil
}

// parseDefault parses a "default" statement.
func (m *ManifestParser) parseDefault() error {
	var targets []EvalString
	for {
		eval, err := m.readPathOrErr()
		if err != nil {
			return err
		}
		if eval == nil {
			break
		}
		targets = append(targets, *eval)
	}
	if len(targets) == 0 {
		return m.errorf("expected target name")
	}
	if err := m.expectToken(NEWLINE); err != nil {
		return err
	}

	for _, t := range targets {
		path := t.Evaluate(m.env)
		if path == "" {
			return m.errorf("empty path")
		}
		if err := m.state.AddDefault(canonicalizePath(path)); err != nil {
			return m.errorf("%s", err.Error())
		}
	}
	return nil
}

// parseIdent parses a top-level "name = value" binding.
func (m *ManifestParser) parseIdent() error {
	key, value, err := m.parseLet()
	if err != nil {
		return err
	}
	evaluated := value.Evaluate(m.env)
	if key == "ninja_required_version" {
		if err := checkManifestVersion(evaluated); err != nil {
			return err
		}
	}
	m.env.Bindings[key] = evaluated
	return nil
}

// parseEdge parses a "build" statement.
func (m *ManifestParser) parseEdge() error {
	var outs []EvalString
	for {
		eval, err := m.readPathOrErr()
		if err != nil {
			return err
		}
		if eval == nil {
			break
		}
		outs = append(outs, *eval)
	}
	implicitOuts := 0
	if m.lexer.PeekToken(PIPE) {
		for {
			eval, err := m.readPathOrErr()
			if err != nil {
				return err
			}
			if eval == nil {
				break
			}
			outs = append(outs, *eval)
			implicitOuts++
		}
	}
	if len(outs) == 0 {
		return m.errorf("expected path")
	}

	if err := m.expectToken(COLON); err != nil {
		return err
	}

	ruleName, err := m.readIdentOrErr("expected build command name")
	if err != nil {
		return err
	}

	var ins []EvalString
	implicitDeps, orderOnly := 0, 0
	for {
		eval, err := m.readPathOrErr()
		if err != nil {
			return err
		}
		if eval == nil {
			break
		}
		ins = append(ins, *eval)
	}
	if m.lexer.PeekToken(PIPE) {
		for {
			eval, err := m.readPathOrErr()
			if err != nil {
				return err
			}
			if eval == nil {
				break
			}
			ins = append(ins, *eval)
			implicitDeps++
		}
	}
	if m.lexer.PeekToken(PIPE2) {
		for {
			eval, err := m.readPathOrErr()
			if err != nil {
				return err
			}
			if eval == nil {
				break
			}
			ins = append(ins, *eval)
			orderOnly++
		}
	}

	if err := m.expectToken(NEWLINE); err != nil {
		return err
	}

	var bindings []keyEval
	for m.lexer.PeekToken(INDENT) {
		key, value, err := m.parseLet()
		if err != nil {
			return err
		}
		bindings = append(bindings, keyEval{key, value})
	}

	rule := m.env.LookupRule(ruleName)
	if rule == nil {
		if suggestion := m.state.SpellcheckRule(ruleName); suggestion != "" {
			return m.errorf("unknown build rule '%s', did you mean '%s'?", ruleName, suggestion)
		}
		return m.errorf("unknown build rule '%s'", ruleName)
	}

	env := NewBindingEnv(m.env)
	for _, b := range bindings {
		env.Bindings[b.key] = b.eval.Evaluate(m.env)
	}

	edge := m.state.AddEdge(rule)
	edge.Env = env

	if poolName := edge.GetBinding("pool"); poolName != "" {
		pool := m.state.LookupPool(poolName)
		if pool == nil {
			return m.errorf("unknown pool name '%s'", poolName)
		}
		edge.Pool = pool
	}

	for i, o := range outs {
		p := canonicalizePath(o.Evaluate(env))
		if p == "" {
			return m.errorf("empty path")
		}
		if !m.state.AddOut(edge, p) {
			if m.options.ErrOnDupeEdge {
				return m.errorf("multiple rules generate %s", p)
			}
			if !m.options.Quiet {
				glog.Warningf("multiple rules generate %s. builds involving this target will not be correct; continuing anyway", p)
			}
			if len(outs)-i <= implicitOuts {
				implicitOuts--
			}
		}
	}
	if len(edge.Outputs) == 0 {
		m.state.Edges = m.state.Edges[:len(m.state.Edges)-1]
		return nil
	}
	edge.ImplicitOuts = int32(implicitOuts)

	for _, i := range ins {
		p := canonicalizePath(i.Evaluate(env))
		if p == "" {
			return m.errorf("empty path")
		}
		m.state.AddIn(edge, p)
	}
	edge.ImplicitDeps = int32(implicitDeps)
	edge.OrderOnlyDeps = int32(orderOnly)

	// $in and $out expand to the edge's explicit inputs and outputs.
	var inPaths, outPaths []string
	for _, n := range edge.Inputs[:edge.orderOnlyStart()-implicitDeps] {
		inPaths = append(inPaths, n.Path)
	}
	for _, n := range edge.Outputs[:edge.explicitOutEnd()] {
		outPaths = append(outPaths, n.Path)
	}
	env.Bindings["in"] = strings.Join(inPaths, " ")
	env.Bindings["out"] = strings.Join(outPaths, " ")

	if edge.IsPhony() && len(edge.Outputs) > 0 {
		out := edge.Outputs[0]
		for i, n := range edge.Inputs {
			if n == out {
				edge.Inputs = append(edge.Inputs[:i], edge.Inputs[i+1:]...)
				if !m.options.Quiet {
					glog.Warningf("phony target '%s' names itself as an input; ignoring", out.Path)
				}
				break
			}
		}
	}
	return nil
}

// parseInclude parses an "include" line: the included file is parsed
// immediately, into the current scope, before the current file resumes.
func (m *ManifestParser) parseInclude(ctx context.Context) error {
	eval, err := m.readPathOrErr()
	if err != nil {
		return err
	}
	if eval == nil {
		return m.errorf("expected path")
	}
	if err := m.expectToken(NEWLINE); err != nil {
		return err
	}
	path := eval.Evaluate(m.env)
	input, err := m.fr.ReadFile(path)
	if err != nil {
		return m.errorf("loading '%s': %s", path, err.Error())
	}
	sub := &ManifestParser{state: m.state, fr: m.fr, options: m.options, env: m.env}
	return sub.Parse(ctx, path, string(input))
}

// parseSubninja parses a "subninja" line. The file is only queued; every
// subninja named by the current file is read concurrently once the file
// finishes, then applied in the order they were declared.
func (m *ManifestParser) parseSubninja() error {
	eval, err := m.readPathOrErr()
	if err != nil {
		return err
	}
	if eval == nil {
		return m.errorf("expected path")
	}
	if err := m.expectToken(NEWLINE); err != nil {
		return err
	}
	m.subninjas = append(m.subninjas, pendingSubninja{filename: eval.Evaluate(m.env)})
	return nil
}

// processSubninjaQueue reads every queued subninja's contents in
// parallel, then applies them to the shared state one at a time, in
// declaration order, each in its own child scope.
func (m *ManifestParser) processSubninjaQueue(ctx context.Context) error {
	if len(m.subninjas) == 0 {
		return nil
	}
	g, _ := errgroup.WithContext(ctx)
	for i := range m.subninjas {
		i := i
		g.Go(func() error {
			input, err := m.fr.ReadFile(m.subninjas[i].filename)
			m.subninjas[i].input = input
			m.subninjas[i].err = err
			return nil
		})
	}
	_ = g.Wait()

	var errs error
	for _, s := range m.subninjas {
		if s.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("loading '%s': %w", s.filename, s.err))
			continue
		}
		sub := &ManifestParser{state: m.state, fr: m.fr, options: m.options, env: NewBindingEnv(m.env)}
		if err := sub.Parse(ctx, s.filename, string(s.input)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// parseLet parses a single "name = value" line, as found inside rule,
// pool, and build-statement indent blocks.
func (m *ManifestParser) parseLet() (string, EvalString, error) {
	key, err := m.readIdentOrErr("expected variable name")
	if err != nil {
		return "", EvalString{}, err
	}
	if err := m.expectToken(EQUALS); err != nil {
		return "", EvalString{}, err
	}
	var eval EvalString
	var errStr string
	if !m.lexer.ReadVarValue(&eval, &errStr) {
		return "", EvalString{}, fmt.Errorf("%s", errStr)
	}
	return key, eval, nil
}

// readPathOrErr reads one $-escaped path token, returning (nil, nil) when
// the next token is a delimiter (space run already consumed) rather than
// a path, matching the teacher's "empty parsed means end of list" idiom.
func (m *ManifestParser) readPathOrErr() (*EvalString, error) {
	var eval EvalString
	var errStr string
	if !m.lexer.ReadPath(&eval, &errStr) {
		return nil, fmt.Errorf("%s", errStr)
	}
	if len(eval.Parsed) == 0 {
		return nil, nil
	}
	return &eval, nil
}

func (m *ManifestParser) readIdentOrErr(msg string) (string, error) {
	var out string
	if !m.lexer.ReadIdent(&out) {
		var errStr string
		m.lexer.Error(msg, &errStr)
		return "", fmt.Errorf("%s", errStr)
	}
	return out, nil
}

func (m *ManifestParser) expectToken(expected Token) error {
	if token := m.lexer.ReadToken(); token != expected {
		var errStr string
		m.lexer.Error(fmt.Sprintf("expected %s, got %s", TokenName(expected), TokenName(token)), &errStr)
		return fmt.Errorf("%s", errStr)
	}
	return nil
}

func (m *ManifestParser) errorf(format string, args ...interface{}) error {
	var errStr string
	m.lexer.Error(fmt.Sprintf(format, args...), &errStr)
	return fmt.Errorf("%s", errStr)
}

type keyEval struct {
	key  string
	eval EvalString
}

// canonicalizePath collapses "." segments, ".." where it can be resolved
// lexically, and duplicate slashes, the way every path embedded in a
// manifest is normalized before it is used as a map key.
func canonicalizePath(p string) string {
	if p == "" {
		return p
	}
	trailingSlash := p[len(p)-1] == '/'
	clean := path.Clean(p)
	if clean == "." {
		return ""
	}
	if trailingSlash && clean != "/" {
		clean += "/"
	}
	return clean
}
