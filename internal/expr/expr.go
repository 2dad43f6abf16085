// Package expr evaluates deferred expressions held in dataset cells. An
// expression is a Starlark expression over the other columns of its row;
// referenced columns are resolved first, recursively, so cells may depend on
// cells that are deferred themselves.
package expr

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	// maxExecutionSteps bounds the work a single evaluation may do
	maxExecutionSteps = 1 << 20
	// maxCacheEntries bounds the compiled expression cache
	maxCacheEntries = 4096

	exprFilename = "<expr>"
)

var fileOptions = &syntax.FileOptions{Set: true, While: true, Recursion: false}

// predeclared holds the modules every expression can use
var predeclared = starlark.StringDict{
	"time": startime.Module,
	"math": math.Module,
}

// IsBuiltin reports whether name resolves without a row binding
func IsBuiltin(name string) bool {
	return predeclared.Has(name) || starlark.Universe.Has(name)
}

// Expr is a parsed expression
type Expr struct {
	src  string
	deps []string
}

// Source returns the expression text
func (e *Expr) Source() string {
	return e.src
}

// Dependencies returns the free names of the expression in order of first
// use. Attribute names, keyword argument names, lambda parameters and
// comprehension variables are not dependencies.
func (e *Expr) Dependencies() []string {
	return slices.Clone(e.deps)
}

// Eval evaluates the expression with vars bound as globals
func (e *Expr) Eval(vars map[string]any) (any, error) {
	env := make(starlark.StringDict, len(predeclared)+len(vars))
	for k, v := range predeclared {
		env[k] = v
	}
	for k, v := range vars {
		sv, err := ToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", k, err)
		}
		env[k] = sv
	}

	thread := &starlark.Thread{
		Name:  "kwdata",
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetMaxExecutionSteps(maxExecutionSteps)

	result, err := starlark.EvalOptions(fileOptions, thread, exprFilename, e.src, env)
	if err != nil {
		return nil, err
	}
	return FromStarlark(result), nil
}

type exprCache struct {
	mu      sync.RWMutex
	entries map[uint64]*Expr
}

var cache = &exprCache{entries: map[uint64]*Expr{}}

func (c *exprCache) get(key uint64, src string) (*Expr, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.src != src {
		return nil, false
	}
	return e, true
}

func (c *exprCache) put(key uint64, e *Expr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxCacheEntries {
		c.entries = make(map[uint64]*Expr, maxCacheEntries)
	}
	c.entries[key] = e
}

// Compile parses src. Parsed expressions are cached by source text.
func Compile(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	key := xxhash.Sum64String(src)
	if e, ok := cache.get(key, src); ok {
		return e, nil
	}

	ast, err := fileOptions.ParseExpr(exprFilename, src, 0)
	if err != nil {
		return nil, err
	}

	e := &Expr{src: src, deps: freeNames(ast)}
	cache.put(key, e)
	return e, nil
}

func freeNames(root syntax.Expr) []string {
	w := &nameWalker{seen: map[string]bool{}, bound: map[string]int{}}
	w.walk(root)
	return w.names
}

// nameWalker collects free identifiers. Lambda parameters and comprehension
// variables are bound only while their own body is walked.
type nameWalker struct {
	names []string
	seen  map[string]bool
	bound map[string]int
}

func (w *nameWalker) walk(n syntax.Node) {
	syntax.Walk(n, w.visit)
}

func (w *nameWalker) bind(names []string) {
	for _, name := range names {
		w.bound[name]++
	}
}

func (w *nameWalker) unbind(names []string) {
	for _, name := range names {
		if w.bound[name]--; w.bound[name] == 0 {
			delete(w.bound, name)
		}
	}
}

func (w *nameWalker) visit(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Ident:
		if w.bound[n.Name] == 0 && !w.seen[n.Name] {
			w.seen[n.Name] = true
			w.names = append(w.names, n.Name)
		}
	case *syntax.DotExpr:
		w.walk(n.X)
		return false
	case *syntax.CallExpr:
		w.walk(n.Fn)
		for _, arg := range n.Args {
			if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				w.walk(kw.Y)
				continue
			}
			w.walk(arg)
		}
		return false
	case *syntax.LambdaExpr:
		var params []string
		for _, param := range n.Params {
			switch p := param.(type) {
			case *syntax.BinaryExpr:
				// defaults are evaluated outside the lambda
				w.walk(p.Y)
				params = targets(p.X, params)
			case *syntax.UnaryExpr:
				if p.X != nil {
					params = targets(p.X, params)
				}
			default:
				params = targets(p, params)
			}
		}
		w.bind(params)
		w.walk(n.Body)
		w.unbind(params)
		return false
	case *syntax.Comprehension:
		// The first iterable is evaluated in the enclosing scope, every
		// later clause and the body see the variables bound before them.
		var vars []string
		for _, clause := range n.Clauses {
			switch c := clause.(type) {
			case *syntax.ForClause:
				w.walk(c.X)
				bound := targets(c.Vars, nil)
				w.bind(bound)
				vars = append(vars, bound...)
			case *syntax.IfClause:
				w.walk(c.Cond)
			}
		}
		w.walk(n.Body)
		w.unbind(vars)
		return false
	}
	return true
}

func targets(target syntax.Expr, names []string) []string {
	switch t := target.(type) {
	case *syntax.Ident:
		names = append(names, t.Name)
	case *syntax.ParenExpr:
		names = targets(t.X, names)
	case *syntax.TupleExpr:
		for _, x := range t.List {
			names = targets(x, names)
		}
	case *syntax.ListExpr:
		for _, x := range t.List {
			names = targets(x, names)
		}
	}
	return names
}
