// Package handler implements compilation and execution of user-authored
// handler snippets. Snippets are JavaScript fragments written against a
// flat catalog of runtime API names; they are compiled once per distinct
// source string and executed against the shared runtime registry with
// the reactive views bound in.
package handler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Compiled is one cached compilation result. Identical source text maps
// to the identical *Compiled for the lifetime of the process.
type Compiled struct {
	// Source is the raw handler text the program was compiled from.
	Source string
	// Program is the compiled wrapper. The snippet is wrapped as a
	// function body, so a bare return inside it returns from the whole
	// invocation.
	Program *goja.Program
	// Async is true when the snippet required an async wrapper (it
	// contains await); the invocation result is then a Promise.
	Async bool
}

// Compiler caches compiled handler programs keyed by exact source text.
// The cache is unbounded: handler sources are authored by hand in the
// editor and their distinct count stays small in practice.
type Compiler struct {
	mu    sync.Mutex
	cache map[string]*Compiled
}

// NewCompiler creates an empty compiler.
func NewCompiler() *Compiler {
	return &Compiler{cache: make(map[string]*Compiled)}
}

// syncWrapper makes the snippet the body of an immediately invoked
// function so a bare return works and declarations stay local.
func syncWrapper(code string) string {
	return "(function() {\n" + code + "\n})()"
}

// asyncWrapper is the fallback for snippets containing await.
func asyncWrapper(code string) string {
	return "(async function() {\n" + code + "\n})()"
}

// Compile returns the cached program for code, compiling on first use.
// A snippet that fails to compile synchronously is retried as an async
// function body before the error is surfaced, so top-level await in
// handler code works.
func (c *Compiler) Compile(code string) (*Compiled, error) {
	c.mu.Lock()
	if compiled, ok := c.cache[code]; ok {
		c.mu.Unlock()
		return compiled, nil
	}
	c.mu.Unlock()

	compiled, err := c.compile(code)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// First writer wins so callers always observe one identity per
	// source string.
	if existing, ok := c.cache[code]; ok {
		return existing, nil
	}
	c.cache[code] = compiled
	return compiled, nil
}

func (c *Compiler) compile(code string) (*Compiled, error) {
	program, syncErr := goja.Compile("handler", syncWrapper(code), false)
	if syncErr == nil {
		return &Compiled{Source: code, Program: program, Async: false}, nil
	}

	// await outside an async function is a syntax error; retry with the
	// async wrapper before reporting.
	if strings.Contains(code, "await") {
		program, asyncErr := goja.Compile("handler", asyncWrapper(code), false)
		if asyncErr == nil {
			return &Compiled{Source: code, Program: program, Async: true}, nil
		}
	}
	return nil, fmt.Errorf("compiling handler: %w", syncErr)
}

// Size reports the number of cached programs. Diagnostic use.
func (c *Compiler) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
