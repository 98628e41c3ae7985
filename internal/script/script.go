// Package script hosts forge's embedded scripting runtime, standing in for
// the out-of-scope "host language" build scripts are authored in. It
// interprets small Go snippets through yaegi's restricted stdlib sandbox
// and adapts them into graph.InvokeFunc closures for script-callback rules.
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"forge/internal/diag"
	"forge/internal/logging"
)

// Callback is the signature a script-callback rule's interpreted function
// must satisfy: given a context, it performs its work and returns any
// diagnostic text it produced (parsed with the same grammar as compiler
// stderr) alongside an error.
type Callback func(ctx context.Context) (string, error)

// allowedImports is the set of stdlib packages a build script may import.
// Anything touching the filesystem, network, or process execution directly
// is deliberately excluded: those effects belong to the compile/link/strip
// rules the driver already constructs, not to ad hoc script code.
var allowedImports = map[string]bool{
	"strings":       true,
	"strconv":       true,
	"fmt":           true,
	"math":          true,
	"regexp":        true,
	"encoding/json": true,
	"time":          true,
	"sort":          true,
	"bytes":         true,
	"path":          true,
	"path/filepath": true,
	"context":       true,
	"errors":        true,
}

// Host interprets script-callback rule bodies.
type Host struct{}

// NewHost returns a ready-to-use script Host.
func NewHost() *Host {
	return &Host{}
}

// Compile interprets code, which must define `func Run(ctx context.Context)
// (string, error)` in package main (or bare, auto-wrapped into one), and
// returns it as a Callback. Imports outside allowedImports are rejected
// before the interpreter ever sees the code.
func (h *Host) Compile(code string) (Callback, error) {
	if err := validateImports(code); err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: load stdlib: %w", err)
	}

	if _, err := i.Eval(wrap(code)); err != nil {
		return nil, fmt.Errorf("script: eval: %w", err)
	}

	v, err := i.Eval("main.Run")
	if err != nil {
		return nil, fmt.Errorf("script: Run not found: %w", err)
	}
	fn, ok := v.Interface().(func(context.Context) (string, error))
	if !ok {
		return nil, fmt.Errorf("script: Run has wrong signature, want func(context.Context) (string, error)")
	}
	return Callback(fn), nil
}

// InvokeFunc adapts cb into a graph.InvokeFunc: it awaits the callback
// (cancellable via ctx), parses any output it produced as diagnostics, and
// surfaces the callback's own error untouched.
func (h *Host) InvokeFunc(cb Callback) func(ctx context.Context) (diag.Diagnostics, error) {
	return func(ctx context.Context) (diag.Diagnostics, error) {
		type result struct {
			out string
			err error
		}
		done := make(chan result, 1)
		go func() {
			out, err := cb(ctx)
			done <- result{out: out, err: err}
		}()

		select {
		case r := <-done:
			logging.Get(logging.CategoryScript).Debug("script callback produced %d bytes of output", len(r.out))
			return diag.Parse(r.out), r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func validateImports(code string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			pkg := strings.Trim(trimmed, `"`)
			if pkg != "" && !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
			if !allowedImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

func wrap(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}
