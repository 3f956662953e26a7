// Package template implements the mini template language used by node
// configuration fields. Text between {{ and }} is an expression evaluated
// against the current execution context; everything else passes through
// verbatim. A json helper serializes a referenced value as pretty JSON for
// embedding in text fields.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Renderer renders config templates against an execution context.
//
// Thread-safety: Render may be called from multiple goroutines; the compiled
// program cache is protected internally. Configuration (SetStrictMode) must
// happen before concurrent use.
type Renderer struct {
	strictMode bool

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewRenderer creates a renderer. The default is lenient mode: expressions
// whose variables are missing from the context render as the empty string,
// matching how user-authored templates behave in the graph editor.
func NewRenderer() *Renderer {
	return &Renderer{
		cache: make(map[string]*vm.Program),
	}
}

// SetStrictMode configures whether missing variables fail the render.
func (r *Renderer) SetStrictMode(strict bool) {
	r.strictMode = strict
}

// Render substitutes every {{expression}} segment in tmpl with its value
// resolved against context. Dotted paths ({{telegram.chat.id}}), literals,
// and helper calls ({{json(payload)}}) are all expressions.
func (r *Renderer) Render(tmpl string, context map[string]interface{}) (string, error) {
	if context == nil {
		return "", ErrNilContext
	}

	var result strings.Builder
	rest := tmpl

	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			result.WriteString(rest)
			break
		}

		result.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.Index(rest, "}}")
		if end == -1 {
			return "", fmt.Errorf("%w: unclosed {{ in template", ErrInvalidTemplate)
		}

		code := strings.TrimSpace(rest[:end])
		rest = rest[end+2:]

		if code == "" {
			return "", fmt.Errorf("%w: empty expression", ErrInvalidTemplate)
		}

		value, err := r.evaluate(code, context)
		if err != nil {
			return "", err
		}

		result.WriteString(stringify(value))
	}

	return result.String(), nil
}

// evaluate compiles (or reuses) and runs one expression against the context.
func (r *Renderer) evaluate(code string, context map[string]interface{}) (interface{}, error) {
	program, err := r.getOrCompile(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	env := buildEnv(context)
	value, err := vm.Run(program, env)
	if err != nil {
		if r.strictMode {
			return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, code)
		}
		// Lenient mode: unresolvable expressions render as empty.
		return "", nil
	}

	if value == nil && r.strictMode {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedVariable, code)
	}

	return value, nil
}

func (r *Renderer) getOrCompile(code string) (*vm.Program, error) {
	r.mu.RLock()
	program, ok := r.cache[code]
	r.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(code,
		expr.AllowUndefinedVariables(),
		expr.Function("json", jsonHelper),
	)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[code] = program
	r.mu.Unlock()

	return program, nil
}

// jsonHelper serializes its argument as indented JSON so a prior node's
// structured output can be embedded in a request body or message text.
func jsonHelper(params ...interface{}) (interface{}, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("json requires 1 argument")
	}

	data, err := json.MarshalIndent(params[0], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json helper: %w", err)
	}
	return string(data), nil
}

// buildEnv shallow-copies the context so expression evaluation can never
// mutate the caller's map.
func buildEnv(context map[string]interface{}) map[string]interface{} {
	env := make(map[string]interface{}, len(context))
	for k, v := range context {
		env[k] = v
	}
	return env
}

// stringify converts an evaluated value to its template output form.
// Maps and slices serialize as compact JSON; nil renders empty.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
