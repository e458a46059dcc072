package ssr

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/handler"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/vars"
)

// ErrClientOnly is returned when a handler classified client-only is
// submitted for server execution.
var ErrClientOnly = errors.New("handler is client-only")

// Effect is one recorded, deferred side effect.
type Effect struct {
	Type string        `json:"type"`
	Args []interface{} `json:"args"`
}

// Executor runs ssr-safe and ssr-partial handlers on the server.
// Variable mutations are applied to the registry (they are part of the
// resolved state the hydration payload carries); navigation, UI, and
// component mutations are recorded as effects instead of performed.
type Executor struct {
	ctx      *runtime.Context
	vm       *goja.Runtime
	compiler *handler.Compiler
	effects  []Effect
}

// NewExecutor creates a server-side executor over the registry.
func NewExecutor(ctx *runtime.Context, compiler *handler.Compiler) (*Executor, error) {
	if compiler == nil {
		compiler = handler.NewCompiler()
	}
	e := &Executor{ctx: ctx, vm: goja.New(), compiler: compiler}
	if err := e.installBindings(); err != nil {
		return nil, err
	}
	return e, nil
}

// record appends a deferred effect.
func (e *Executor) record(effectType string, call goja.FunctionCall) {
	args := make([]interface{}, len(call.Arguments))
	for i, a := range call.Arguments {
		args[i] = a.Export()
	}
	e.effects = append(e.effects, Effect{Type: effectType, Args: args})
}

func (e *Executor) installBindings() error {
	vm := e.vm

	bindings := map[string]interface{}{
		"GetVar": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(e.ctx.GetGlobalVar(call.Argument(0).String()))
		},
		"SetVar": func(call goja.FunctionCall) goja.Value {
			e.record("SetVar", call)
			e.ctx.SetGlobalVar(call.Argument(0).String(), call.Argument(1).Export())
			return goja.Undefined()
		},
		"GetContextVar": func(call goja.FunctionCall) goja.Value {
			scope := ""
			if len(call.Arguments) > 1 && !goja.IsUndefined(call.Argument(1)) && !goja.IsNull(call.Argument(1)) {
				scope = call.Argument(1).String()
			}
			return vm.ToValue(e.ctx.GetContextVar(call.Argument(0).String(), scope, e.ctx.Current()))
		},
		"SetContextVar": func(call goja.FunctionCall) goja.Value {
			e.record("SetContextVar", call)
			scope := ""
			if len(call.Arguments) > 2 && !goja.IsUndefined(call.Argument(2)) && !goja.IsNull(call.Argument(2)) {
				scope = call.Argument(2).String()
			}
			e.ctx.SetContextVar(call.Argument(0).String(), call.Argument(1).Export(), scope, e.ctx.Current())
			return goja.Undefined()
		},
	}
	// Deferred-only APIs: recorded, never performed on the server.
	for _, name := range []string{
		"NavigateToUrl", "NavigateToHash", "NavigateToPage",
		"ShowToast", "ShowInfoToast", "ShowSuccessToast", "ShowWarningToast", "ShowErrorToast",
		"AddComponent", "DeleteComponentAction",
		"updateName", "updateInput", "updateEvent", "updateStyle",
	} {
		name := name
		bindings[name] = func(call goja.FunctionCall) goja.Value {
			e.record(name, call)
			return goja.Undefined()
		}
	}
	// InvokeFunction never executes here; classification refuses
	// client-only handlers before this binding could run. It exists so
	// a misclassified call degrades to a recorded no-op.
	bindings["InvokeFunction"] = func(call goja.FunctionCall) goja.Value {
		e.record("InvokeFunction", call)
		return goja.Null()
	}

	for name, fn := range bindings {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
	}

	// console output on the server goes nowhere visible to the app
	// author; swallow it rather than leak to the process stdout.
	console := vm.NewObject()
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, noop); err != nil {
			return fmt.Errorf("binding console.%s: %w", name, err)
		}
	}
	return vm.Set("console", console)
}

// Execute classifies and, when permitted, runs one handler on behalf of
// comp. Client-only handlers return ErrClientOnly without executing.
func (e *Executor) Execute(comp *canvasflow.Component, code string) (interface{}, Report, error) {
	report := ClassifyHandler(code)
	if report.Classification == ClassClientOnly {
		return nil, report, ErrClientOnly
	}

	e.ctx.PushCurrent(comp)
	defer e.ctx.PopCurrent()

	vm := e.vm
	// Server bindings are snapshots: the restricted subset is read-only
	// apart from the recording API functions.
	vm.Set("Vars", e.globalSnapshot())
	vm.Set("Current", e.componentSnapshot(comp))
	vm.Set("currentPlatform", e.ctx.Platform())
	vm.Set("Event", nil)
	vm.Set("Item", map[string]interface{}{})

	compiled, err := e.compiler.Compile(code)
	if err != nil {
		return nil, report, err
	}
	value, err := vm.RunProgram(compiled.Program)
	if err != nil {
		return nil, report, err
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, report, nil
	}
	return value.Export(), report, nil
}

// Effects returns the side effects recorded so far.
func (e *Executor) Effects() []Effect {
	out := make([]Effect, len(e.effects))
	copy(out, e.effects)
	return out
}

func (e *Executor) globalSnapshot() map[string]interface{} {
	store := e.ctx.Store()
	out := make(map[string]interface{})
	for _, name := range store.Names(vars.GlobalScope) {
		out[name] = store.Value(vars.GlobalScope, name)
	}
	return out
}

func (e *Executor) componentSnapshot(comp *canvasflow.Component) map[string]interface{} {
	if comp == nil {
		return nil
	}
	return map[string]interface{}{
		"uuid":           comp.UUID,
		"name":           comp.Name,
		"application_id": comp.ApplicationID,
		"component_type": comp.ComponentType,
		"Instance":       e.ctx.ComponentValues(comp.ValuesKey()),
	}
}
