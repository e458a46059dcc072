package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/runtime"
)

// VariableAccess is the variable surface bound into handler code as
// SetVar and GetVar. The default implementation closes over the shared
// registry's global scope; micro-app executors substitute one that
// closes over the instance's scope manager instead.
type VariableAccess interface {
	SetVar(name string, value interface{})
	GetVar(name string) interface{}
}

// globalAccess resolves SetVar/GetVar against the shared registry's
// global scope, with dependency tracking through the Vars view.
type globalAccess struct {
	ctx *runtime.Context
}

func (g globalAccess) SetVar(name string, value interface{}) { g.ctx.SetGlobalVar(name, value) }
func (g globalAccess) GetVar(name string) interface{}        { return g.ctx.GetGlobalVar(name) }

// Options configures an Executor.
type Options struct {
	// Console receives redirected console.* output. Defaults to an
	// EditorConsole writing to stderr.
	Console canvasflow.Console
	// Compiler supplies the compile cache. Sharing one across executors
	// shares the cache. Defaults to a fresh compiler.
	Compiler *Compiler
	// Variables overrides the SetVar/GetVar binding; nil selects the
	// shared registry's global scope.
	Variables VariableAccess
	// FunctionsURL is the endpoint the backend function catalog is
	// fetched from on first InvokeFunction use.
	FunctionsURL string
	// HTTPClient serves InvokeFunction calls. Defaults to a client with
	// a 15s timeout.
	HTTPClient *http.Client
	// ServerMode marks a non-browser environment: Execute binds context
	// but skips running handler code. The ssr package provides the
	// restricted server-side execution path.
	ServerMode bool
}

// invocationGlobals are the VM bindings rewritten per Execute call.
// Vars, Apps and Runtime are stable and excluded.
var invocationGlobals = []string{"Current", "Event", "EventData", "Item", "Values", "Style"}

// Executor runs handler snippets against the shared runtime registry.
// It owns one script VM; per the runtime's cooperative single-threaded
// model, executions are synchronous and nested executions reuse the
// same VM.
type Executor struct {
	ctx       *runtime.Context
	vm        *goja.Runtime
	compiler  *Compiler
	console   canvasflow.Console
	variables VariableAccess
	client    *http.Client

	functionsURL string
	serverMode   bool

	// guard holds (component uuid, input name) keys for in-flight input
	// resolutions so a handler whose side effects re-trigger its own
	// resolution cannot recurse.
	guardMu sync.Mutex
	guard   map[string]struct{}

	// catalog caches the backend function catalog after first load.
	catalogMu sync.Mutex
	catalog   map[string]backendFunction
}

// NewExecutor creates an Executor bound to ctx and installs the runtime
// API surface, the reactive views, and the console shim into its VM.
func NewExecutor(ctx *runtime.Context, opts Options) (*Executor, error) {
	e := &Executor{
		ctx:          ctx,
		vm:           goja.New(),
		compiler:     opts.Compiler,
		console:      opts.Console,
		variables:    opts.Variables,
		client:       opts.HTTPClient,
		functionsURL: opts.FunctionsURL,
		serverMode:   opts.ServerMode,
		guard:        make(map[string]struct{}),
	}
	if e.compiler == nil {
		e.compiler = NewCompiler()
	}
	if e.console == nil {
		e.console = NewEditorConsole(os.Stderr)
	}
	if e.variables == nil {
		e.variables = globalAccess{ctx: ctx}
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: 15 * time.Second}
	}

	if err := e.installConsole(e.vm); err != nil {
		return nil, err
	}
	if err := e.installAPI(e.vm); err != nil {
		return nil, err
	}
	// Stable context bindings: the Vars view and the Apps lookup do not
	// change between invocations.
	if err := e.vm.Set("Vars", e.vm.NewDynamicObject(&varsDynamic{vm: e.vm, ctx: ctx})); err != nil {
		return nil, err
	}
	if err := e.vm.Set("Apps", e.vm.NewDynamicObject(&appsDynamic{vm: e.vm, exec: e})); err != nil {
		return nil, err
	}
	if err := e.vm.Set("Runtime", e.vm.NewDynamicObject(&runtimeDynamic{vm: e.vm, exec: e})); err != nil {
		return nil, err
	}
	return e, nil
}

// Console returns the editor console the executor writes to.
func (e *Executor) Console() canvasflow.Console { return e.console }

// Context returns the runtime registry the executor is bound to.
func (e *Executor) Context() *runtime.Context { return e.ctx }

// Execute runs one handler snippet on behalf of comp and returns its
// value verbatim; async handler results are promises the caller must
// resolve. Exceptions thrown by handler code propagate as errors.
func (e *Executor) Execute(comp *canvasflow.Component, code string, eventData map[string]interface{}, item map[string]interface{}) (interface{}, error) {
	if comp == nil {
		return nil, errors.New("executing handler: nil component")
	}

	e.ctx.PushCurrent(comp)
	defer e.ctx.PopCurrent()

	// Handler code that walks children must never hit an unresolved
	// nil; the registry normally resolves these, but a component can be
	// executed before its first registration pass.
	if comp.Children == nil && len(comp.ChildrenIDs) > 0 {
		comp.Children = []*canvasflow.Component{}
	}

	// Attach the Instance view to the component and every ancestor so
	// Current.parent.Instance and deeper work regardless of attachment
	// order.
	for cursor := comp; cursor != nil; cursor = cursor.Parent {
		e.ctx.AttachValues(cursor)
	}

	// Style writes made during execution land in the runtime style
	// override store keyed by the component's uuid.
	watcher := e.ctx.WatchStyleChanges(comp, nil)

	if e.serverMode {
		return nil, nil
	}

	var event interface{}
	if eventData != nil {
		event = eventData["event"]
	}
	vm := e.vm

	// Nested synchronous executions share the VM, so the caller's
	// bindings are saved here and restored on return. Without this a
	// handler whose side effects trigger another handler would resume
	// with the inner component's Current and Values.
	saved := make(map[string]goja.Value, len(invocationGlobals))
	for _, name := range invocationGlobals {
		saved[name] = vm.Get(name)
	}
	defer func() {
		for _, name := range invocationGlobals {
			if prev := saved[name]; prev != nil {
				vm.Set(name, prev)
			} else {
				vm.Set(name, goja.Undefined())
			}
		}
	}()

	vm.Set("Current", vm.NewDynamicObject(&componentDynamic{vm: vm, exec: e, comp: comp}))
	vm.Set("Event", event)
	vm.Set("EventData", eventData)
	// The handler receives its own copy of item; mutations must not
	// reach the caller's reference.
	vm.Set("Item", deepClone(item))
	vm.Set("Values", vm.NewDynamicObject(&reactiveDynamic{vm: vm, obj: e.ctx.AttachValues(comp)}))
	vm.Set("Style", vm.NewDynamicObject(&styleDynamic{vm: vm, watcher: watcher}))
	vm.Set("currentPlatform", e.ctx.Platform())

	compiled, err := e.compiler.Compile(code)
	if err != nil {
		return nil, err
	}

	value, err := vm.RunProgram(compiled.Program)
	if err != nil {
		return nil, err
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// ExecuteEvent runs the named event handler of comp, if declared.
func (e *Executor) ExecuteEvent(comp *canvasflow.Component, event string, eventData map[string]interface{}) (interface{}, error) {
	code, ok := comp.Event[event]
	if !ok || code == "" {
		return nil, nil
	}
	return e.Execute(comp, code, eventData, nil)
}

// ResolveInput computes the value of one declarative input. Static
// inputs return their value directly; handler inputs execute. The
// second result is false when resolution was skipped (re-entrant call)
// or failed.
//
// Failures follow the fail-soft-log-loud policy: the error is stored in
// the registry's per-component error map and rendered to the editor
// console with the offending line highlighted; no fallback value is
// computed.
func (e *Executor) ResolveInput(comp *canvasflow.Component, inputName string) (interface{}, bool) {
	input, ok := comp.Input[inputName]
	if !ok {
		return nil, false
	}
	if input.Type != canvasflow.InputHandler {
		return input.Value, true
	}
	code, _ := input.Value.(string)

	key := comp.UUID + "\x00" + inputName
	e.guardMu.Lock()
	if _, executing := e.guard[key]; executing {
		e.guardMu.Unlock()
		return nil, false
	}
	e.guard[key] = struct{}{}
	e.guardMu.Unlock()
	defer func() {
		e.guardMu.Lock()
		delete(e.guard, key)
		e.guardMu.Unlock()
	}()

	value, err := e.Execute(comp, code, nil, nil)
	if err != nil {
		e.ctx.SetInputError(comp.UUID, inputName, err.Error())
		e.console.Error(comp.Name, formatHandlerError(code, err))
		return nil, false
	}
	e.ctx.ClearInputError(comp.UUID, inputName)
	e.ctx.PropsProxy().Set(comp.Name+"."+inputName, value)
	return value, true
}

// GuardSize reports the number of in-flight resolution guards.
// Diagnostic use.
func (e *Executor) GuardSize() int {
	e.guardMu.Lock()
	defer e.guardMu.Unlock()
	return len(e.guard)
}

// deepClone copies item through a JSON round trip. Values that do not
// survive JSON encoding fall back to a shallow copy.
func deepClone(item map[string]interface{}) map[string]interface{} {
	if item == nil {
		return map[string]interface{}{}
	}
	data, err := json.Marshal(item)
	if err == nil {
		var out map[string]interface{}
		if json.Unmarshal(data, &out) == nil && out != nil {
			return out
		}
	}
	out := make(map[string]interface{}, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
