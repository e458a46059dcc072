package handler

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/vars"
)

// installAPI binds the fixed catalog of runtime API functions into the
// VM. These names are the entire surface visible to handler code beyond
// the context objects; no ambient host globals are exposed.
func (e *Executor) installAPI(vm *goja.Runtime) error {
	bindings := map[string]interface{}{
		// Variable ops
		"SetVar": func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			e.variables.SetVar(name, call.Argument(1).Export())
			return goja.Undefined()
		},
		"GetVar": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(e.variables.GetVar(call.Argument(0).String()))
		},
		"SetContextVar": func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			value := call.Argument(1).Export()
			scope := ""
			if len(call.Arguments) > 2 && !goja.IsUndefined(call.Argument(2)) && !goja.IsNull(call.Argument(2)) {
				scope = call.Argument(2).String()
			}
			e.ctx.SetContextVar(name, value, scope, e.ctx.Current())
			return goja.Undefined()
		},
		"GetContextVar": func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			scope := ""
			if len(call.Arguments) > 1 && !goja.IsUndefined(call.Argument(1)) && !goja.IsNull(call.Argument(1)) {
				scope = call.Argument(1).String()
			}
			return vm.ToValue(e.ctx.GetContextVar(name, scope, e.ctx.Current()))
		},

		// Component ops
		"GetComponent": func(call goja.FunctionCall) goja.Value {
			comp, ok := e.ctx.Component(call.Argument(0).String())
			if !ok {
				return goja.Undefined()
			}
			return vm.NewDynamicObject(&componentDynamic{vm: vm, exec: e, comp: comp})
		},
		"GetComponents": func(call goja.FunctionCall) goja.Value {
			var uuids []string
			if err := vm.ExportTo(call.Argument(0), &uuids); err != nil {
				return vm.ToValue([]goja.Value{})
			}
			out := make([]goja.Value, 0, len(uuids))
			for _, id := range uuids {
				if comp, ok := e.ctx.Component(id); ok {
					out = append(out, vm.NewDynamicObject(&componentDynamic{vm: vm, exec: e, comp: comp}))
				}
			}
			return vm.ToValue(out)
		},
		"AddComponent": func(call goja.FunctionCall) goja.Value {
			def, _ := call.Argument(0).Export().(map[string]interface{})
			comp, err := e.addComponent(def)
			if err != nil {
				e.console.Error(e.ctx.CurrentName(), "AddComponent:", err.Error())
				return goja.Undefined()
			}
			return vm.NewDynamicObject(&componentDynamic{vm: vm, exec: e, comp: comp})
		},
		"DeleteComponentAction": func(call goja.FunctionCall) goja.Value {
			if err := e.ctx.DeleteComponent(call.Argument(0).String()); err != nil {
				e.console.Error(e.ctx.CurrentName(), "DeleteComponentAction:", err.Error())
			}
			return goja.Undefined()
		},
		"updateName": func(call goja.FunctionCall) goja.Value {
			if err := e.ctx.UpdateComponentName(call.Argument(0).String(), call.Argument(1).String()); err != nil {
				e.console.Error(e.ctx.CurrentName(), "updateName:", err.Error())
			}
			return goja.Undefined()
		},
		"updateInput": func(call goja.FunctionCall) goja.Value {
			input := canvasflow.Input{Type: canvasflow.InputStatic, Value: call.Argument(2).Export()}
			if len(call.Arguments) > 3 && call.Argument(3).ToBoolean() {
				input.Type = canvasflow.InputHandler
			}
			if err := e.ctx.UpdateComponentInput(call.Argument(0).String(), call.Argument(1).String(), input); err != nil {
				e.console.Error(e.ctx.CurrentName(), "updateInput:", err.Error())
			}
			return goja.Undefined()
		},
		"updateEvent": func(call goja.FunctionCall) goja.Value {
			if err := e.ctx.UpdateComponentEvent(call.Argument(0).String(), call.Argument(1).String(), call.Argument(2).String()); err != nil {
				e.console.Error(e.ctx.CurrentName(), "updateEvent:", err.Error())
			}
			return goja.Undefined()
		},
		"updateStyle": func(call goja.FunctionCall) goja.Value {
			// When the style editor has a pseudo-state selected, the
			// write nests under that key instead of touching the
			// default state.
			pseudo, _ := e.ctx.Store().Value(vars.GlobalScope, "selectedPseudoState").(string)
			if err := e.ctx.UpdateComponentStyle(call.Argument(0).String(), call.Argument(1).String(), call.Argument(2).Export(), pseudo); err != nil {
				e.console.Error(e.ctx.CurrentName(), "updateStyle:", err.Error())
			}
			return goja.Undefined()
		},

		// Navigation
		"NavigateToUrl": func(call goja.FunctionCall) goja.Value {
			e.ctx.Bus().Emit(canvasflow.EventNavigateURL,
				map[string]interface{}{"url": call.Argument(0).String()}, e.ctx.CurrentName())
			return goja.Undefined()
		},
		"NavigateToHash": func(call goja.FunctionCall) goja.Value {
			e.ctx.Bus().Emit(canvasflow.EventNavigateHash,
				map[string]interface{}{"hash": call.Argument(0).String(), "smooth": true}, e.ctx.CurrentName())
			return goja.Undefined()
		},
		"NavigateToPage": func(call goja.FunctionCall) goja.Value {
			e.navigateToPage(call.Argument(0).String())
			return goja.Undefined()
		},

		// Function invocation
		"InvokeFunction": func(call goja.FunctionCall) goja.Value {
			result := e.invokeFunction(call.Argument(0).String(), call.Argument(1).Export())
			return vm.ToValue(result)
		},

		// UI feedback
		"ShowToast": func(call goja.FunctionCall) goja.Value {
			severity := canvasflow.ToastInfo
			if len(call.Arguments) > 1 && !goja.IsUndefined(call.Argument(1)) {
				severity = canvasflow.ToastSeverity(call.Argument(1).String())
			}
			e.showToast(call, severity, 2)
			return goja.Undefined()
		},
		"ShowInfoToast": func(call goja.FunctionCall) goja.Value {
			e.showToast(call, canvasflow.ToastInfo, 1)
			return goja.Undefined()
		},
		"ShowSuccessToast": func(call goja.FunctionCall) goja.Value {
			e.showToast(call, canvasflow.ToastSuccess, 1)
			return goja.Undefined()
		},
		"ShowWarningToast": func(call goja.FunctionCall) goja.Value {
			e.showToast(call, canvasflow.ToastWarning, 1)
			return goja.Undefined()
		},
		"ShowErrorToast": func(call goja.FunctionCall) goja.Value {
			e.showToast(call, canvasflow.ToastError, 1)
			return goja.Undefined()
		},
	}

	for name, fn := range bindings {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
	}

	// Editor.Console mirrors the console shim under the name legacy
	// handler code uses.
	editor := vm.NewObject()
	if err := e.installConsoleObject(vm, editor); err != nil {
		return err
	}
	return vm.Set("Editor", editor)
}

// installConsoleObject sets a Console property on parent with the same
// redirection as the console shim.
func (e *Executor) installConsoleObject(vm *goja.Runtime, parent *goja.Object) error {
	console := vm.NewObject()
	for name, fn := range map[string]func(string, ...interface{}){
		"log":   e.console.Log,
		"info":  e.console.Info,
		"warn":  e.console.Warn,
		"error": e.console.Error,
		"debug": e.console.Debug,
	} {
		fn := fn
		err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = a.Export()
			}
			fn(e.ctx.CurrentName(), args...)
			return goja.Undefined()
		})
		if err != nil {
			return fmt.Errorf("installing Editor.Console.%s: %w", name, err)
		}
	}
	return parent.Set("Console", console)
}

// showToast emits a toast event; hideIdx is the argument position of
// the optional auto-hide duration (0 keeps the toast persistent).
func (e *Executor) showToast(call goja.FunctionCall, severity canvasflow.ToastSeverity, hideIdx int) {
	toast := canvasflow.Toast{
		Severity:    severity,
		Message:     call.Argument(0).String(),
		HideAfterMS: 5000,
	}
	if len(call.Arguments) > hideIdx && !goja.IsUndefined(call.Argument(hideIdx)) {
		toast.HideAfterMS = int(call.Argument(hideIdx).ToInteger())
	}
	e.ctx.Bus().Emit(canvasflow.EventToastShown, toast, e.ctx.CurrentName())
}

// navigateToPage resolves a page display name within the current
// application, records it as the currentPage variable, and emits the
// navigation event. Browser history is the renderer's concern.
func (e *Executor) navigateToPage(name string) {
	appID := ""
	if comp := e.ctx.Current(); comp != nil {
		appID = comp.ApplicationID
	}
	page, err := e.ctx.ResolvePage(appID, name)
	if err != nil {
		e.console.Error(e.ctx.CurrentName(), "NavigateToPage:", err.Error())
		return
	}
	e.ctx.SetGlobalVar("currentPage", page.Name)
	e.ctx.Bus().Emit(canvasflow.EventNavigatePage,
		map[string]interface{}{"page": page.Name, "page_id": page.ID, "path": page.Path}, e.ctx.CurrentName())
}

// addComponent builds a component from an AddComponent definition,
// auto-generating its uuid and name.
func (e *Executor) addComponent(def map[string]interface{}) (*canvasflow.Component, error) {
	if def == nil {
		return nil, fmt.Errorf("missing definition")
	}
	appID, _ := def["application_id"].(string)
	if appID == "" {
		if comp := e.ctx.Current(); comp != nil {
			appID = comp.ApplicationID
		}
	}
	componentType, _ := def["componentType"].(string)
	if componentType == "" {
		return nil, fmt.Errorf("missing componentType")
	}
	pageID, _ := def["pageId"].(string)

	id := uuid.NewString()
	comp := &canvasflow.Component{
		UUID:          id,
		Name:          fmt.Sprintf("%s_%s", componentType, id[:8]),
		ApplicationID: appID,
		PageID:        pageID,
		ComponentType: componentType,
		Input:         map[string]canvasflow.Input{},
		Style:         map[string]interface{}{},
		Event:         map[string]string{},
	}
	if additional, ok := def["additionalData"].(map[string]interface{}); ok {
		for key, value := range additional {
			comp.Input[key] = canvasflow.Input{Type: canvasflow.InputStatic, Value: value}
		}
	}
	if err := e.ctx.AddComponent(comp); err != nil {
		return nil, err
	}
	return comp, nil
}
