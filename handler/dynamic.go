package handler

import (
	"github.com/dop251/goja"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/reactive"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/vars"
)

// The dynamic object adapters below surface the runtime's reactive
// objects into handler JavaScript: property access in handler code
// lands on reactive.Object traps, which is what makes dependency
// tracking and change notification work for script-side reads and
// writes.

// reactiveDynamic adapts a reactive.Object to goja's DynamicObject
// protocol.
type reactiveDynamic struct {
	vm  *goja.Runtime
	obj *reactive.Object
}

func (d *reactiveDynamic) Get(key string) goja.Value {
	value := d.obj.Get(key)
	if nested, ok := value.(*reactive.Object); ok {
		return d.vm.NewDynamicObject(&reactiveDynamic{vm: d.vm, obj: nested})
	}
	return d.vm.ToValue(value)
}

func (d *reactiveDynamic) Set(key string, val goja.Value) bool {
	d.obj.Set(key, val.Export())
	return true
}

func (d *reactiveDynamic) Has(key string) bool { return d.obj.Has(key) }

func (d *reactiveDynamic) Delete(key string) bool {
	d.obj.Delete(key)
	return true
}

func (d *reactiveDynamic) Keys() []string { return d.obj.Keys() }

// varsDynamic is the Vars view. Reads route through the registry's
// GetGlobalVar rather than the reactive mirror directly, so store
// entries that predate the mirror (seeded defaults, persistent-store
// restores) backfill on first access exactly as GetVar does.
type varsDynamic struct {
	vm  *goja.Runtime
	ctx *runtime.Context
}

func (d *varsDynamic) Get(key string) goja.Value {
	value := d.ctx.GetGlobalVar(key)
	if nested, ok := value.(*reactive.Object); ok {
		return d.vm.NewDynamicObject(&reactiveDynamic{vm: d.vm, obj: nested})
	}
	return d.vm.ToValue(value)
}

func (d *varsDynamic) Set(key string, val goja.Value) bool {
	d.ctx.SetGlobalVar(key, val.Export())
	return true
}

func (d *varsDynamic) Has(key string) bool {
	if d.ctx.VarsProxy().Has(key) {
		return true
	}
	_, ok := d.ctx.Store().Get(vars.GlobalScope, key)
	return ok
}

func (d *varsDynamic) Delete(key string) bool {
	d.ctx.VarsProxy().Delete(key)
	return true
}

func (d *varsDynamic) Keys() []string {
	keys := d.ctx.VarsProxy().Keys()
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, k := range d.ctx.Store().Names(vars.GlobalScope) {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// componentDynamic exposes a component to handler code: declarative
// fields read-only, plus the live Instance values, the style watcher
// view, and parent/children traversal.
type componentDynamic struct {
	vm   *goja.Runtime
	exec *Executor
	comp *canvasflow.Component
}

func (d *componentDynamic) wrap(comp *canvasflow.Component) goja.Value {
	if comp == nil {
		return goja.Null()
	}
	return d.vm.NewDynamicObject(&componentDynamic{vm: d.vm, exec: d.exec, comp: comp})
}

func (d *componentDynamic) Get(key string) goja.Value {
	switch key {
	case "uuid":
		return d.vm.ToValue(d.comp.UUID)
	case "uniqueUUID":
		return d.vm.ToValue(d.comp.UniqueUUID)
	case "name":
		return d.vm.ToValue(d.comp.Name)
	case "application_id":
		return d.vm.ToValue(d.comp.ApplicationID)
	case "page_id":
		return d.vm.ToValue(d.comp.PageID)
	case "component_type":
		return d.vm.ToValue(d.comp.ComponentType)
	case "childrenIds":
		return d.vm.ToValue(d.comp.ChildrenIDs)
	case "input":
		return d.vm.ToValue(d.comp.Input)
	case "event":
		return d.vm.ToValue(d.comp.Event)
	case "parent":
		return d.wrap(d.comp.Parent)
	case "children":
		children := make([]goja.Value, len(d.comp.Children))
		for i, child := range d.comp.Children {
			children[i] = d.wrap(child)
		}
		return d.vm.ToValue(children)
	case "Instance":
		instance := d.exec.ctx.AttachValues(d.comp)
		return d.vm.NewDynamicObject(&reactiveDynamic{vm: d.vm, obj: instance})
	case "style":
		watcher := d.exec.ctx.WatchStyleChanges(d.comp, nil)
		return d.vm.NewDynamicObject(&styleDynamic{vm: d.vm, watcher: watcher})
	default:
		return goja.Undefined()
	}
}

func (d *componentDynamic) Set(key string, val goja.Value) bool {
	// Declarative fields are mutated through the component ops API, not
	// by assignment.
	return false
}

func (d *componentDynamic) Has(key string) bool {
	return !goja.IsUndefined(d.Get(key))
}

func (d *componentDynamic) Delete(key string) bool { return false }

func (d *componentDynamic) Keys() []string {
	return []string{
		"uuid", "uniqueUUID", "name", "application_id", "page_id",
		"component_type", "childrenIds", "input", "event", "parent",
		"children", "Instance", "style",
	}
}

// styleDynamic routes style reads and writes through a StyleWatcher, so
// a handler's Current.style.color = 'red' becomes a runtime style
// override instead of a mutation of the authoritative definition.
type styleDynamic struct {
	vm      *goja.Runtime
	watcher styleView
}

// styleView is the part of runtime.StyleWatcher styleDynamic needs.
type styleView interface {
	Get(prop string) interface{}
	Set(prop string, value interface{})
	Keys() []string
}

func (d *styleDynamic) Get(key string) goja.Value { return d.vm.ToValue(d.watcher.Get(key)) }

func (d *styleDynamic) Set(key string, val goja.Value) bool {
	d.watcher.Set(key, val.Export())
	return true
}

func (d *styleDynamic) Has(key string) bool { return d.watcher.Get(key) != nil }

func (d *styleDynamic) Delete(key string) bool { return false }

func (d *styleDynamic) Keys() []string { return d.watcher.Keys() }

// runtimeDynamic is the Runtime context object: live, read-only
// information about the execution environment.
type runtimeDynamic struct {
	vm   *goja.Runtime
	exec *Executor
}

func (d *runtimeDynamic) Get(key string) goja.Value {
	ctx := d.exec.ctx
	switch key {
	case "platform":
		return d.vm.ToValue(ctx.Platform())
	case "applications":
		return d.vm.ToValue(ctx.Applications())
	case "currentApp":
		if comp := ctx.Current(); comp != nil {
			return d.vm.ToValue(comp.ApplicationID)
		}
		return goja.Undefined()
	case "currentPage":
		return d.vm.ToValue(ctx.GetGlobalVar("currentPage"))
	case "executionDepth":
		return d.vm.ToValue(ctx.CurrentDepth())
	default:
		return goja.Undefined()
	}
}

func (d *runtimeDynamic) Set(key string, val goja.Value) bool { return false }

func (d *runtimeDynamic) Has(key string) bool { return !goja.IsUndefined(d.Get(key)) }

func (d *runtimeDynamic) Delete(key string) bool { return false }

func (d *runtimeDynamic) Keys() []string {
	return []string{"platform", "applications", "currentApp", "currentPage", "executionDepth"}
}

// appsDynamic exposes the Apps lookup table: Apps[appId][componentName]
// resolves to a live component object.
type appsDynamic struct {
	vm   *goja.Runtime
	exec *Executor
}

func (d *appsDynamic) Get(key string) goja.Value {
	if _, ok := d.exec.ctx.Application(key); !ok {
		return goja.Undefined()
	}
	return d.vm.NewDynamicObject(&appComponentsDynamic{vm: d.vm, exec: d.exec, appID: key})
}

func (d *appsDynamic) Set(key string, val goja.Value) bool { return false }

func (d *appsDynamic) Has(key string) bool {
	_, ok := d.exec.ctx.Application(key)
	return ok
}

func (d *appsDynamic) Delete(key string) bool { return false }

func (d *appsDynamic) Keys() []string { return d.exec.ctx.Applications() }

// appComponentsDynamic resolves component names within one application.
type appComponentsDynamic struct {
	vm    *goja.Runtime
	exec  *Executor
	appID string
}

func (d *appComponentsDynamic) Get(key string) goja.Value {
	comp, ok := d.exec.ctx.ComponentByName(d.appID, key)
	if !ok {
		return goja.Undefined()
	}
	return d.vm.NewDynamicObject(&componentDynamic{vm: d.vm, exec: d.exec, comp: comp})
}

func (d *appComponentsDynamic) Set(key string, val goja.Value) bool { return false }

func (d *appComponentsDynamic) Has(key string) bool {
	_, ok := d.exec.ctx.ComponentByName(d.appID, key)
	return ok
}

func (d *appComponentsDynamic) Delete(key string) bool { return false }

func (d *appComponentsDynamic) Keys() []string {
	app, ok := d.exec.ctx.Application(d.appID)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(app.Components))
	for _, comp := range app.Components {
		names = append(names, comp.Name)
	}
	return names
}
