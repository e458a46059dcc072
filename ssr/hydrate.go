package ssr

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/vars"
)

// Payload is the hydration document embedded in a server-rendered page:
// the resolved variable and component-value state after SSR execution
// plus the deferred side-effect log.
type Payload struct {
	Variables       map[string]interface{}            `json:"variables"`
	ComponentValues map[string]map[string]interface{} `json:"component_values"`
	Effects         []Effect                          `json:"effects"`
}

// BuildPayload captures the registry state and the executor's recorded
// effects into a serializable payload.
func (e *Executor) BuildPayload() Payload {
	store := e.ctx.Store()
	variables := make(map[string]interface{})
	for _, name := range store.Names(vars.GlobalScope) {
		variables[name] = store.Value(vars.GlobalScope, name)
	}

	values := make(map[string]map[string]interface{})
	for _, appID := range e.ctx.Applications() {
		app, ok := e.ctx.Application(appID)
		if !ok {
			continue
		}
		for _, comp := range app.Components {
			key := comp.ValuesKey()
			bag := e.ctx.ComponentValues(key)
			if len(bag) > 0 {
				values[key] = bag
			}
		}
	}

	return Payload{Variables: variables, ComponentValues: values, Effects: e.Effects()}
}

// Marshal serializes the payload for embedding.
func (p Payload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding hydration payload: %w", err)
	}
	return data, nil
}

// toastEffects is the replay safelist. Navigation is deliberately
// absent: the user may have navigated away before hydration runs.
var toastEffects = map[string]canvasflow.ToastSeverity{
	"ShowToast":        canvasflow.ToastInfo,
	"ShowInfoToast":    canvasflow.ToastInfo,
	"ShowSuccessToast": canvasflow.ToastSuccess,
	"ShowWarningToast": canvasflow.ToastWarning,
	"ShowErrorToast":   canvasflow.ToastError,
}

// HydrateFromSSR replays a hydration payload into the live registry:
// variables restore directly into the Vars view, component values into
// the runtime values store, and only safelisted effects (toasts) are
// re-emitted.
func HydrateFromSSR(ctx *runtime.Context, data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid hydration payload")
	}
	doc := gjson.ParseBytes(data)

	doc.Get("variables").ForEach(func(key, value gjson.Result) bool {
		ctx.VarsProxy().Set(key.String(), value.Value())
		return true
	})

	doc.Get("component_values").ForEach(func(key, bag gjson.Result) bool {
		valuesKey := key.String()
		bag.ForEach(func(prop, value gjson.Result) bool {
			ctx.SetComponentValue(valuesKey, prop.String(), value.Value())
			return true
		})
		return true
	})

	doc.Get("effects").ForEach(func(_, effect gjson.Result) bool {
		effectType := effect.Get("type").String()
		severity, ok := toastEffects[effectType]
		if !ok {
			return true
		}
		toast := canvasflow.Toast{Severity: severity, HideAfterMS: 5000}
		args := effect.Get("args").Array()
		if len(args) > 0 {
			toast.Message = args[0].String()
		}
		if effectType == "ShowToast" && len(args) > 1 {
			toast.Severity = canvasflow.ToastSeverity(args[1].String())
		}
		ctx.Bus().Emit(canvasflow.EventToastShown, toast, "")
		return true
	})

	return nil
}
