package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/bus"
	"github.com/canvasflow/canvasflow-go/vars"
)

func testApp() *canvasflow.Application {
	return &canvasflow.Application{
		ID:   "app-1",
		Name: "Demo",
		Pages: []canvasflow.Page{
			{ID: "p1", Name: "Home", Path: "/"},
			{ID: "p2", Name: "Settings", Path: "/settings"},
		},
		Components: []*canvasflow.Component{
			{
				UUID:          "root-uuid",
				Name:          "Page1",
				ApplicationID: "app-1",
				ComponentType: "page",
				ChildrenIDs:   []string{"label-uuid", "button-uuid"},
			},
			{
				UUID:          "label-uuid",
				Name:          "Label1",
				ApplicationID: "app-1",
				ComponentType: "label",
				Input: map[string]canvasflow.Input{
					"text": {Type: canvasflow.InputStatic, Value: "hello"},
				},
			},
			{
				UUID:          "button-uuid",
				Name:          "Button1",
				ApplicationID: "app-1",
				ComponentType: "button",
				Event: map[string]string{
					"click": "SetVar('clicked', true)",
				},
			},
		},
	}
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	return New(bus.New(), vars.NewStore())
}

func TestRegisterApplicationsBuildsIndices(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})

	comp, ok := ctx.ComponentByName("app-1", "Label1")
	require.True(t, ok)
	assert.Equal(t, "label-uuid", comp.UUID)

	byUUID, ok := ctx.Component("button-uuid")
	require.True(t, ok)
	assert.Equal(t, "Button1", byUUID.Name)

	assert.Equal(t, []string{"app-1"}, ctx.Applications())
	assert.Len(t, ctx.Pages("app-1"), 2)
}

func TestRegisterApplicationsResolvesChildren(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})

	root, _ := ctx.ComponentByName("app-1", "Page1")
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Label1", root.Children[0].Name)
	assert.Equal(t, "Button1", root.Children[1].Name)
	assert.Same(t, root, root.Children[0].Parent)

	// Re-registering must not duplicate derived children.
	ctx.RegisterApplications()
	root, _ = ctx.ComponentByName("app-1", "Page1")
	assert.Len(t, root.Children, 2)
}

func TestRegisterApplicationsSkipsDanglingChildIDs(t *testing.T) {
	app := testApp()
	app.Components[0].ChildrenIDs = append(app.Components[0].ChildrenIDs, "no-such-uuid")

	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{app})

	root, _ := ctx.ComponentByName("app-1", "Page1")
	assert.Len(t, root.Children, 2)
}

func TestStaticInputsSeedRuntimeValues(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})

	v, ok := ctx.ComponentValue("label-uuid", "text")
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	// A runtime write wins over the seed on re-registration.
	ctx.SetComponentValue("label-uuid", "text", "changed")
	ctx.RegisterApplications()
	v, _ = ctx.ComponentValue("label-uuid", "text")
	assert.Equal(t, "changed", v)
}

func TestDeclaredVariablesSeedApplicationScope(t *testing.T) {
	app := testApp()
	app.Variables = map[string]interface{}{"pageSize": 25}

	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{app})
	assert.Equal(t, 25, ctx.Store().Value("app-1", "pageSize"))

	// Runtime writes survive re-registration.
	ctx.Store().Set("app-1", "pageSize", 100)
	ctx.RegisterApplications()
	assert.Equal(t, 100, ctx.Store().Value("app-1", "pageSize"))
}

func TestAttachValuesReturnsOneObjectPerComponent(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})
	comp, _ := ctx.ComponentByName("app-1", "Label1")

	first := ctx.AttachValues(comp)
	second := ctx.AttachValues(comp)
	assert.Same(t, first, second)

	// The object is a live view over the runtime values bag.
	first.Set("text", "via instance")
	v, _ := ctx.ComponentValue("label-uuid", "text")
	assert.Equal(t, "via instance", v)
}

func TestInstanceWritesEmitValueSetEvent(t *testing.T) {
	b := bus.New()
	ctx := New(b, vars.NewStore())
	ctx.SetApplications([]*canvasflow.Application{testApp()})
	comp, _ := ctx.ComponentByName("app-1", "Label1")

	var got []canvasflow.Event
	b.On(canvasflow.ComponentValueSetEvent("label-uuid"), func(evt canvasflow.Event) {
		got = append(got, evt)
	})

	ctx.AttachValues(comp).Set("count", 1)

	require.Len(t, got, 1)
}

func TestCurrentStack(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})
	label, _ := ctx.ComponentByName("app-1", "Label1")
	button, _ := ctx.ComponentByName("app-1", "Button1")

	assert.Nil(t, ctx.Current())
	assert.Equal(t, "", ctx.CurrentName())

	ctx.PushCurrent(label)
	ctx.PushCurrent(button)
	assert.Equal(t, "Button1", ctx.CurrentName())
	assert.Equal(t, 2, ctx.CurrentDepth())

	ctx.PopCurrent()
	assert.Equal(t, "Label1", ctx.CurrentName())
	ctx.PopCurrent()
	assert.Nil(t, ctx.Current())
	ctx.PopCurrent() // pop of empty stack is harmless
}

func TestGlobalVarWriteReachesStoreAndEmits(t *testing.T) {
	b := bus.New()
	store := vars.NewStore()
	ctx := New(b, store)

	changed := 0
	b.On(canvasflow.EventGlobalVariableChanged, func(canvasflow.Event) { changed++ })

	ctx.SetGlobalVar("theme", "dark")

	assert.Equal(t, "dark", store.Value(vars.GlobalScope, "theme"))
	assert.Equal(t, "dark", ctx.GetGlobalVar("theme"))
	assert.Equal(t, 1, changed)
}

func TestGetGlobalVarBackfillsPersistedState(t *testing.T) {
	b := bus.New()
	store := vars.NewStore()
	// Simulate state restored before the registry existed.
	store.Set(vars.GlobalScope, "sessionId", "abc-123")
	ctx := New(b, store)

	emitted := 0
	b.OnAny(func(canvasflow.Event) { emitted++ })

	// The backfill read must be silent.
	assert.Equal(t, "abc-123", ctx.GetGlobalVar("sessionId"))
	assert.Equal(t, 0, emitted)
}

func TestContextVarsScopeByApplication(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})
	comp, _ := ctx.ComponentByName("app-1", "Label1")

	ctx.SetContextVar("step", 2, "", comp)
	assert.Equal(t, 2, ctx.GetContextVar("step", "", comp))
	assert.Equal(t, 2, ctx.Store().Value("app-1", "step"))

	// Explicit scope override wins over the component's application.
	ctx.SetContextVar("step", 9, "other-app", comp)
	assert.Equal(t, 9, ctx.GetContextVar("step", "other-app", comp))
	assert.Equal(t, 2, ctx.GetContextVar("step", "", comp))
}

func TestResolvePage(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})

	page, err := ctx.ResolvePage("app-1", "Settings")
	require.NoError(t, err)
	assert.Equal(t, "/settings", page.Path)

	_, err = ctx.ResolvePage("app-1", "Nope")
	assert.Error(t, err)
}

func TestUnloadApplicationFreesRuntimeState(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})
	comp, _ := ctx.ComponentByName("app-1", "Label1")
	ctx.AttachValues(comp).Set("text", "dirty")
	ctx.SetInputError("label-uuid", "text", "boom")
	ctx.SetStyleOverride("label-uuid", "color", "red")

	ctx.UnloadApplication("app-1")

	assert.Empty(t, ctx.Applications())
	_, ok := ctx.ComponentValue("label-uuid", "text")
	assert.False(t, ok)
	_, ok = ctx.InputError("label-uuid", "text")
	assert.False(t, ok)
	assert.Empty(t, ctx.StyleOverrides("label-uuid"))
}

func TestAddAndDeleteComponent(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})

	err := ctx.AddComponent(&canvasflow.Component{
		UUID:          "new-uuid",
		Name:          "Text1",
		ApplicationID: "app-1",
		ComponentType: "text",
	})
	require.NoError(t, err)

	// Tree change re-registers synchronously through the bus.
	_, ok := ctx.ComponentByName("app-1", "Text1")
	assert.True(t, ok)

	assert.Error(t, ctx.AddComponent(&canvasflow.Component{
		UUID:          "new-uuid",
		ApplicationID: "app-1",
	}), "duplicate uuid must be rejected")

	require.NoError(t, ctx.DeleteComponent("new-uuid"))
	_, ok = ctx.ComponentByName("app-1", "Text1")
	assert.False(t, ok)
}

func TestDeleteComponentDropsChildReferences(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})

	require.NoError(t, ctx.DeleteComponent("label-uuid"))

	root, _ := ctx.ComponentByName("app-1", "Page1")
	assert.Equal(t, []string{"button-uuid"}, root.ChildrenIDs)
	assert.Len(t, root.Children, 1)
}

func TestUpdateComponentStylePseudoStateMerges(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetApplications([]*canvasflow.Application{testApp()})

	require.NoError(t, ctx.UpdateComponentStyle("label-uuid", "color", "red", ""))
	require.NoError(t, ctx.UpdateComponentStyle("label-uuid", "color", "blue", ":hover"))
	require.NoError(t, ctx.UpdateComponentStyle("label-uuid", "opacity", 0.5, ":hover"))

	comp, _ := ctx.Component("label-uuid")
	assert.Equal(t, "red", comp.Style["color"])
	hover := comp.Style[":hover"].(map[string]interface{})
	assert.Equal(t, "blue", hover["color"])
	assert.Equal(t, 0.5, hover["opacity"])
}

func TestInputErrorLifecycle(t *testing.T) {
	ctx := newTestContext(t)

	ctx.SetInputError("u1", "text", "ReferenceError: x is not defined")
	msg, ok := ctx.InputError("u1", "text")
	require.True(t, ok)
	assert.Contains(t, msg, "ReferenceError")

	ctx.ClearInputError("u1", "text")
	_, ok = ctx.InputError("u1", "text")
	assert.False(t, ok)
}
