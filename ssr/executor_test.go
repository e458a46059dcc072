package ssr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/bus"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/vars"
)

func serverFixture(t *testing.T) (*runtime.Context, *canvasflow.Component) {
	t.Helper()
	ctx := runtime.New(bus.New(), vars.NewStore())
	ctx.SetApplications([]*canvasflow.Application{{
		ID: "app-1",
		Pages: []canvasflow.Page{
			{ID: "p1", Name: "Home", Path: "/"},
		},
		Components: []*canvasflow.Component{{
			UUID:          "hero-uuid",
			Name:          "Hero1",
			ApplicationID: "app-1",
			ComponentType: "hero",
			Input: map[string]canvasflow.Input{
				"headline": {Type: canvasflow.InputStatic, Value: "Welcome"},
			},
		}},
	}})
	comp, ok := ctx.ComponentByName("app-1", "Hero1")
	require.True(t, ok)
	return ctx, comp
}

func TestServerExecuteSafeHandler(t *testing.T) {
	ctx, comp := serverFixture(t)
	ctx.SetGlobalVar("title", "Orders")

	exec, err := NewExecutor(ctx, nil)
	require.NoError(t, err)

	v, report, err := exec.Execute(comp, "return Vars.title + '!'")
	require.NoError(t, err)
	assert.Equal(t, ClassSSRSafe, report.Classification)
	assert.Equal(t, "Orders!", v)
	assert.Empty(t, exec.Effects())
}

func TestServerExecuteAppliesVariableMutations(t *testing.T) {
	ctx, comp := serverFixture(t)
	exec, err := NewExecutor(ctx, nil)
	require.NoError(t, err)

	_, report, err := exec.Execute(comp, "SetVar('visited', true)")
	require.NoError(t, err)
	assert.Equal(t, ClassSSRPartial, report.Classification)

	// The mutation is both applied and recorded.
	assert.Equal(t, true, ctx.Store().Value(vars.GlobalScope, "visited"))
	effects := exec.Effects()
	require.Len(t, effects, 1)
	assert.Equal(t, "SetVar", effects[0].Type)
	assert.Equal(t, "visited", effects[0].Args[0])
}

func TestServerExecuteDefersNavigationAndToasts(t *testing.T) {
	ctx, comp := serverFixture(t)

	navigated := false
	ctx.Bus().On(canvasflow.EventNavigatePage, func(canvasflow.Event) { navigated = true })
	ctx.Bus().On(canvasflow.EventToastShown, func(canvasflow.Event) { navigated = true })

	exec, err := NewExecutor(ctx, nil)
	require.NoError(t, err)

	_, _, err = exec.Execute(comp, "NavigateToPage('Home'); ShowSuccessToast('done')")
	require.NoError(t, err)

	// Nothing happened on the server side, only the record remains.
	assert.False(t, navigated)
	effects := exec.Effects()
	require.Len(t, effects, 2)
	assert.Equal(t, "NavigateToPage", effects[0].Type)
	assert.Equal(t, "ShowSuccessToast", effects[1].Type)
}

func TestServerExecuteRefusesClientOnly(t *testing.T) {
	ctx, comp := serverFixture(t)
	exec, err := NewExecutor(ctx, nil)
	require.NoError(t, err)

	_, report, err := exec.Execute(comp, "return InvokeFunction('LoadOrders', {})")
	assert.ErrorIs(t, err, ErrClientOnly)
	assert.Equal(t, ClassClientOnly, report.Classification)
	assert.Empty(t, exec.Effects())
	assert.Equal(t, 0, ctx.CurrentDepth())
}

func TestServerExecuteReadsComponentState(t *testing.T) {
	ctx, comp := serverFixture(t)
	exec, err := NewExecutor(ctx, nil)
	require.NoError(t, err)

	v, _, err := exec.Execute(comp, "return Current.name + ':' + Current.Instance.headline")
	require.NoError(t, err)
	assert.Equal(t, "Hero1:Welcome", v)
}

func TestBuildPayloadCarriesStateAndEffects(t *testing.T) {
	ctx, comp := serverFixture(t)
	exec, err := NewExecutor(ctx, nil)
	require.NoError(t, err)

	_, _, err = exec.Execute(comp, "SetVar('visited', true); ShowToast('hello')")
	require.NoError(t, err)

	payload := exec.BuildPayload()
	assert.Equal(t, true, payload.Variables["visited"])
	assert.Equal(t, "Welcome", payload.ComponentValues["hero-uuid"]["headline"])
	require.Len(t, payload.Effects, 2)

	data, err := payload.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"visited":true`)
}

func TestHydrateRestoresStateAndReplaysToastsOnly(t *testing.T) {
	// Server side: run a handler and capture the payload.
	serverCtx, comp := serverFixture(t)
	exec, err := NewExecutor(serverCtx, nil)
	require.NoError(t, err)
	_, _, err = exec.Execute(comp,
		"SetVar('visited', true); NavigateToPage('Home'); ShowErrorToast('oops')")
	require.NoError(t, err)
	data, err := exec.BuildPayload().Marshal()
	require.NoError(t, err)

	// Client side: a fresh registry hydrates from the document.
	clientBus := bus.New()
	clientCtx := runtime.New(clientBus, vars.NewStore())

	var toasts []canvasflow.Toast
	clientBus.On(canvasflow.EventToastShown, func(evt canvasflow.Event) {
		toasts = append(toasts, evt.Payload.(canvasflow.Toast))
	})
	navigations := 0
	clientBus.On(canvasflow.EventNavigatePage, func(canvasflow.Event) { navigations++ })

	require.NoError(t, HydrateFromSSR(clientCtx, data))

	assert.Equal(t, true, clientCtx.GetGlobalVar("visited"))
	v, ok := clientCtx.ComponentValue("hero-uuid", "headline")
	require.True(t, ok)
	assert.Equal(t, "Welcome", v)

	// Toasts replay; navigation never does.
	require.Len(t, toasts, 1)
	assert.Equal(t, canvasflow.ToastError, toasts[0].Severity)
	assert.Equal(t, "oops", toasts[0].Message)
	assert.Equal(t, 0, navigations)
}

func TestHydrateRejectsMalformedPayload(t *testing.T) {
	ctx := runtime.New(bus.New(), vars.NewStore())
	assert.Error(t, HydrateFromSSR(ctx, []byte("{not json")))
}
