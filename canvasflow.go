// Package canvasflow defines the shared types and interfaces of the
// canvasflow client runtime: the declarative component model produced by
// the visual editor, the event bus contract used for all cross-component
// notification, and the console channel handler output is routed to.
package canvasflow

import "strings"

// InputType discriminates how a component input value is produced.
type InputType string

const (
	// InputStatic means the input value is used verbatim.
	InputStatic InputType = "static"
	// InputHandler means the input value is a handler source string that
	// must be executed to produce the actual value.
	InputHandler InputType = "handler"
)

// Input is a single declarative input of a component.
type Input struct {
	Type  InputType   `json:"type" yaml:"type"`
	Value interface{} `json:"value" yaml:"value"`
}

// Component is the declarative unit produced by the editor.
//
// ChildrenIDs is the authoritative description of the tree shape;
// Parent and Children are derived caches rebuilt by the runtime registry
// whenever the tree changes and must never be treated as authoritative.
type Component struct {
	UUID          string `json:"uuid" yaml:"uuid"`
	// UniqueUUID keys the runtime values store. It differs from UUID only
	// for micro-app-namespaced instances and must be unique process-wide.
	UniqueUUID    string                 `json:"unique_uuid,omitempty" yaml:"unique_uuid,omitempty"`
	Name          string                 `json:"name" yaml:"name"`
	ApplicationID string                 `json:"application_id" yaml:"application_id"`
	PageID        string                 `json:"page_id,omitempty" yaml:"page_id,omitempty"`
	ComponentType string                 `json:"component_type" yaml:"component_type"`
	Input         map[string]Input       `json:"input,omitempty" yaml:"input,omitempty"`
	Style         map[string]interface{} `json:"style,omitempty" yaml:"style,omitempty"`
	Event         map[string]string      `json:"event,omitempty" yaml:"event,omitempty"`
	ChildrenIDs   []string               `json:"children_ids,omitempty" yaml:"children_ids,omitempty"`

	// OriginalName preserves the pre-namespacing name of a micro-app
	// component so lookups can be reversed.
	OriginalName string `json:"original_name,omitempty" yaml:"original_name,omitempty"`

	Parent   *Component   `json:"-" yaml:"-"`
	Children []*Component `json:"-" yaml:"-"`
}

// ValuesKey returns the key under which this component's runtime values
// are stored: UniqueUUID when present, UUID otherwise.
func (c *Component) ValuesKey() string {
	if c.UniqueUUID != "" {
		return c.UniqueUUID
	}
	return c.UUID
}

// Page groups components of an application under a routable name.
type Page struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Application is one editor-authored application: its pages, flat
// component list, and declared application-scoped variables.
type Application struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Pages      []Page       `json:"pages,omitempty" yaml:"pages,omitempty"`
	Components []*Component `json:"components" yaml:"components"`

	// Variables are initial values for the application's variable scope,
	// seeded on registration without overwriting runtime writes.
	Variables map[string]interface{} `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Platform describes the responsive platform the runtime is currently
// rendering for.
type Platform struct {
	Kind  string `json:"kind" yaml:"kind"` // desktop, tablet, mobile
	Width int    `json:"width" yaml:"width"`
}

// Event is a single notification delivered through the bus.
type Event struct {
	Name    string
	Payload interface{}
	// Source names the component on whose behalf the emitting code was
	// executing, when known.
	Source string
}

// Handler consumes bus events.
type Handler func(evt Event)

// EventBus is the process-wide publish/subscribe dispatcher. Delivery is
// synchronous and same-tick: Emit returns only after every registered
// listener has run.
type EventBus interface {
	On(name string, h Handler) (cancel func())
	OnAny(h Handler) (cancel func())
	Emit(name string, payload interface{}, source string)
}

// Console is the editor console channel. All console.* output from
// handler code is redirected here instead of the real console so the
// embedded code editor can surface it inline.
type Console interface {
	Log(component string, args ...interface{})
	Info(component string, args ...interface{})
	Warn(component string, args ...interface{})
	Error(component string, args ...interface{})
	Debug(component string, args ...interface{})
}

// ToastSeverity is the typed severity of a UI notification.
type ToastSeverity string

const (
	ToastInfo    ToastSeverity = "info"
	ToastSuccess ToastSeverity = "success"
	ToastWarning ToastSeverity = "warning"
	ToastError   ToastSeverity = "error"
)

// Toast is a fire-and-forget UI notification. HideAfterMS of 0 means the
// toast is persistent.
type Toast struct {
	Severity    ToastSeverity `json:"severity"`
	Message     string        `json:"message"`
	HideAfterMS int           `json:"hide_after_ms"`
}

// Well-known event name prefixes. Event names are untyped strings by
// contract; these helpers keep the emitting and listening sides agreed.
const (
	EventComponentPropertyChanged = "component-property-changed"
	EventComponentValueSet        = "component:value:set"
	EventGlobalVariableChanged    = "global:variable:changed"
	EventApplicationsRegistered   = "applications:registered"
	EventToastShown               = "toast:shown"
	EventNavigateURL              = "navigate:url"
	EventNavigateHash             = "navigate:hash"
	EventNavigatePage             = "navigate:page"
)

// ComponentPropertyChangedEvent returns the targeted refresh event name
// for the named consumer component.
func ComponentPropertyChangedEvent(consumer string) string {
	return EventComponentPropertyChanged + ":" + consumer
}

// ComponentValueSetEvent returns the component-scoped value-set event
// name for the given values key.
func ComponentValueSetEvent(valuesKey string) string {
	return EventComponentValueSet + ":" + valuesKey
}

// ScopedEvent builds a "{prefix}:{scope}:{prop}" event name.
func ScopedEvent(prefix, scope, prop string) string {
	return strings.Join([]string{prefix, scope, prop}, ":")
}
