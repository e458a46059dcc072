package handler

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
)

// EditorConsole is the editor console channel: everything handler code
// prints lands here, routed through a leveled zerolog logger tagged with
// the component the output originated from. The embedded code editor
// tails the same writer to surface output inline.
type EditorConsole struct {
	logger zerolog.Logger

	mu      sync.Mutex
	entries []ConsoleEntry
}

// ConsoleEntry is one captured console line, retained so the editor can
// replay output recorded before it attached.
type ConsoleEntry struct {
	Level     string
	Component string
	Message   string
}

// NewEditorConsole creates a console writing to w.
func NewEditorConsole(w io.Writer) *EditorConsole {
	return &EditorConsole{
		logger: zerolog.New(w).With().Timestamp().Str("channel", "editor-console").Logger(),
	}
}

func (ec *EditorConsole) emit(level string, component string, args []interface{}) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	msg := strings.Join(parts, " ")

	ec.mu.Lock()
	ec.entries = append(ec.entries, ConsoleEntry{Level: level, Component: component, Message: msg})
	ec.mu.Unlock()

	var evt *zerolog.Event
	switch level {
	case "debug":
		evt = ec.logger.Debug()
	case "info":
		evt = ec.logger.Info()
	case "warn":
		evt = ec.logger.Warn()
	case "error":
		evt = ec.logger.Error()
	default:
		evt = ec.logger.Info()
	}
	evt.Str("component", component).Msg(msg)
}

// Log records console.log output.
func (ec *EditorConsole) Log(component string, args ...interface{}) { ec.emit("log", component, args) }

// Info records console.info output.
func (ec *EditorConsole) Info(component string, args ...interface{}) {
	ec.emit("info", component, args)
}

// Warn records console.warn output.
func (ec *EditorConsole) Warn(component string, args ...interface{}) {
	ec.emit("warn", component, args)
}

// Error records console.error output.
func (ec *EditorConsole) Error(component string, args ...interface{}) {
	ec.emit("error", component, args)
}

// Debug records console.debug output.
func (ec *EditorConsole) Debug(component string, args ...interface{}) {
	ec.emit("debug", component, args)
}

// Entries returns a copy of everything captured so far.
func (ec *EditorConsole) Entries() []ConsoleEntry {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make([]ConsoleEntry, len(ec.entries))
	copy(out, ec.entries)
	return out
}

// installConsole replaces the console global in vm with a shim that
// redirects to the editor console instead of the host's real console.
func (e *Executor) installConsole(vm *goja.Runtime) error {
	console := vm.NewObject()
	bind := func(name string, fn func(component string, args ...interface{})) error {
		return console.Set(name, func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = a.Export()
			}
			fn(e.ctx.CurrentName(), args...)
			return goja.Undefined()
		})
	}
	for name, fn := range map[string]func(string, ...interface{}){
		"log":   e.console.Log,
		"info":  e.console.Info,
		"warn":  e.console.Warn,
		"error": e.console.Error,
		"debug": e.console.Debug,
	} {
		if err := bind(name, fn); err != nil {
			return fmt.Errorf("installing console.%s: %w", name, err)
		}
	}
	return vm.Set("console", console)
}
