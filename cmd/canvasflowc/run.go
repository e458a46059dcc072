package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/canvasflow/canvasflow-go/bus"
	"github.com/canvasflow/canvasflow-go/handler"
	"github.com/canvasflow/canvasflow-go/loader"
	"github.com/canvasflow/canvasflow-go/runtime"
	"github.com/canvasflow/canvasflow-go/vars"
)

func defineRunCommand() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	bundleDir := fs.String("bundles", ".", "Directory of application bundles")
	componentName := fs.String("component", "", "Component name to execute for")
	appID := fs.String("app", "", "Application id (defaults to the only loaded application)")
	event := fs.String("event", "onClick", "Event handler to execute")
	code := fs.String("code", "", "Inline handler source (overrides -event)")

	commands["run"] = &Command{
		Name:        "run",
		Description: "Execute one handler against a bundle and print its result",
		FlagSet:     fs,
		Run: func() error {
			apps, err := loader.LoadDir(*bundleDir)
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				return fmt.Errorf("no bundles found in %s", *bundleDir)
			}
			if *appID == "" {
				if len(apps) > 1 {
					return fmt.Errorf("multiple applications loaded; specify -app")
				}
				*appID = apps[0].ID
			}

			eventBus := bus.New()
			ctx := runtime.New(eventBus, vars.NewStore())
			ctx.SetApplications(apps)

			comp, ok := ctx.ComponentByName(*appID, *componentName)
			if !ok {
				return fmt.Errorf("component %q not found in application %s", *componentName, *appID)
			}

			source := *code
			if source == "" {
				source, ok = comp.Event[*event]
				if !ok {
					return fmt.Errorf("component %q has no %s handler", *componentName, *event)
				}
			}

			exec, err := handler.NewExecutor(ctx, handler.Options{
				Console: handler.NewEditorConsole(os.Stderr),
			})
			if err != nil {
				return err
			}

			result, err := exec.Execute(comp, source, nil, nil)
			if err != nil {
				return fmt.Errorf("handler failed: %w", err)
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				fmt.Printf("%v\n", result)
				return nil
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
