package main

import (
	"flag"
	"fmt"
	"strings"

	canvasflow "github.com/canvasflow/canvasflow-go"
	"github.com/canvasflow/canvasflow-go/loader"
	"github.com/canvasflow/canvasflow-go/ssr"
)

func defineCheckCommand() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	bundleDir := fs.String("bundles", ".", "Directory of application bundles")

	commands["check"] = &Command{
		Name:        "check",
		Description: "Validate bundles and classify every handler for SSR",
		FlagSet:     fs,
		Run: func() error {
			apps, err := loader.LoadDir(*bundleDir)
			if err != nil {
				return err
			}

			total := 0
			byClass := map[ssr.Classification]int{}
			for _, app := range apps {
				for _, comp := range app.Components {
					for event, code := range comp.Event {
						report := ssr.ClassifyHandler(code)
						byClass[report.Classification]++
						total++
						if *verbose {
							printReport(app, comp, "event "+event, report)
						}
					}
					for name, input := range comp.Input {
						if input.Type != canvasflow.InputHandler {
							continue
						}
						code, _ := input.Value.(string)
						report := ssr.ClassifyHandler(code)
						byClass[report.Classification]++
						total++
						if *verbose {
							printReport(app, comp, "input "+name, report)
						}
					}
				}
			}

			fmt.Printf("%d application(s), %d handler(s)\n", len(apps), total)
			for _, class := range []ssr.Classification{ssr.ClassSSRSafe, ssr.ClassSSRPartial, ssr.ClassClientOnly} {
				fmt.Printf("  %-12s %d\n", class, byClass[class])
			}
			return nil
		},
	}
}

func printReport(app *canvasflow.Application, comp *canvasflow.Component, source string, report ssr.Report) {
	line := fmt.Sprintf("%s/%s %s: %s", app.ID, comp.Name, source, report.Classification)
	if len(report.SideEffectAPIs) > 0 {
		line += " [" + strings.Join(report.SideEffectAPIs, ", ") + "]"
	}
	if report.Reason != "" {
		line += " (" + report.Reason + ")"
	}
	fmt.Println(line)
}
