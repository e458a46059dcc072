package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/canvasflow/canvasflow-go/vars"
)

func defineVarsCommand() {
	fs := flag.NewFlagSet("vars", flag.ExitOnError)
	file := fs.String("file", "", "Path of a file-backed variable store")
	boltPath := fs.String("bolt", "", "Path of a bbolt-backed variable store")

	commands["vars"] = &Command{
		Name:        "vars",
		Description: "Inspect a persisted variable store",
		FlagSet:     fs,
		Run: func() error {
			var backend vars.Backend
			switch {
			case *file != "":
				backend = vars.NewFileBackend(*file)
			case *boltPath != "":
				b, err := vars.NewBoltBackend(*boltPath)
				if err != nil {
					return err
				}
				backend = b
			default:
				return fmt.Errorf("specify -file or -bolt")
			}
			defer backend.Close()

			snapshot, err := backend.Load(context.Background())
			if err != nil {
				return err
			}

			scopes := make([]string, 0, len(snapshot))
			for scope := range snapshot {
				scopes = append(scopes, scope)
			}
			sort.Strings(scopes)
			for _, scope := range scopes {
				fmt.Printf("%s:\n", scope)
				names := make([]string, 0, len(snapshot[scope]))
				for name := range snapshot[scope] {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					entry := snapshot[scope][name]
					fmt.Printf("  %-24s %-8s %v\n", name, entry.Type, entry.Value)
				}
			}
			return nil
		},
	}
}
