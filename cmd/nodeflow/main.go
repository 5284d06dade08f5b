package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/nodeflow/pkg/cmd"
	cli "github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "nodeflow",
		EnableShellCompletion: true,
		Usage:                 "Compile, store and run node workflows",
		Flags:                 cmd.LogFlags(),
		Commands: []*cli.Command{
			NewCompileCommand(),
			NewExecuteCommand(),
			NewCreateCommand(),
			NewRequestCommand(),
			NewRunCommand(),
			NewCancelCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
