// Command uidemo drives Workers on an in-process UI thread and reports how
// their tasks were ordered and dispatched.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "uidemo",
		Usage: "exercise UI-thread Workers from concurrent producers",
		Commands: []*cli.Command{
			RunCommand(),
			CompareCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
