// Command starcore serves, joins and tests replicated state containers.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/starcore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "starcore:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
