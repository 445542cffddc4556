// Command nse is the NSE command-line interface.
package main

import (
	"os"

	"github.com/lukasberz/nse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
