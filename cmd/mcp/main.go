// Command mcp copies a batch of paths driven by an external helper
// process that maps each source to its destination, leaving sources
// in place.
package main

import (
	"os"
	"strings"

	"github.com/ngrash/mmv/internal/cli"
)

// productName is overridable at build time via -ldflags -X, per spec.md §6.
var productName = "mcp"

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args[1:], env, cli.Options{
		ProductName: productName,
		Copy:        true,
	})

	os.Exit(exitCode)
}
