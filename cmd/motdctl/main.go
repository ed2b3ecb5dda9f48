// Command motdctl inspects and maintains a movie-of-the-day deployment from
// the shell. It reads the same environment as the server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
