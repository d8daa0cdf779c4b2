// Command honeypotctl scores and mines scam messages offline, using the same
// lexicon and extraction settings as the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
