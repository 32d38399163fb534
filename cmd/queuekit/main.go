// Command queuekit runs the producer/consumer pipeline from the command line
// or serves it over HTTP.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
